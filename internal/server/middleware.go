package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"focussync/pkg/types"
)

const (
	userIDKey     = "userID"
	defaultUserID = "default"
)

func UserIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Auth guards the API. With a token configured every request needs a
// matching bearer credential and an X-User-ID header; without one, requests
// lacking the header act as the "default" user.
func Auth(token string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(want) > 0 {
			got, ok := bearer(c.GetHeader("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				abort(c, http.StatusUnauthorized, types.CodeUnauthorized, "unauthorized")
				return
			}
		}
		userID, ok := requestUser(c, len(want) > 0)
		if !ok {
			abort(c, http.StatusBadRequest, types.CodeInvalidArgument, types.HeaderUserID+" header required")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// bearer extracts the credential from an Authorization header value.
func bearer(h string) (string, bool) {
	scheme, cred, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	cred = strings.TrimSpace(cred)
	return cred, cred != ""
}

func requestUser(c *gin.Context, required bool) (string, bool) {
	if id := strings.TrimSpace(c.GetHeader(types.HeaderUserID)); id != "" {
		return id, true
	}
	if required {
		return "", false
	}
	return defaultUserID, true
}

func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("user_id", UserIDFromContext(c)).
			Msg("request")
	}
}
