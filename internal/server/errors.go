package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"focussync/internal/models"
	"focussync/pkg/types"
)

// abort ends the request with a typed error body.
func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, types.ErrorResponse{Error: msg, Code: code})
}

// errorStatus maps a store error onto its HTTP status and wire code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest, types.CodeInvalidArgument
	case errors.Is(err, models.ErrMalformedRecord):
		return http.StatusUnprocessableEntity, types.CodeMalformed
	case errors.Is(err, models.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable, types.CodeUnavailable
	}
	return http.StatusInternalServerError, types.CodeRejected
}
