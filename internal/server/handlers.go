package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"focussync/internal/models"
	"focussync/internal/remote"
	"focussync/pkg/types"
)

// Handler exposes a remote.Store over HTTP, one route group per table.
type Handler struct {
	store remote.Store
	log   zerolog.Logger
}

func NewHandler(store remote.Store, log zerolog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// --- settings ---

func (h *Handler) GetSettings(c *gin.Context) {
	s, found, err := h.store.Settings().Get(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SettingsResponse{Found: found, Settings: s})
}

func (h *Handler) PutSettings(c *gin.Context) {
	var body models.Settings
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid json body")
		return
	}
	if err := h.store.Settings().Upsert(c.Request.Context(), UserIDFromContext(c), body); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteSettings(c *gin.Context) {
	h.deleteRows(c, h.store.Settings().Delete)
}

func (h *Handler) CountSettings(c *gin.Context) {
	h.count(c, h.store.Settings().Count)
}

// --- apps ---

func (h *Handler) GetApps(c *gin.Context) {
	a, err := h.store.Apps().Get(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.AppsResponse{Found: a != nil, Apps: a})
}

func (h *Handler) InsertApps(c *gin.Context) {
	var body models.AppSelection
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid json body")
		return
	}
	if err := h.store.Apps().Insert(c.Request.Context(), UserIDFromContext(c), body); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReplaceApps(c *gin.Context) {
	var body models.AppSelection
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid json body")
		return
	}
	ctx, userID := c.Request.Context(), UserIDFromContext(c)
	var err error
	if r, ok := h.store.Apps().(remote.AppsReplacer); ok {
		err = r.Replace(ctx, userID, body)
	} else if err = h.store.Apps().Delete(ctx, userID); err == nil {
		err = h.store.Apps().Insert(ctx, userID, body)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteApps(c *gin.Context) {
	h.deleteRows(c, h.store.Apps().Delete)
}

func (h *Handler) CountApps(c *gin.Context) {
	h.count(c, h.store.Apps().Count)
}

// --- reminders ---

func (h *Handler) ListReminders(c *gin.Context) {
	recs, err := h.store.Reminders().List(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.RecordsResponse{Records: toWire(recs)})
}

func (h *Handler) InsertReminders(c *gin.Context) {
	var body types.RemindersRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid json body")
		return
	}
	if err := h.store.Reminders().Insert(c.Request.Context(), UserIDFromContext(c), body.Items); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReplaceReminders(c *gin.Context) {
	var body types.RemindersRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid json body")
		return
	}
	ctx, userID := c.Request.Context(), UserIDFromContext(c)
	var err error
	if r, ok := h.store.Reminders().(remote.ReminderReplacer); ok {
		err = r.Replace(ctx, userID, body.Items)
	} else if err = h.store.Reminders().Delete(ctx, userID); err == nil && len(body.Items) > 0 {
		err = h.store.Reminders().Insert(ctx, userID, body.Items)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteReminders(c *gin.Context) {
	h.deleteRows(c, h.store.Reminders().Delete)
}

func (h *Handler) CountReminders(c *gin.Context) {
	h.count(c, h.store.Reminders().Count)
}

// --- analytics ---

func (h *Handler) ListAnalytics(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	recs, err := h.store.Analytics().List(c.Request.Context(), UserIDFromContext(c), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.RecordsResponse{Records: toWire(recs)})
}

func (h *Handler) InsertAnalytics(c *gin.Context) {
	var body types.AnalyticsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid json body")
		return
	}
	if err := h.store.Analytics().Insert(c.Request.Context(), UserIDFromContext(c), body.Items); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReplaceAnalytics(c *gin.Context) {
	var body types.AnalyticsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid json body")
		return
	}
	ctx, userID := c.Request.Context(), UserIDFromContext(c)
	var err error
	if r, ok := h.store.Analytics().(remote.AnalyticsReplacer); ok {
		err = r.Replace(ctx, userID, body.Items)
	} else if err = h.store.Analytics().Delete(ctx, userID); err == nil && len(body.Items) > 0 {
		err = h.store.Analytics().Insert(ctx, userID, body.Items)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteAnalytics(c *gin.Context) {
	h.deleteRows(c, h.store.Analytics().Delete)
}

func (h *Handler) CountAnalytics(c *gin.Context) {
	h.count(c, h.store.Analytics().Count)
}

// Presence returns every table's row count for the user.
func (h *Handler) Presence(c *gin.Context) {
	ctx, userID := c.Request.Context(), UserIDFromContext(c)
	var out types.PresenceResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Settings, err = h.store.Settings().Count(gctx, userID)
		return
	})
	g.Go(func() (err error) {
		out.Apps, err = h.store.Apps().Count(gctx, userID)
		return
	})
	g.Go(func() (err error) {
		out.Reminders, err = h.store.Reminders().Count(gctx, userID)
		return
	})
	g.Go(func() (err error) {
		out.Analytics, err = h.store.Analytics().Count(gctx, userID)
		return
	})
	if err := g.Wait(); err != nil {
		h.writeError(c, err)
		return
	}
	out.HasAny = remote.Presence{Settings: out.Settings, Apps: out.Apps, Reminders: out.Reminders, Analytics: out.Analytics}.HasAny()
	c.JSON(http.StatusOK, out)
}

func (h *Handler) deleteRows(c *gin.Context, del func(ctx context.Context, userID string) error) {
	if err := del(c.Request.Context(), UserIDFromContext(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) count(c *gin.Context, count func(ctx context.Context, userID string) (int, error)) {
	n, err := count(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.CountResponse{Count: n})
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, types.CodeInvalidArgument, msg)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	h.log.Error().Err(err).Str("user_id", UserIDFromContext(c)).Str("path", c.FullPath()).Msg("store operation failed")
	abort(c, status, code, err.Error())
}

func toWire(recs []remote.Record) []types.Record {
	out := make([]types.Record, 0, len(recs))
	for _, r := range recs {
		data := r.Data
		if !json.Valid(data) {
			data = json.RawMessage("null")
		}
		out = append(out, types.Record{RowID: r.RowID, Data: data})
	}
	return out
}
