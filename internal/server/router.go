// Package server is the cloudsync HTTP service: a gin router exposing the
// four per-user tables of a remote.Store.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"focussync/internal/remote"
	"focussync/pkg/types"
)

type Options struct {
	AuthToken string
	Logger    zerolog.Logger
}

func NewRouter(store remote.Store, opts Options) *gin.Engine {
	h := NewHandler(store, opts.Logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(opts.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", types.HeaderUserID},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group(types.APIPrefix)
	v1.Use(Auth(opts.AuthToken))
	{
		v1.GET("/presence", h.Presence)

		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings", h.PutSettings)
		v1.DELETE("/settings", h.DeleteSettings)
		v1.GET("/settings/count", h.CountSettings)

		v1.GET("/apps", h.GetApps)
		v1.POST("/apps", h.InsertApps)
		v1.PUT("/apps", h.ReplaceApps)
		v1.DELETE("/apps", h.DeleteApps)
		v1.GET("/apps/count", h.CountApps)

		v1.GET("/reminders", h.ListReminders)
		v1.POST("/reminders", h.InsertReminders)
		v1.PUT("/reminders", h.ReplaceReminders)
		v1.DELETE("/reminders", h.DeleteReminders)
		v1.GET("/reminders/count", h.CountReminders)

		v1.GET("/analytics", h.ListAnalytics)
		v1.POST("/analytics", h.InsertAnalytics)
		v1.PUT("/analytics", h.ReplaceAnalytics)
		v1.DELETE("/analytics", h.DeleteAnalytics)
		v1.GET("/analytics/count", h.CountAnalytics)
	}
	return r
}
