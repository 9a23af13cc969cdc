package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"focussync/internal/app"
	"focussync/internal/config"
	"focussync/internal/logging"
	"focussync/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("error", "cloudsync")
		l.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, "cloudsync")
	if cfg.RemoteDriver == config.DriverHTTP {
		logger.Fatal().Msg("cloudsync needs a sqlite or postgres REMOTE_DSN, not an http remote")
	}
	if logging.ParseLevel(cfg.LogLevel) > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	store, err := app.OpenSQL(ctx, cfg.RemoteDriver, cfg.RemoteDSN)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.RemoteDriver).Msg("open store")
	}
	defer store.Close()

	router := server.NewRouter(store, server.Options{AuthToken: cfg.AuthToken, Logger: logger})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("driver", cfg.RemoteDriver).Bool("auth", cfg.AuthToken != "").Msg("cloudsync listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown")
	}
}
