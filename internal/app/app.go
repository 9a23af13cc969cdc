// Package app wires the configured local store, remote store and
// reconciliation engine for the focussync commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"focussync/internal/config"
	"focussync/internal/localstore"
	"focussync/internal/reconcile"
	"focussync/internal/remote"
	"focussync/internal/remote/httpstore"
	"focussync/internal/remote/sqlstore"
	"focussync/internal/status"
)

type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Local   *localstore.Store
	Remote  remote.Store
	Engine  *reconcile.Engine
	Session *reconcile.Session
	Status  *status.Tracker

	closers []func() error
}

func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	kv, err := localstore.OpenSQLite(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", cfg.LocalPath, err)
	}
	a.closers = append(a.closers, kv.Close)
	a.Local = localstore.New(kv)

	rs, closeRemote, err := OpenRemote(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if closeRemote != nil {
		a.closers = append(a.closers, closeRemote)
	}
	a.Remote = rs

	a.Engine = reconcile.NewEngine(a.Local, rs, log,
		reconcile.WithAnalyticsCaps(cfg.AnalyticsLocalCap, cfg.AnalyticsRemoteCap),
		reconcile.WithTransactionalReplace(),
	)
	a.Status = status.NewTracker(true)
	a.Session = reconcile.NewSession(a.Engine, a.Status, cfg.MergeCooldown)

	log.Debug().
		Str("device_id", cfg.DeviceID).
		Str("local_path", cfg.LocalPath).
		Str("remote_driver", cfg.RemoteDriver).
		Msg("focussync ready")
	return a, nil
}

// OpenRemote builds the remote store named by cfg.RemoteDriver. SQL stores
// get their schema applied. The returned close func may be nil.
func OpenRemote(ctx context.Context, cfg *config.Config) (remote.Store, func() error, error) {
	switch cfg.RemoteDriver {
	case config.DriverHTTP:
		return httpstore.New(cfg.RemoteURL, cfg.AuthToken, cfg.RequestTimeout), nil, nil
	case config.DriverSQLite, config.DriverPostgres:
		s, err := OpenSQL(ctx, cfg.RemoteDriver, cfg.RemoteDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported remote driver: %s", cfg.RemoteDriver)
}

// OpenSQL opens a sqlstore and ensures its schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s remote store: %w", dialect, err)
	}
	s := sqlstore.New(db, dialect)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
