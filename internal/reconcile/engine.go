// Package reconcile decides how a device's local collections relate to the
// user's cloud copy and moves data between them: upload, download, pull and
// a latest-wins merge.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"focussync/internal/models"
	"focussync/internal/remote"
)

const (
	DefaultLocalAnalyticsCap  = 500
	DefaultRemoteAnalyticsCap = 200
)

// LocalStore is the device-side persistence the engine reads and rewrites.
// *localstore.Store satisfies it.
type LocalStore interface {
	Reminders(ctx context.Context) ([]models.Reminder, error)
	SetReminders(ctx context.Context, v []models.Reminder) error
	AppSelection(ctx context.Context) (models.AppSelection, error)
	SetAppSelection(ctx context.Context, v models.AppSelection) error
	Analytics(ctx context.Context) ([]models.AnalyticsRecord, error)
	SetAnalytics(ctx context.Context, v []models.AnalyticsRecord) error
	Settings(ctx context.Context) (models.Settings, error)
	SetSettings(ctx context.Context, v models.Settings) error
	LastSyncAt(ctx context.Context, userID string) (int64, error)
	SetLastSyncAt(ctx context.Context, userID string, ms int64) error
	Migrated(ctx context.Context, userID string) (bool, error)
	SetMigrated(ctx context.Context, userID string, migrated bool) error
}

// MergeResult reports what a merge changed locally.
type MergeResult struct {
	RemindersChanged int `json:"remindersChanged"`
	AnalyticsAdded   int `json:"analyticsAdded"`
}

type Engine struct {
	local  LocalStore
	remote remote.Store
	log    zerolog.Logger
	now    func() time.Time

	localAnalyticsCap  int
	remoteAnalyticsCap int
	transactional      bool
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAnalyticsCaps overrides the 500 local / 200 remote analytics bounds.
func WithAnalyticsCaps(local, remote int) Option {
	return func(e *Engine) {
		if local > 0 {
			e.localAnalyticsCap = local
		}
		if remote > 0 {
			e.remoteAnalyticsCap = remote
		}
	}
}

// WithTransactionalReplace makes Upload swap rows through the remote's
// Replace methods when a table offers them, instead of a separate delete
// and insert.
func WithTransactionalReplace() Option {
	return func(e *Engine) { e.transactional = true }
}

func NewEngine(local LocalStore, rs remote.Store, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		local:              local,
		remote:             rs,
		log:                logger.With().Str("component", "reconcile").Logger(),
		now:                time.Now,
		localAnalyticsCap:  DefaultLocalAnalyticsCap,
		remoteAnalyticsCap: DefaultRemoteAnalyticsCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LocalSnapshot reads every local collection in parallel.
func (e *Engine) LocalSnapshot(ctx context.Context) (models.Snapshot, error) {
	snap := models.EmptySnapshot()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Settings, err = e.local.Settings(gctx)
		return wrap(CollectionSettings, OpSnapshot, err)
	})
	g.Go(func() (err error) {
		snap.Apps, err = e.local.AppSelection(gctx)
		return wrap(CollectionApps, OpSnapshot, err)
	})
	g.Go(func() (err error) {
		snap.Reminders, err = e.local.Reminders(gctx)
		return wrap(CollectionReminders, OpSnapshot, err)
	})
	g.Go(func() (err error) {
		snap.Analytics, err = e.local.Analytics(gctx)
		return wrap(CollectionAnalytics, OpSnapshot, err)
	})
	if err := g.Wait(); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// HasLocalData reports whether any local collection carries content.
func (e *Engine) HasLocalData(ctx context.Context) (bool, error) {
	snap, err := e.LocalSnapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.HasAny(), nil
}

// Upload replaces the user's cloud rows with the local snapshot. The
// snapshot is captured before the first write. Collections are written in
// order and the first failure aborts; earlier writes are not rolled back,
// so callers retry the whole upload.
func (e *Engine) Upload(ctx context.Context, userID string) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	snap, err := e.LocalSnapshot(ctx)
	if err != nil {
		return err
	}

	settings := snap.Settings
	if settings == nil {
		settings = models.Settings{}
	}
	if err := e.remote.Settings().Upsert(ctx, userID, settings); err != nil {
		return wrap(CollectionSettings, OpUpload, err)
	}
	if err := e.replaceApps(ctx, userID, snap.Apps); err != nil {
		return wrap(CollectionApps, OpUpload, err)
	}
	if err := e.replaceReminders(ctx, userID, snap.Reminders); err != nil {
		return wrap(CollectionReminders, OpUpload, err)
	}
	analytics := newestAnalytics(snap.Analytics, e.remoteAnalyticsCap)
	if err := e.replaceAnalytics(ctx, userID, analytics); err != nil {
		return wrap(CollectionAnalytics, OpUpload, err)
	}

	e.log.Info().
		Str("user_id", userID).
		Int("reminders", len(snap.Reminders)).
		Int("analytics", len(analytics)).
		Int("apps", len(snap.Apps.Blocked)).
		Int("settings", len(settings)).
		Msg("upload complete")
	return nil
}

func (e *Engine) replaceApps(ctx context.Context, userID string, a models.AppSelection) error {
	if e.transactional {
		if r, ok := e.remote.Apps().(remote.AppsReplacer); ok {
			return r.Replace(ctx, userID, a)
		}
	}
	if err := e.remote.Apps().Delete(ctx, userID); err != nil {
		return err
	}
	return e.remote.Apps().Insert(ctx, userID, a)
}

func (e *Engine) replaceReminders(ctx context.Context, userID string, items []models.Reminder) error {
	if e.transactional {
		if r, ok := e.remote.Reminders().(remote.ReminderReplacer); ok {
			return r.Replace(ctx, userID, items)
		}
	}
	if err := e.remote.Reminders().Delete(ctx, userID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return e.remote.Reminders().Insert(ctx, userID, items)
}

func (e *Engine) replaceAnalytics(ctx context.Context, userID string, items []models.AnalyticsRecord) error {
	if e.transactional {
		if r, ok := e.remote.Analytics().(remote.AnalyticsReplacer); ok {
			return r.Replace(ctx, userID, items)
		}
	}
	if err := e.remote.Analytics().Delete(ctx, userID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return e.remote.Analytics().Insert(ctx, userID, items)
}

// Download reads the user's cloud rows into a snapshot. Missing rows yield
// empty collections; Settings stays nil when no settings row exists. Item
// rows that cannot be decoded, or carry no id, are skipped and counted.
func (e *Engine) Download(ctx context.Context, userID string) (models.Snapshot, error) {
	if err := validateUser(userID); err != nil {
		return models.Snapshot{}, err
	}

	snap := models.EmptySnapshot()
	var skippedReminders, skippedAnalytics int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, found, err := e.remote.Settings().Get(gctx, userID)
		if err != nil {
			return wrap(CollectionSettings, OpDownload, err)
		}
		if found {
			snap.Settings = s
		}
		return nil
	})
	g.Go(func() error {
		a, err := e.remote.Apps().Get(gctx, userID)
		if err != nil {
			return wrap(CollectionApps, OpDownload, err)
		}
		if a != nil {
			snap.Apps = *a
			if snap.Apps.Blocked == nil {
				snap.Apps.Blocked = map[string]bool{}
			}
		}
		return nil
	})
	g.Go(func() error {
		recs, err := e.remote.Reminders().List(gctx, userID)
		if err != nil {
			return wrap(CollectionReminders, OpDownload, err)
		}
		snap.Reminders, skippedReminders = decodeReminders(recs)
		return nil
	})
	g.Go(func() error {
		recs, err := e.remote.Analytics().List(gctx, userID, e.remoteAnalyticsCap)
		if err != nil {
			return wrap(CollectionAnalytics, OpDownload, err)
		}
		snap.Analytics, skippedAnalytics = decodeAnalytics(recs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Snapshot{}, err
	}

	snap.Skipped = skippedReminders + skippedAnalytics
	if snap.Skipped > 0 {
		e.log.Warn().
			Str("user_id", userID).
			Int("reminders_skipped", skippedReminders).
			Int("analytics_skipped", skippedAnalytics).
			Err(models.ErrMalformedRecord).
			Msg("skipped unusable remote rows")
	}
	e.log.Debug().
		Str("user_id", userID).
		Bool("settings_found", snap.Settings != nil).
		Int("reminders", len(snap.Reminders)).
		Int("analytics", len(snap.Analytics)).
		Msg("download complete")
	return snap, nil
}

// HasCloudData reports whether any row exists for the user. It checks row
// existence, not content: a stored empty settings document counts. Stores
// implementing remote.PresenceReporter answer in a single call.
func (e *Engine) HasCloudData(ctx context.Context, userID string) (bool, error) {
	if err := validateUser(userID); err != nil {
		return false, err
	}
	if pr, ok := e.remote.(remote.PresenceReporter); ok {
		p, err := pr.Presence(ctx, userID)
		if err != nil {
			return false, wrap(CollectionCloud, OpPresence, err)
		}
		return p.HasAny(), nil
	}
	tables := []struct {
		c     Collection
		count func(context.Context, string) (int, error)
	}{
		{CollectionSettings, e.remote.Settings().Count},
		{CollectionApps, e.remote.Apps().Count},
		{CollectionReminders, e.remote.Reminders().Count},
		{CollectionAnalytics, e.remote.Analytics().Count},
	}
	for _, p := range tables {
		n, err := p.count(ctx, userID)
		if err != nil {
			return false, wrap(p.c, OpPresence, err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Pull overwrites local collections with the cloud snapshot. When the
// cloud holds no content it returns false and leaves local data untouched.
// Settings are only written when a cloud settings row exists.
func (e *Engine) Pull(ctx context.Context, userID string) (bool, error) {
	snap, err := e.Download(ctx, userID)
	if err != nil {
		return false, err
	}
	if !snap.HasAny() {
		e.log.Info().Str("user_id", userID).Msg("pull skipped: cloud snapshot is empty")
		return false, nil
	}

	if err := e.local.SetAppSelection(ctx, snap.Apps); err != nil {
		return false, wrap(CollectionApps, OpPull, err)
	}
	if err := e.local.SetReminders(ctx, snap.Reminders); err != nil {
		return false, wrap(CollectionReminders, OpPull, err)
	}
	if err := e.local.SetAnalytics(ctx, snap.Analytics); err != nil {
		return false, wrap(CollectionAnalytics, OpPull, err)
	}
	if snap.Settings != nil {
		if err := e.local.SetSettings(ctx, snap.Settings); err != nil {
			return false, wrap(CollectionSettings, OpPull, err)
		}
	}

	e.log.Info().
		Str("user_id", userID).
		Int("reminders", len(snap.Reminders)).
		Int("analytics", len(snap.Analytics)).
		Msg("pull complete")
	return true, nil
}

// Merge folds the cloud snapshot into local reminders and analytics and
// records the sync time. Re-running it against unchanged data reports zero
// changes.
func (e *Engine) Merge(ctx context.Context, userID string) (MergeResult, error) {
	snap, err := e.Download(ctx, userID)
	if err != nil {
		return MergeResult{}, err
	}
	localReminders, err := e.local.Reminders(ctx)
	if err != nil {
		return MergeResult{}, wrap(CollectionReminders, OpMerge, err)
	}
	localAnalytics, err := e.local.Analytics(ctx)
	if err != nil {
		return MergeResult{}, wrap(CollectionAnalytics, OpMerge, err)
	}

	reminders, changed := mergeReminders(localReminders, snap.Reminders)
	analytics, added := mergeAnalytics(localAnalytics, snap.Analytics, e.localAnalyticsCap)

	if err := e.local.SetReminders(ctx, reminders); err != nil {
		return MergeResult{}, wrap(CollectionReminders, OpMerge, err)
	}
	if err := e.local.SetAnalytics(ctx, analytics); err != nil {
		return MergeResult{}, wrap(CollectionAnalytics, OpMerge, err)
	}
	if err := e.local.SetLastSyncAt(ctx, userID, e.now().UnixMilli()); err != nil {
		return MergeResult{}, wrap(CollectionLocal, OpMerge, err)
	}

	res := MergeResult{RemindersChanged: changed, AnalyticsAdded: added}
	e.log.Info().
		Str("user_id", userID).
		Int("reminders_changed", res.RemindersChanged).
		Int("analytics_added", res.AnalyticsAdded).
		Msg("merge complete")
	return res, nil
}
