// Package localstore is the device-local key-value persistence for the
// user's collections and the reconciliation bookkeeping keys.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"focussync/internal/models"
)

const (
	keyReminders  = "reminders"
	keyApps       = "app_selection"
	keyAnalytics  = "analytics_history"
	keySettings   = "settings"
	keyLastSync   = "last_sync_at"
	keyMigrated   = "migrated"
	accountPrefix = "account:"
)

// KV is the raw backend. Get reports ok=false for a missing key.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store exposes each collection as an independently addressable value.
// There is no cross-key transaction.
type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) Reminders(ctx context.Context) ([]models.Reminder, error) {
	out := []models.Reminder{}
	if _, err := s.get(ctx, keyReminders, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SetReminders(ctx context.Context, v []models.Reminder) error {
	if v == nil {
		v = []models.Reminder{}
	}
	return s.set(ctx, keyReminders, v)
}

func (s *Store) AppSelection(ctx context.Context) (models.AppSelection, error) {
	var out models.AppSelection
	if _, err := s.get(ctx, keyApps, &out); err != nil {
		return models.AppSelection{}, err
	}
	if out.Blocked == nil {
		out.Blocked = map[string]bool{}
	}
	return out, nil
}

func (s *Store) SetAppSelection(ctx context.Context, v models.AppSelection) error {
	if v.Blocked == nil {
		v.Blocked = map[string]bool{}
	}
	return s.set(ctx, keyApps, v)
}

func (s *Store) Analytics(ctx context.Context) ([]models.AnalyticsRecord, error) {
	out := []models.AnalyticsRecord{}
	if _, err := s.get(ctx, keyAnalytics, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SetAnalytics(ctx context.Context, v []models.AnalyticsRecord) error {
	if v == nil {
		v = []models.AnalyticsRecord{}
	}
	return s.set(ctx, keyAnalytics, v)
}

// Settings returns nil when no settings have ever been written.
func (s *Store) Settings(ctx context.Context) (models.Settings, error) {
	var out models.Settings
	ok, err := s.get(ctx, keySettings, &out)
	if err != nil {
		return nil, err
	}
	if ok && out == nil {
		out = models.Settings{}
	}
	return out, nil
}

func (s *Store) SetSettings(ctx context.Context, v models.Settings) error {
	if v == nil {
		v = models.Settings{}
	}
	return s.set(ctx, keySettings, v)
}

func (s *Store) LastSyncAt(ctx context.Context, userID string) (int64, error) {
	var out int64
	if _, err := s.get(ctx, accountKey(userID, keyLastSync), &out); err != nil {
		return 0, err
	}
	return out, nil
}

func (s *Store) SetLastSyncAt(ctx context.Context, userID string, ms int64) error {
	return s.set(ctx, accountKey(userID, keyLastSync), ms)
}

func (s *Store) Migrated(ctx context.Context, userID string) (bool, error) {
	var out bool
	if _, err := s.get(ctx, accountKey(userID, keyMigrated), &out); err != nil {
		return false, err
	}
	return out, nil
}

func (s *Store) SetMigrated(ctx context.Context, userID string, migrated bool) error {
	return s.set(ctx, accountKey(userID, keyMigrated), migrated)
}

func (s *Store) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("localstore get %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("localstore decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("localstore encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, b); err != nil {
		return fmt.Errorf("localstore set %s: %w", key, err)
	}
	return nil
}

func accountKey(userID, key string) string {
	return accountPrefix + userID + ":" + key
}
