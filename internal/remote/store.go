// Package remote defines the per-user cloud row-sets the reconciliation
// engine reads and replaces. Implementations live under internal/remote/<driver>/.
package remote

import (
	"context"
	"encoding/json"

	"focussync/internal/models"
)

const (
	TableSettings  = "settings"
	TableApps      = "apps"
	TableReminders = "reminders"
	TableAnalytics = "analytics"
)

// Store groups the four logical tables. Every table is keyed by user id.
type Store interface {
	Settings() Settings
	Apps() Apps
	Reminders() Reminders
	Analytics() Analytics
}

// Record is one stored item row. Data is returned undecoded so callers can
// skip individual malformed rows.
type Record struct {
	RowID string          `json:"rowId"`
	Data  json.RawMessage `json:"data"`
}

type Settings interface {
	// Upsert writes the single settings row, conflicting on user id.
	Upsert(ctx context.Context, userID string, s models.Settings) error
	// Get reports found=false when the user has no settings row.
	Get(ctx context.Context, userID string) (s models.Settings, found bool, err error)
	Delete(ctx context.Context, userID string) error
	Count(ctx context.Context, userID string) (int, error)
}

type Apps interface {
	Insert(ctx context.Context, userID string, a models.AppSelection) error
	// Get returns nil when the user has no apps row.
	Get(ctx context.Context, userID string) (*models.AppSelection, error)
	Delete(ctx context.Context, userID string) error
	Count(ctx context.Context, userID string) (int, error)
}

type Reminders interface {
	Insert(ctx context.Context, userID string, items []models.Reminder) error
	List(ctx context.Context, userID string) ([]Record, error)
	Delete(ctx context.Context, userID string) error
	Count(ctx context.Context, userID string) (int, error)
}

type Analytics interface {
	Insert(ctx context.Context, userID string, items []models.AnalyticsRecord) error
	// List returns at most limit rows, newest first. limit <= 0 means all.
	List(ctx context.Context, userID string, limit int) ([]Record, error)
	Delete(ctx context.Context, userID string) error
	Count(ctx context.Context, userID string) (int, error)
}

// ReminderReplacer is implemented by tables that can swap a user's rows in
// a single transaction instead of a separate delete and insert.
type ReminderReplacer interface {
	Replace(ctx context.Context, userID string, items []models.Reminder) error
}

// AnalyticsReplacer is the analytics counterpart of ReminderReplacer.
type AnalyticsReplacer interface {
	Replace(ctx context.Context, userID string, items []models.AnalyticsRecord) error
}

// AppsReplacer is the apps counterpart of ReminderReplacer.
type AppsReplacer interface {
	Replace(ctx context.Context, userID string, a models.AppSelection) error
}

// Presence holds a user's row count per table.
type Presence struct {
	Settings  int
	Apps      int
	Reminders int
	Analytics int
}

func (p Presence) HasAny() bool {
	return p.Settings+p.Apps+p.Reminders+p.Analytics > 0
}

// PresenceReporter is implemented by stores that can count every table in
// one round trip.
type PresenceReporter interface {
	Presence(ctx context.Context, userID string) (Presence, error)
}
