package sqlstore

import (
	"context"
	"fmt"
)

const (
	tableSettings  = "user_settings"
	tableApps      = "user_apps"
	tableReminders = "user_reminders"
	tableAnalytics = "user_analytics"
)

// Portable between SQLite and PostgreSQL. Timestamps are epoch milliseconds.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_apps (
		row_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_apps_user ON user_apps (user_id)`,
	`CREATE TABLE IF NOT EXISTS user_reminders (
		row_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reminder_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		data TEXT NOT NULL,
		updated_at BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_reminders_user ON user_reminders (user_id, position)`,
	`CREATE TABLE IF NOT EXISTS user_analytics (
		row_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		record_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		data TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_analytics_user ON user_analytics (user_id, created_at)`,
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
