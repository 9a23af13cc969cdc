package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"focussync/internal/models"
	"focussync/internal/remote"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// --- settings ---
type settingsTable struct{ s *Store }

func (t *settingsTable) Upsert(ctx context.Context, userID string, v models.Settings) error {
	if v == nil {
		v = models.Settings{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.s.exec(ctx, t.s.db, "upsert "+tableSettings, `
		INSERT INTO user_settings (user_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, userID, string(b), t.s.now())
}

func (t *settingsTable) Get(ctx context.Context, userID string) (models.Settings, bool, error) {
	var data string
	q := t.s.rebind(`SELECT data FROM user_settings WHERE user_id = ?`)
	err := t.s.db.QueryRowContext(ctx, q, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify("select "+tableSettings, err)
	}
	out := models.Settings{}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, false, malformed(tableSettings, userID, err)
	}
	if out == nil {
		out = models.Settings{}
	}
	return out, true, nil
}

func (t *settingsTable) Delete(ctx context.Context, userID string) error {
	return t.s.deleteUser(ctx, t.s.db, tableSettings, userID)
}

func (t *settingsTable) Count(ctx context.Context, userID string) (int, error) {
	return t.s.count(ctx, tableSettings, userID)
}

// --- apps ---
type appsTable struct{ s *Store }

func (t *appsTable) Insert(ctx context.Context, userID string, a models.AppSelection) error {
	return t.insert(ctx, t.s.db, userID, a)
}

func (t *appsTable) insert(ctx context.Context, ex execer, userID string, a models.AppSelection) error {
	if a.Blocked == nil {
		a.Blocked = map[string]bool{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return t.s.exec(ctx, ex, "insert "+tableApps,
		`INSERT INTO user_apps (row_id, user_id, data, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), userID, string(b), t.s.now())
}

// Replace swaps the apps row inside one transaction.
func (t *appsTable) Replace(ctx context.Context, userID string, a models.AppSelection) error {
	return t.s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := t.s.deleteUser(ctx, tx, tableApps, userID); err != nil {
			return err
		}
		return t.insert(ctx, tx, userID, a)
	})
}

func (t *appsTable) Get(ctx context.Context, userID string) (*models.AppSelection, error) {
	var rowID, data string
	q := t.s.rebind(`SELECT row_id, data FROM user_apps WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`)
	err := t.s.db.QueryRowContext(ctx, q, userID).Scan(&rowID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("select "+tableApps, err)
	}
	var out models.AppSelection
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, malformed(tableApps, rowID, err)
	}
	if out.Blocked == nil {
		out.Blocked = map[string]bool{}
	}
	return &out, nil
}

func (t *appsTable) Delete(ctx context.Context, userID string) error {
	return t.s.deleteUser(ctx, t.s.db, tableApps, userID)
}

func (t *appsTable) Count(ctx context.Context, userID string) (int, error) {
	return t.s.count(ctx, tableApps, userID)
}

// --- reminders ---
type remindersTable struct{ s *Store }

func (t *remindersTable) Insert(ctx context.Context, userID string, items []models.Reminder) error {
	if len(items) == 0 {
		return nil
	}
	return t.s.WithTx(ctx, func(tx *sql.Tx) error {
		return t.insert(ctx, tx, userID, items)
	})
}

func (t *remindersTable) insert(ctx context.Context, ex execer, userID string, items []models.Reminder) error {
	now := t.s.now()
	for i, r := range items {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		err = t.s.exec(ctx, ex, "insert "+tableReminders, `
			INSERT INTO user_reminders (row_id, user_id, reminder_id, position, data, updated_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), userID, r.ID, i, string(b), r.UpdatedAt, now)
		if err != nil {
			return err
		}
	}
	return nil
}

// Replace deletes and re-inserts the user's reminders inside one transaction.
func (t *remindersTable) Replace(ctx context.Context, userID string, items []models.Reminder) error {
	return t.s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := t.s.deleteUser(ctx, tx, tableReminders, userID); err != nil {
			return err
		}
		return t.insert(ctx, tx, userID, items)
	})
}

func (t *remindersTable) List(ctx context.Context, userID string) ([]remote.Record, error) {
	return t.s.listRecords(ctx, tableReminders,
		`SELECT row_id, data FROM user_reminders WHERE user_id = ? ORDER BY created_at ASC, position ASC`, userID)
}

func (t *remindersTable) Delete(ctx context.Context, userID string) error {
	return t.s.deleteUser(ctx, t.s.db, tableReminders, userID)
}

func (t *remindersTable) Count(ctx context.Context, userID string) (int, error) {
	return t.s.count(ctx, tableReminders, userID)
}

// --- analytics ---
type analyticsTable struct{ s *Store }

func (t *analyticsTable) Insert(ctx context.Context, userID string, items []models.AnalyticsRecord) error {
	if len(items) == 0 {
		return nil
	}
	return t.s.WithTx(ctx, func(tx *sql.Tx) error {
		return t.insert(ctx, tx, userID, items)
	})
}

func (t *analyticsTable) insert(ctx context.Context, ex execer, userID string, items []models.AnalyticsRecord) error {
	for i, a := range items {
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		err = t.s.exec(ctx, ex, "insert "+tableAnalytics, `
			INSERT INTO user_analytics (row_id, user_id, record_id, position, data, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), userID, a.ID, i, string(b), a.StartedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// Replace deletes and re-inserts the user's analytics inside one transaction.
func (t *analyticsTable) Replace(ctx context.Context, userID string, items []models.AnalyticsRecord) error {
	return t.s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := t.s.deleteUser(ctx, tx, tableAnalytics, userID); err != nil {
			return err
		}
		return t.insert(ctx, tx, userID, items)
	})
}

func (t *analyticsTable) List(ctx context.Context, userID string, limit int) ([]remote.Record, error) {
	q := `SELECT row_id, data FROM user_analytics WHERE user_id = ? ORDER BY created_at DESC, position ASC`
	if limit > 0 {
		return t.s.listRecords(ctx, tableAnalytics, q+` LIMIT ?`, userID, limit)
	}
	return t.s.listRecords(ctx, tableAnalytics, q, userID)
}

func (t *analyticsTable) Delete(ctx context.Context, userID string) error {
	return t.s.deleteUser(ctx, t.s.db, tableAnalytics, userID)
}

func (t *analyticsTable) Count(ctx context.Context, userID string) (int, error) {
	return t.s.count(ctx, tableAnalytics, userID)
}

func (s *Store) listRecords(ctx context.Context, table, query string, args ...any) ([]remote.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, classify("select "+table, err)
	}
	defer rows.Close()

	out := []remote.Record{}
	for rows.Next() {
		var rowID, data string
		if err := rows.Scan(&rowID, &data); err != nil {
			return nil, classify("scan "+table, err)
		}
		out = append(out, remote.Record{RowID: rowID, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("select "+table, err)
	}
	return out, nil
}
