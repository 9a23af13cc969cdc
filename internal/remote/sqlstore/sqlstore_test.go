package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focussync/internal/models"
	"focussync/internal/remote"
	"focussync/internal/remote/remotetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteCompliance(t *testing.T) {
	remotetest.Run(t, func(t *testing.T) remote.Store { return newTestStore(t) })
}

func TestOpenFileCreatesParentDir(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cloud", "data.db")
	db, err := Open(ctx, SQLite, "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	s := New(db, SQLite)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema is idempotent")
	require.NoError(t, s.Settings().Upsert(ctx, "u1", models.Settings{"a": true}))
}

func TestReplaceIsFullSwap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rt := s.Reminders().(remote.ReminderReplacer)

	require.NoError(t, rt.Replace(ctx, "u1", []models.Reminder{{ID: "r1"}, {ID: "r2"}}))
	require.NoError(t, rt.Replace(ctx, "u1", []models.Reminder{{ID: "r3"}}))
	n, err := s.Reminders().Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, rt.Replace(ctx, "u1", nil))
	n, err = s.Reminders().Count(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	at := s.Analytics().(remote.AnalyticsReplacer)
	require.NoError(t, at.Replace(ctx, "u1", []models.AnalyticsRecord{{ID: "a1", StartedAt: 5}}))
	n, err = s.Analytics().Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ap := s.Apps().(remote.AppsReplacer)
	require.NoError(t, ap.Replace(ctx, "u1", models.AppSelection{Blocked: map[string]bool{"x": true}}))
	require.NoError(t, ap.Replace(ctx, "u1", models.AppSelection{Blocked: map[string]bool{"y": true}}))
	got, err := s.Apps().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"y": true}, got.Blocked)
}

func TestMalformedDocumentRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.DB().ExecContext(ctx, `INSERT INTO user_settings (user_id, data, updated_at) VALUES ('u1', '{broken', 0)`)
	require.NoError(t, err)

	_, _, err = s.Settings().Get(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrMalformedRecord)

	// Item rows come back raw; decoding is the caller's business.
	_, err = s.DB().ExecContext(ctx, `INSERT INTO user_reminders (row_id, user_id, reminder_id, position, data, created_at) VALUES ('x', 'u1', '', 0, 'nope', 0)`)
	require.NoError(t, err)
	recs, err := s.Reminders().List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "nope", string(recs[0].Data))
}

func TestClosedDatabaseIsRejectedOrUnavailable(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	_, err := s.Reminders().Count(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRemoteRejected) || errors.Is(err, models.ErrRemoteUnavailable))
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify("op", driver.ErrBadConn), models.ErrRemoteUnavailable)
	assert.ErrorIs(t, classify("op", context.DeadlineExceeded), models.ErrRemoteUnavailable)
	assert.ErrorIs(t, classify("op", errors.New("UNIQUE constraint failed")), models.ErrRemoteRejected)
	assert.ErrorIs(t, classify("op", driver.ErrBadConn), driver.ErrBadConn, "cause stays reachable")
	assert.Nil(t, classify("op", nil))
}

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y = $2`, pg.rebind(`SELECT a FROM t WHERE x = ? AND y = ?`))
	lite := New(nil, SQLite)
	assert.Equal(t, `WHERE x = ?`, lite.rebind(`WHERE x = ?`))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	d, err = ParseDialect("SQLite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}
