// Package remotetest is a compliance suite shared by remote.Store
// implementations.
package remotetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focussync/internal/models"
	"focussync/internal/remote"
)

// Run exercises every table of a store. makeStore must return an isolated,
// schema-ready store.
func Run(t *testing.T, makeStore func(t *testing.T) remote.Store) {
	t.Helper()

	t.Run("settings", func(t *testing.T) { testSettings(t, makeStore(t)) })
	t.Run("apps", func(t *testing.T) { testApps(t, makeStore(t)) })
	t.Run("reminders", func(t *testing.T) { testReminders(t, makeStore(t)) })
	t.Run("analytics", func(t *testing.T) { testAnalytics(t, makeStore(t)) })
	t.Run("users are isolated", func(t *testing.T) { testIsolation(t, makeStore(t)) })
}

func newUser() string { return "u-" + uuid.New().String() }

func testSettings(t *testing.T, s remote.Store) {
	ctx := context.Background()
	user := newUser()

	_, found, err := s.Settings().Get(ctx, user)
	require.NoError(t, err)
	assert.False(t, found)

	n, err := s.Settings().Count(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Settings().Upsert(ctx, user, models.Settings{"strictMode": true}))
	require.NoError(t, s.Settings().Upsert(ctx, user, models.Settings{"strictMode": false, "haptics": true}))

	got, found, err := s.Settings().Get(ctx, user)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.Settings{"strictMode": false, "haptics": true}, got)

	n, err = s.Settings().Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "upsert keeps a single row per user")

	require.NoError(t, s.Settings().Upsert(ctx, user, models.Settings{}))
	got, found, err = s.Settings().Get(ctx, user)
	require.NoError(t, err)
	assert.True(t, found, "an empty document is still a row")
	assert.Empty(t, got)

	require.NoError(t, s.Settings().Delete(ctx, user))
	require.NoError(t, s.Settings().Delete(ctx, user), "deleting nothing is not an error")
	_, found, err = s.Settings().Get(ctx, user)
	require.NoError(t, err)
	assert.False(t, found)
}

func testApps(t *testing.T, s remote.Store) {
	ctx := context.Background()
	user := newUser()

	got, err := s.Apps().Get(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Apps().Delete(ctx, user))
	sel := models.AppSelection{Blocked: map[string]bool{"com.video": true, "news": false}, SelectionToken: "opaque"}
	require.NoError(t, s.Apps().Insert(ctx, user, sel))

	got, err = s.Apps().Get(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sel, *got)

	n, err := s.Apps().Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Apps().Delete(ctx, user))
	n, err = s.Apps().Count(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testReminders(t *testing.T, s remote.Store) {
	ctx := context.Background()
	user := newUser()

	recs, err := s.Reminders().List(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, recs)

	items := []models.Reminder{
		{ID: "r1", Title: "Drink water", Type: models.ReminderDaily, Time: "09:00", Enabled: true, UpdatedAt: 1000},
		{ID: "r2", Title: "Stretch", Type: models.ReminderWeekday, Time: "15:00", Weekdays: []int{1, 3, 5}, UpdatedAt: 2000},
	}
	require.NoError(t, s.Reminders().Insert(ctx, user, items))
	require.NoError(t, s.Reminders().Insert(ctx, user, nil), "empty insert is a no-op")

	recs, err = s.Reminders().List(ctx, user)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	got := make([]models.Reminder, 0, len(recs))
	for _, r := range recs {
		assert.NotEmpty(t, r.RowID)
		var rem models.Reminder
		require.NoError(t, json.Unmarshal(r.Data, &rem))
		got = append(got, rem)
	}
	assert.ElementsMatch(t, items, got)

	n, err := s.Reminders().Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Reminders().Delete(ctx, user))
	n, err = s.Reminders().Count(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testAnalytics(t *testing.T, s remote.Store) {
	ctx := context.Background()
	user := newUser()

	items := []models.AnalyticsRecord{
		{ID: "a1", StartedAt: 1000, Duration: 60, FocusApps: []string{"com.video"}},
		{ID: "a3", StartedAt: 3000, Duration: 30},
		{ID: "a2", StartedAt: 2000, Duration: 90},
	}
	require.NoError(t, s.Analytics().Insert(ctx, user, items))

	recs, err := s.Analytics().List(ctx, user, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	var first, second models.AnalyticsRecord
	require.NoError(t, json.Unmarshal(recs[0].Data, &first))
	require.NoError(t, json.Unmarshal(recs[1].Data, &second))
	assert.Equal(t, "a3", first.ID, "newest first")
	assert.Equal(t, "a2", second.ID)

	all, err := s.Analytics().List(ctx, user, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := s.Analytics().Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Analytics().Delete(ctx, user))
	all, err = s.Analytics().List(ctx, user, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testIsolation(t *testing.T, s remote.Store) {
	ctx := context.Background()
	a, b := newUser(), newUser()

	require.NoError(t, s.Settings().Upsert(ctx, a, models.Settings{"x": true}))
	require.NoError(t, s.Reminders().Insert(ctx, a, []models.Reminder{{ID: "r1", Title: "a"}}))

	_, found, err := s.Settings().Get(ctx, b)
	require.NoError(t, err)
	assert.False(t, found)
	n, err := s.Reminders().Count(ctx, b)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Reminders().Delete(ctx, b))
	n, err = s.Reminders().Count(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
