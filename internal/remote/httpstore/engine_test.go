package httpstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focussync/internal/localstore"
	"focussync/internal/models"
	"focussync/internal/reconcile"
	"focussync/internal/remote/sqlstore"
	"focussync/internal/server"
)

func TestEngineRoundTripOverHTTP(t *testing.T) {
	ctx := context.Background()
	ts := newServer(t, "tok")
	cloud := New(ts.URL, "tok", time.Second)

	src := localstore.New(localstore.NewMemory())
	require.NoError(t, src.SetSettings(ctx, models.Settings{"strictMode": true}))
	require.NoError(t, src.SetReminders(ctx, []models.Reminder{{ID: "r1", Title: "Drink water", Type: models.ReminderDaily, UpdatedAt: 10}}))
	require.NoError(t, src.SetAnalytics(ctx, []models.AnalyticsRecord{{ID: "a1", StartedAt: 5, Duration: 60}}))

	up := reconcile.NewEngine(src, cloud, zerolog.Nop(), reconcile.WithTransactionalReplace())
	require.NoError(t, up.Upload(ctx, "u1"))
	require.NoError(t, up.Upload(ctx, "u1"))

	dst := localstore.New(localstore.NewMemory())
	down := reconcile.NewEngine(dst, cloud, zerolog.Nop())
	has, err := down.HasCloudData(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, has)

	pulled, err := down.Pull(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, pulled)

	reminders, err := dst.Reminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Reminder{{ID: "r1", Title: "Drink water", Type: models.ReminderDaily, UpdatedAt: 10}}, reminders)
	analytics, err := dst.Analytics(ctx)
	require.NoError(t, err)
	assert.Len(t, analytics, 1)
	settings, err := dst.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Settings{"strictMode": true}, settings)
}

func TestHasCloudDataUsesOneRequest(t *testing.T) {
	ctx := context.Background()
	backing, err := sqlstore.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backing.Close() })
	router := server.NewRouter(backing, server.Options{Logger: zerolog.Nop()})

	var mu sync.Mutex
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	cloud := New(ts.URL, "", time.Second)
	require.NoError(t, cloud.Analytics().Insert(ctx, "default", []models.AnalyticsRecord{{ID: "a1", StartedAt: 1}}))
	mu.Lock()
	paths = nil
	mu.Unlock()

	e := reconcile.NewEngine(localstore.New(localstore.NewMemory()), cloud, zerolog.Nop())
	has, err := e.HasCloudData(ctx, "default")
	require.NoError(t, err)
	assert.True(t, has)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/api/focussync/v1/presence"}, paths)
}

func TestPresenceCounts(t *testing.T) {
	ctx := context.Background()
	cloud := New(newServer(t, "tok").URL, "tok", time.Second)
	require.NoError(t, cloud.Settings().Upsert(ctx, "u1", models.Settings{}))
	require.NoError(t, cloud.Reminders().Insert(ctx, "u1", []models.Reminder{{ID: "r1"}, {ID: "r2"}}))

	p, err := cloud.Presence(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Settings)
	assert.Equal(t, 0, p.Apps)
	assert.Equal(t, 2, p.Reminders)
	assert.True(t, p.HasAny())

	p, err = cloud.Presence(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, p.HasAny())
}
