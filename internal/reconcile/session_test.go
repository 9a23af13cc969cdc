package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focussync/internal/localstore"
	"focussync/internal/models"
	"focussync/internal/remote"
	"focussync/internal/status"
)

func newTestSession(local LocalStore, rs remote.Store, clock *fakeClock) *Session {
	return NewSession(newTestEngine(local, rs, clock), status.NewTracker(true), 5*time.Minute)
}

func reminderTitle(t *testing.T, s *localstore.Store, id string) string {
	t.Helper()
	items, err := s.Reminders(context.Background())
	require.NoError(t, err)
	for _, r := range items {
		if r.ID == id {
			return r.Title
		}
	}
	return ""
}

func TestTwoDeviceConvergence(t *testing.T) {
	ctx := context.Background()
	cloud := newCloud(t)
	clock := newClock()

	phone := newDevice()
	require.NoError(t, phone.SetReminders(ctx, []models.Reminder{
		{ID: "r1", Title: "Drink water", Type: models.ReminderDaily, Time: "10:00", Enabled: true, UpdatedAt: clock.Now().UnixMilli()},
	}))
	phoneSession := newTestSession(phone, cloud, clock)

	action, err := phoneSession.SignIn(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ActionPromptUpload, action)
	_, err = phoneSession.Resolve(ctx, "u1", ChoiceUpload)
	require.NoError(t, err)

	tablet := newDevice()
	tabletSession := newTestSession(tablet, cloud, clock)
	action, err = tabletSession.SignIn(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ActionPull, action)
	assert.Equal(t, "Drink water", reminderTitle(t, tablet, "r1"))
	migrated, err := tablet.Migrated(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, migrated)

	clock.Advance(time.Second)
	require.NoError(t, tablet.SetReminders(ctx, []models.Reminder{
		{ID: "r1", Title: "Drink more water", Type: models.ReminderDaily, Time: "10:00", Enabled: true, UpdatedAt: clock.Now().UnixMilli()},
	}))
	res, err := tabletSession.SaveToAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, res.RemindersChanged, "tablet copy is newer than the cloud")

	clock.Advance(6 * time.Minute)
	action, moved := phoneSession.Foreground(ctx, "u1")
	assert.Equal(t, ActionNoop, action)
	assert.True(t, moved)
	assert.Equal(t, "Drink more water", reminderTitle(t, phone, "r1"))
	assert.Equal(t, 1, phoneSession.Status().RemindersChanged)
	assert.True(t, phoneSession.Status().Connected)
}

func TestSignInBothEmptyLeavesFlagUnset(t *testing.T) {
	ctx := context.Background()
	local := newDevice()
	s := newTestSession(local, newCloud(t), newClock())

	action, err := s.SignIn(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action)
	migrated, err := local.Migrated(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, migrated)
}

func TestSignInPromptsMergeWhenBothHaveData(t *testing.T) {
	ctx := context.Background()
	cloud := newCloud(t)
	require.NoError(t, cloud.Reminders().Insert(ctx, "u1", []models.Reminder{{ID: "cloud-only", UpdatedAt: 1}}))
	local := newDevice()
	require.NoError(t, local.SetReminders(ctx, []models.Reminder{{ID: "local-only"}}))
	s := newTestSession(local, cloud, newClock())

	action, err := s.SignIn(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ActionPromptMerge, action)

	res, err := s.Resolve(ctx, "u1", ChoiceMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemindersChanged)

	n, err := cloud.Reminders().Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "merged result is uploaded")

	action, err = s.SignIn(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action, "migrated device is not prompted again")
}

func TestResolveKeepLocalMovesNothing(t *testing.T) {
	ctx := context.Background()
	cloud := newCloud(t)
	local := newDevice()
	require.NoError(t, local.SetReminders(ctx, []models.Reminder{{ID: "r1"}}))
	s := newTestSession(local, cloud, newClock())

	_, err := s.Resolve(ctx, "u1", ChoiceKeepLocal)
	require.NoError(t, err)
	has, err := newTestEngine(local, cloud, newClock()).HasCloudData(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, has)
	migrated, err := local.Migrated(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, migrated)
}

func TestResolveFailureKeepsPromptOpen(t *testing.T) {
	ctx := context.Background()
	local := newDevice()
	require.NoError(t, local.SetReminders(ctx, []models.Reminder{{ID: "r1"}}))
	cause := fmt.Errorf("%w: offline", models.ErrRemoteUnavailable)
	s := newTestSession(local, brokenReminders{Store: newCloud(t), err: cause}, newClock())

	_, err := s.Resolve(ctx, "u1", ChoiceUpload)
	require.Error(t, err)
	migrated, err := local.Migrated(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Contains(t, s.Status().LastError, "Reminders upload failed")

	_, err = s.Resolve(ctx, "u1", Choice(42))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestForegroundRespectsCooldown(t *testing.T) {
	ctx := context.Background()
	cloud := newCloud(t)
	clock := newClock()
	local := newDevice()
	seedDevice(t, local)
	s := newTestSession(local, cloud, clock)
	_, err := s.Resolve(ctx, "u1", ChoiceUpload)
	require.NoError(t, err)

	_, moved := s.Foreground(ctx, "u1")
	assert.True(t, moved, "first foreground sync has no previous sync time")

	clock.Advance(time.Minute)
	_, moved = s.Foreground(ctx, "u1")
	assert.False(t, moved)

	clock.Advance(5 * time.Minute)
	_, moved = s.Foreground(ctx, "u1")
	assert.True(t, moved)

	_, err = s.SaveToAccount(ctx, "u1")
	require.NoError(t, err, "explicit save ignores the cooldown")
}

// flakyAnalytics fails analytics deletes while down is set.
type flakyAnalytics struct {
	remote.Store
	down *atomic.Bool
}

func (f flakyAnalytics) Analytics() remote.Analytics {
	return flakyAnalyticsTable{Analytics: f.Store.Analytics(), down: f.down}
}

type flakyAnalyticsTable struct {
	remote.Analytics
	down *atomic.Bool
}

func (f flakyAnalyticsTable) Delete(ctx context.Context, userID string) error {
	if f.down.Load() {
		return fmt.Errorf("%w: connection reset", models.ErrRemoteUnavailable)
	}
	return f.Analytics.Delete(ctx, userID)
}

func TestForegroundRetriesFailedUpload(t *testing.T) {
	ctx := context.Background()
	down := &atomic.Bool{}
	cloud := flakyAnalytics{Store: newCloud(t), down: down}
	clock := newClock()
	local := newDevice()
	seedDevice(t, local)
	s := newTestSession(local, cloud, clock)
	_, err := s.Resolve(ctx, "u1", ChoiceUpload)
	require.NoError(t, err)

	items, err := local.Reminders(ctx)
	require.NoError(t, err)
	items = append(items, models.Reminder{ID: "r3", Title: "Walk", Type: models.ReminderDaily, Time: "18:00", UpdatedAt: clock.Now().UnixMilli()})
	require.NoError(t, local.SetReminders(ctx, items))

	down.Store(true)
	_, moved := s.Foreground(ctx, "u1")
	assert.False(t, moved)
	assert.Contains(t, s.Status().LastError, "Analytics upload failed")
	last, err := local.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, last, "a failed upload leaves the previous sync time")

	down.Store(false)
	_, moved = s.Foreground(ctx, "u1")
	assert.True(t, moved, "next foreground retries without waiting for the cooldown")
	assert.Empty(t, s.Status().LastError)

	recs, err := cloud.Reminders().List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	last, err = local.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().UnixMilli(), last)
}

func TestFailedUploadKeepsEarlierSyncTime(t *testing.T) {
	ctx := context.Background()
	down := &atomic.Bool{}
	clock := newClock()
	local := newDevice()
	seedDevice(t, local)
	s := newTestSession(local, flakyAnalytics{Store: newCloud(t), down: down}, clock)
	_, err := s.SaveToAccount(ctx, "u1")
	require.NoError(t, err)
	synced := clock.Now().UnixMilli()

	clock.Advance(10 * time.Minute)
	down.Store(true)
	_, err = s.SaveToAccount(ctx, "u1")
	require.ErrorIs(t, err, models.ErrRemoteUnavailable)
	last, err := local.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, synced, last)
}

func TestZeroCooldownMergesEveryForeground(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	local := newDevice()
	seedDevice(t, local)
	s := NewSession(newTestEngine(local, newCloud(t), clock), status.NewTracker(true), 0)
	_, err := s.Resolve(ctx, "u1", ChoiceUpload)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, moved := s.Foreground(ctx, "u1")
		assert.True(t, moved, "foreground %d", i)
	}
}

func TestNegativeCooldownUsesDefault(t *testing.T) {
	s := NewSession(newTestEngine(newDevice(), newCloud(t), newClock()), nil, -time.Second)
	assert.Equal(t, DefaultMergeCooldown, s.cooldown)
}

func TestForegroundSkipsUnmigratedDevice(t *testing.T) {
	ctx := context.Background()
	local := newDevice()
	seedDevice(t, local)
	s := newTestSession(local, newCloud(t), newClock())

	action, moved := s.Foreground(ctx, "u1")
	assert.Equal(t, ActionPromptUpload, action)
	assert.False(t, moved)
}

func TestForegroundSwallowsErrors(t *testing.T) {
	ctx := context.Background()
	local := newDevice()
	require.NoError(t, local.SetMigrated(ctx, "u1", true))
	cause := errors.Join(models.ErrRemoteUnavailable, errors.New("dial tcp: refused"))
	s := newTestSession(local, brokenReminders{Store: newCloud(t), err: cause}, newClock())

	action, moved := s.Foreground(ctx, "u1")
	assert.Equal(t, ActionNoop, action)
	assert.False(t, moved)
	st := s.Status()
	assert.False(t, st.Connected)
	assert.Contains(t, st.LastError, "Reminders presence failed")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestSession(newDevice(), newCloud(t), newClock())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, "u1", 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseChoice(t *testing.T) {
	for in, want := range map[string]Choice{
		"upload":     ChoiceUpload,
		"replace":    ChoiceReplaceWithCloud,
		"MERGE":      ChoiceMerge,
		"keep-local": ChoiceKeepLocal,
	} {
		got, err := ParseChoice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseChoice("nope")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}
