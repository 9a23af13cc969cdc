package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"focussync/internal/models"
	"focussync/internal/status"
)

const DefaultMergeCooldown = 5 * time.Minute

// Choice is the user's answer to an upload or merge prompt.
type Choice int

const (
	// ChoiceUpload pushes local data to the account, replacing the cloud copy.
	ChoiceUpload Choice = iota + 1
	// ChoiceReplaceWithCloud discards local data in favor of the cloud copy.
	ChoiceReplaceWithCloud
	// ChoiceMerge merges the cloud copy in, then uploads the result.
	ChoiceMerge
	// ChoiceKeepLocal records the device as reconciled without moving data.
	ChoiceKeepLocal
)

func (c Choice) String() string {
	switch c {
	case ChoiceUpload:
		return "upload"
	case ChoiceReplaceWithCloud:
		return "replace"
	case ChoiceMerge:
		return "merge"
	case ChoiceKeepLocal:
		return "keep-local"
	default:
		return "unknown"
	}
}

func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upload":
		return ChoiceUpload, nil
	case "replace", "replace-with-cloud", "cloud":
		return ChoiceReplaceWithCloud, nil
	case "merge":
		return ChoiceMerge, nil
	case "keep-local", "keep", "skip":
		return ChoiceKeepLocal, nil
	}
	return 0, fmt.Errorf("%w: unknown choice %q", models.ErrInvalidArgument, s)
}

// Observation is the input to Decide as read from both stores.
type Observation struct {
	HasLocal bool `json:"hasLocal"`
	HasCloud bool `json:"hasCloud"`
	Migrated bool `json:"migrated"`
}

// Session drives the engine for one device: the sign-in decision, prompt
// resolution and the throttled foreground merge.
type Session struct {
	mu sync.Mutex

	engine   *Engine
	tracker  *status.Tracker
	cooldown time.Duration
	log      zerolog.Logger
}

// NewSession builds a session. A zero cooldown merges on every foreground
// event; a negative one falls back to DefaultMergeCooldown.
func NewSession(engine *Engine, tracker *status.Tracker, cooldown time.Duration) *Session {
	if tracker == nil {
		tracker = status.NewTracker(true)
	}
	if cooldown < 0 {
		cooldown = DefaultMergeCooldown
	}
	return &Session{
		engine:   engine,
		tracker:  tracker,
		cooldown: cooldown,
		log:      engine.log.With().Str("component", "session").Logger(),
	}
}

func (s *Session) Status() status.SyncStatus { return s.tracker.Snapshot() }

func (s *Session) Observe(ctx context.Context, userID string) (Observation, error) {
	if err := validateUser(userID); err != nil {
		return Observation{}, err
	}
	hasLocal, err := s.engine.HasLocalData(ctx)
	if err != nil {
		return Observation{}, err
	}
	hasCloud, err := s.engine.HasCloudData(ctx, userID)
	if err != nil {
		return Observation{}, err
	}
	migrated, err := s.engine.local.Migrated(ctx, userID)
	if err != nil {
		return Observation{}, wrap(CollectionLocal, OpSnapshot, err)
	}
	return Observation{HasLocal: hasLocal, HasCloud: hasCloud, Migrated: migrated}, nil
}

// SignIn evaluates the decision for userID and performs the silent pull
// when that is the outcome. Prompt actions are returned for the caller to
// surface; Resolve completes them.
func (s *Session) SignIn(ctx context.Context, userID string) (Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs, err := s.Observe(ctx, userID)
	if err != nil {
		s.tracker.MarkError(userID, "signin", err)
		return ActionNoop, err
	}
	action := Decide(obs.HasLocal, obs.HasCloud, obs.Migrated)
	s.log.Info().
		Str("user_id", userID).
		Bool("has_local", obs.HasLocal).
		Bool("has_cloud", obs.HasCloud).
		Bool("migrated", obs.Migrated).
		Stringer("action", action).
		Msg("sign-in decision")

	if action == ActionPull {
		if err := s.pull(ctx, userID); err != nil {
			return action, err
		}
	}
	return action, nil
}

// Resolve carries out the user's answer to a prompt. The device is marked
// migrated only when every step succeeds, so a failed choice can be retried.
func (s *Session) Resolve(ctx context.Context, userID string, choice Choice) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateUser(userID); err != nil {
		return MergeResult{}, err
	}
	var res MergeResult
	var err error
	switch choice {
	case ChoiceUpload:
		err = s.engine.Upload(ctx, userID)
	case ChoiceReplaceWithCloud:
		_, err = s.engine.Pull(ctx, userID)
	case ChoiceMerge:
		res, err = s.mergeAndUpload(ctx, userID)
	case ChoiceKeepLocal:
	default:
		return MergeResult{}, fmt.Errorf("%w: unknown choice %d", models.ErrInvalidArgument, int(choice))
	}
	if err != nil {
		s.tracker.MarkError(userID, choice.String(), err)
		return MergeResult{}, err
	}
	if err := s.markMigrated(ctx, userID); err != nil {
		s.tracker.MarkError(userID, choice.String(), err)
		return res, err
	}
	s.tracker.MarkSuccess(userID, choice.String(), status.Counts{
		RemindersChanged: res.RemindersChanged,
		AnalyticsAdded:   res.AnalyticsAdded,
	})
	return res, nil
}

// Foreground re-evaluates the decision when the app returns to the
// foreground. An empty device pulls; a migrated device merges and uploads
// unless the last sync is newer than the cooldown. Failures are recorded in
// the status tracker and logged, never returned. The reported bool says
// whether any data moved.
func (s *Session) Foreground(ctx context.Context, userID string) (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs, err := s.Observe(ctx, userID)
	if err != nil {
		s.fail(userID, "foreground", err)
		return ActionNoop, false
	}
	action := Decide(obs.HasLocal, obs.HasCloud, obs.Migrated)
	switch action {
	case ActionPull:
		if err := s.pull(ctx, userID); err != nil {
			s.fail(userID, "foreground", err)
			return action, false
		}
		return action, true
	case ActionNoop:
		if !obs.Migrated || !obs.HasLocal {
			return action, false
		}
		due, err := s.cooldownElapsed(ctx, userID)
		if err != nil {
			s.fail(userID, "foreground", err)
			return action, false
		}
		if !due {
			s.log.Debug().Str("user_id", userID).Msg("merge skipped: within cooldown")
			return action, false
		}
		if _, err := s.sync(ctx, userID, "foreground"); err != nil {
			s.fail(userID, "foreground", err)
			return action, false
		}
		return action, true
	}
	return action, false
}

// SaveToAccount merges and uploads immediately, ignoring the cooldown.
func (s *Session) SaveToAccount(ctx context.Context, userID string) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sync(ctx, userID, "save")
	if err != nil {
		s.tracker.MarkError(userID, "save", err)
		return MergeResult{}, err
	}
	if err := s.markMigrated(ctx, userID); err != nil {
		s.tracker.MarkError(userID, "save", err)
		return res, err
	}
	return res, nil
}

// Run calls Foreground once and then on every tick until ctx is done.
func (s *Session) Run(ctx context.Context, userID string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.Foreground(ctx, userID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Foreground(ctx, userID)
		}
	}
}

func (s *Session) sync(ctx context.Context, userID, action string) (MergeResult, error) {
	res, err := s.mergeAndUpload(ctx, userID)
	if err != nil {
		return MergeResult{}, err
	}
	s.tracker.MarkSuccess(userID, action, status.Counts{
		RemindersChanged: res.RemindersChanged,
		AnalyticsAdded:   res.AnalyticsAdded,
	})
	return res, nil
}

// mergeAndUpload runs Merge then Upload. The sync time Merge records only
// stands once Upload succeeds, so a failed upload is retried on the next
// foreground event instead of waiting out the cooldown.
func (s *Session) mergeAndUpload(ctx context.Context, userID string) (MergeResult, error) {
	prev, err := s.engine.local.LastSyncAt(ctx, userID)
	if err != nil {
		return MergeResult{}, wrap(CollectionLocal, OpMerge, err)
	}
	res, err := s.engine.Merge(ctx, userID)
	if err != nil {
		return MergeResult{}, err
	}
	if err := s.engine.Upload(ctx, userID); err != nil {
		if rerr := s.engine.local.SetLastSyncAt(ctx, userID, prev); rerr != nil {
			s.log.Warn().Err(rerr).Str("user_id", userID).Msg("restore last sync time")
		}
		return res, err
	}
	return res, nil
}

func (s *Session) pull(ctx context.Context, userID string) error {
	if _, err := s.engine.Pull(ctx, userID); err != nil {
		s.tracker.MarkError(userID, "pull", err)
		return err
	}
	if err := s.markMigrated(ctx, userID); err != nil {
		s.tracker.MarkError(userID, "pull", err)
		return err
	}
	s.tracker.MarkSuccess(userID, "pull", status.Counts{})
	return nil
}

func (s *Session) markMigrated(ctx context.Context, userID string) error {
	if err := s.engine.local.SetMigrated(ctx, userID, true); err != nil {
		return wrap(CollectionLocal, OpSnapshot, err)
	}
	return nil
}

func (s *Session) cooldownElapsed(ctx context.Context, userID string) (bool, error) {
	last, err := s.engine.local.LastSyncAt(ctx, userID)
	if err != nil {
		return false, wrap(CollectionLocal, OpSnapshot, err)
	}
	if last == 0 || s.cooldown == 0 {
		return true, nil
	}
	return s.engine.now().Sub(time.UnixMilli(last)) >= s.cooldown, nil
}

func (s *Session) fail(userID, action string, err error) {
	s.tracker.MarkError(userID, action, err)
	s.log.Warn().Err(err).Str("user_id", userID).Str("action", action).Msg("background sync failed")
}
