// Package status tracks the outcome of the most recent background sync so a
// UI or CLI can show whether the account is in step with the device.
package status

import (
	"sync"
	"time"
)

type SyncStatus struct {
	Enabled          bool   `json:"enabled"`
	Connected        bool   `json:"connected"`
	UserID           string `json:"user_id,omitempty"`
	LastAction       string `json:"last_action,omitempty"`
	LastSuccessUnix  int64  `json:"last_success_unix"`
	RemindersChanged int    `json:"reminders_changed"`
	AnalyticsAdded   int    `json:"analytics_added"`
	LastError        string `json:"last_error"`
	LastErrorUnix    int64  `json:"last_error_unix,omitempty"`
}

type Tracker struct {
	mu  sync.RWMutex
	now func() time.Time
	s   SyncStatus
}

func NewTracker(enabled bool) *Tracker {
	return &Tracker{now: time.Now, s: SyncStatus{Enabled: enabled}}
}

// Counts carries the merge tallies recorded with a success.
type Counts struct {
	RemindersChanged int
	AnalyticsAdded   int
}

func (t *Tracker) MarkSuccess(userID, action string, c Counts) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Connected = true
	t.s.UserID = userID
	t.s.LastAction = action
	t.s.LastError = ""
	t.s.LastSuccessUnix = t.now().Unix()
	t.s.RemindersChanged = c.RemindersChanged
	t.s.AnalyticsAdded = c.AnalyticsAdded
}

func (t *Tracker) MarkError(userID, action string, err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Connected = false
	t.s.UserID = userID
	t.s.LastAction = action
	t.s.LastError = err.Error()
	t.s.LastErrorUnix = t.now().Unix()
}

func (t *Tracker) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Enabled = enabled
}

func (t *Tracker) Snapshot() SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.s
}
