package models

type ReminderType string

const (
	ReminderDaily   ReminderType = "daily"
	ReminderWeekly  ReminderType = "weekly"
	ReminderWeekday ReminderType = "weekday"
	ReminderOnce    ReminderType = "once"
	ReminderCustom  ReminderType = "custom"
)

func (t ReminderType) Valid() bool {
	switch t {
	case ReminderDaily, ReminderWeekly, ReminderWeekday, ReminderOnce, ReminderCustom:
		return true
	}
	return false
}

// Reminder is identified by ID. UpdatedAt is epoch milliseconds of the last
// modification on whichever replica made it; zero means unknown and loses
// every comparison.
type Reminder struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Type          ReminderType `json:"type"`
	Time          string       `json:"time,omitempty"`
	ScheduledDate string       `json:"scheduledDate,omitempty"`
	Weekdays      []int        `json:"weekdays,omitempty"`
	Enabled       bool         `json:"enabled"`
	UpdatedAt     int64        `json:"updatedAt,omitempty"`
}

// AppSelection is stored and replaced as one document per user.
type AppSelection struct {
	Blocked        map[string]bool `json:"blocked"`
	SelectionToken string          `json:"selectionToken,omitempty"`
}

func (a AppSelection) IsEmpty() bool {
	return len(a.Blocked) == 0 && a.SelectionToken == ""
}

type AnalyticsRecord struct {
	ID        string   `json:"id"`
	StartedAt int64    `json:"startedAt"`
	Duration  int64    `json:"duration"`
	FocusApps []string `json:"focusApps,omitempty"`
}

// Settings is a flat set of boolean preference flags. A nil Settings means
// no settings document exists; an empty non-nil map is a stored empty
// document.
type Settings map[string]bool

// Snapshot holds every collection for one user at a point in time.
type Snapshot struct {
	Settings  Settings          `json:"settings"`
	Apps      AppSelection      `json:"apps"`
	Reminders []Reminder        `json:"reminders"`
	Analytics []AnalyticsRecord `json:"analytics"`

	// Skipped counts remote rows dropped because they could not be decoded
	// or carried no id.
	Skipped int `json:"skipped,omitempty"`
}

// HasAny reports whether any collection carries content.
func (s Snapshot) HasAny() bool {
	return len(s.Settings) > 0 || !s.Apps.IsEmpty() || len(s.Reminders) > 0 || len(s.Analytics) > 0
}

// EmptySnapshot returns a snapshot with present-but-empty collections.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Apps:      AppSelection{Blocked: map[string]bool{}},
		Reminders: []Reminder{},
		Analytics: []AnalyticsRecord{},
	}
}
