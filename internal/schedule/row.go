package schedule

import (
	"time"

	"eventbot/internal/recurrence"
)

// Payload is the presentation attached to a reminder.
type Payload struct {
	Title        string
	Description  string
	ImageURL     string
	ThumbnailURL string
}

// Fields are the writable columns of a persisted instance.
type Fields struct {
	Batch Batch
	// Key is stored as written. Rows created before instance identifiers
	// existed carry an empty Key.Instance.
	Key           InstanceKey
	Hour          int
	Minute        int
	Day           int
	Timezone      string
	StartAt       time.Time
	RepeatMinutes int
	Mention       Mention
	Alert         AlertProfile
	Payload       Payload
}

// Row is one persisted instance. Disabled rows are kept.
type Row struct {
	ID int64
	Fields
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (f Fields) Clock() string { return recurrence.FormatClock(f.Hour, f.Minute) }

// Location resolves Timezone, falling back to UTC.
func (f Fields) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (f Fields) Repeat() time.Duration { return time.Duration(f.RepeatMinutes) * time.Minute }

// NextFire returns the first occurrence at or after t: StartAt advanced by
// whole repeat intervals. Non-repeating rows report false once StartAt has
// passed.
func (f Fields) NextFire(t time.Time) (time.Time, bool) {
	if f.StartAt.IsZero() {
		return time.Time{}, false
	}
	if !f.StartAt.Before(t) {
		return f.StartAt, true
	}
	every := f.Repeat()
	if every <= 0 {
		return time.Time{}, false
	}
	n := t.Sub(f.StartAt) / every
	next := f.StartAt.Add(n * every)
	if next.Before(t) {
		next = next.Add(every)
	}
	return next, true
}
