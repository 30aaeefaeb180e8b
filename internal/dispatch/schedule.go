package dispatch

import (
	"time"

	"eventbot/internal/schedule"
)

// alertSchedule fires at first and then every interval. A zero interval
// fires once; cron treats the zero time as "never again".
type alertSchedule struct {
	first time.Time
	every time.Duration
}

func newAlertSchedule(row schedule.Row, lead int) alertSchedule {
	return alertSchedule{
		first: row.StartAt.Add(-time.Duration(lead) * time.Minute),
		every: row.Repeat(),
	}
}

// Next returns the first fire strictly after t.
func (s alertSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	if s.every <= 0 {
		return time.Time{}
	}
	n := t.Sub(s.first)/s.every + 1
	return s.first.Add(n * s.every)
}
