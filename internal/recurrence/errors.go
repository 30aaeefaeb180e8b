package recurrence

import "errors"

var (
	ErrAnchorRequired  = errors.New("recurrence: anchor date required")
	ErrAnchorInPast    = errors.New("recurrence: anchor date is in the past")
	ErrUnknownInstance = errors.New("recurrence: unknown instance")
	ErrDayOutOfWindow  = errors.New("recurrence: day outside event window")
	ErrNoOccurrence    = errors.New("recurrence: rule has no further occurrence")
	ErrNotPaired       = errors.New("recurrence: event has no weekday pair")
)
