package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Class names a recurrence variant.
type Class string

const (
	ClassCustomDate   Class = "custom_date"
	ClassFixedWeekday Class = "fixed_weekday"
	ClassFixedWindow  Class = "fixed_window"
	ClassPhaseSet     Class = "phase_set"
	ClassDaily        Class = "daily"
)

// Recurrence is the closed set of recurrence variants. Only this package
// implements it.
type Recurrence interface {
	Class() Class
	isRecurrence()
}

// PastAnchorPolicy decides what happens when a custom-date anchor resolves
// to an instant that is already in the past.
type PastAnchorPolicy string

const (
	PastAnchorKeep        PastAnchorPolicy = "keep"
	PastAnchorAdvanceYear PastAnchorPolicy = "advance_year"
	PastAnchorReject      PastAnchorPolicy = "reject"
)

// CustomDate events start on a user-supplied calendar date.
type CustomDate struct {
	PastAnchor PastAnchorPolicy
}

// FixedWeekday events recur every CadenceWeeks weeks, counted from the week
// containing Epoch. Each instance pins its own weekday.
type FixedWeekday struct {
	Epoch        Date
	CadenceWeeks int
}

// FixedWindow events open every CadenceWeeks weeks on Epoch's weekday and
// stay open for WindowDays days. Instances pick a day inside the window.
type FixedWindow struct {
	Epoch        Date
	CadenceWeeks int
	WindowDays   int
}

// PhaseSet events are a fixed sequence of phases inside a cadence window.
// Each instance is one phase and pins its weekday.
type PhaseSet struct {
	Epoch        Date
	CadenceWeeks int
}

// Daily events occur every day at the configured wall-clock time.
type Daily struct{}

func (CustomDate) Class() Class   { return ClassCustomDate }
func (FixedWeekday) Class() Class { return ClassFixedWeekday }
func (FixedWindow) Class() Class  { return ClassFixedWindow }
func (PhaseSet) Class() Class     { return ClassPhaseSet }
func (Daily) Class() Class        { return ClassDaily }

func (CustomDate) isRecurrence()   {}
func (FixedWeekday) isRecurrence() {}
func (FixedWindow) isRecurrence()  {}
func (PhaseSet) isRecurrence()     {}
func (Daily) isRecurrence()        {}

// Date is a calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// At returns the instant of this date at hour:minute in loc.
func (d Date) At(hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) Weekday() time.Weekday { return d.At(0, 0, time.UTC).Weekday() }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWeekday accepts full or three-letter English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
	}
	return wd, nil
}
