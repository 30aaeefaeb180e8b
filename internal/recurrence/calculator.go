package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"eventbot/internal/catalog"
)

// Slot is the user-chosen part of an instance's schedule.
type Slot struct {
	Instance string
	Hour     int
	Minute   int
	// Anchor is the calendar date for custom-date events.
	Anchor catalog.Date
	// Day is the 1-based day inside a multi-day window. 0 means the first day.
	Day int
}

// Calculator answers calendar questions about catalog events. All results
// are computed in the location the caller passes in.
type Calculator struct {
	cat *catalog.Catalog
	now func() time.Time
}

type Option func(*Calculator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

func New(cat *catalog.Catalog, opts ...Option) *Calculator {
	c := &Calculator{cat: cat, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Calculator) Now() time.Time { return c.now() }

func (c *Calculator) Catalog() *catalog.Catalog { return c.cat }

func (c *Calculator) definition(eventType string) (*catalog.Definition, error) {
	d, ok := c.cat.Get(eventType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownEvent, eventType)
	}
	return d, nil
}

// NextOccurrence returns the next calendar date (midnight in loc) on or after
// today on which the event takes place. ok is false for events without a
// fixed calendar rule. For a multi-day window that is already open, today is
// returned.
func (c *Calculator) NextOccurrence(eventType string, loc *time.Location) (date time.Time, ok bool, err error) {
	def, err := c.definition(eventType)
	if err != nil {
		return time.Time{}, false, err
	}
	loc = orUTC(loc)
	today := midnight(c.now().In(loc))

	var next time.Time
	switch r := def.Recurrence.(type) {
	case catalog.CustomDate:
		return time.Time{}, false, nil
	case catalog.Daily:
		return today, true, nil
	case catalog.FixedWeekday:
		next, err = nextOnWeekdays(r.Epoch, r.CadenceWeeks, instanceWeekdays(def), today)
	case catalog.PhaseSet:
		next, err = nextOnWeekdays(r.Epoch, r.CadenceWeeks, instanceWeekdays(def), today)
	case catalog.FixedWindow:
		rule, rerr := weeklyRule(r.Epoch, r.CadenceWeeks, []time.Weekday{r.Epoch.Weekday()}, 0, 0, loc)
		if rerr != nil {
			return time.Time{}, false, rerr
		}
		if open := rule.Before(today, true); !open.IsZero() && today.Before(open.AddDate(0, 0, r.WindowDays)) {
			return today, true, nil
		}
		next = rule.After(today, true)
	default:
		return time.Time{}, false, fmt.Errorf("recurrence: unsupported class %T", r)
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

// CrazyJoeDates returns the next Tuesday/Thursday pair of the Crazy Joe
// cadence whose Tuesday falls on or after ref's date.
func (c *Calculator) CrazyJoeDates(ref time.Time) (tuesday, thursday time.Time, err error) {
	return c.PairDates("crazy_joe", ref)
}

// PairDates returns the dates of an event's first two weekday instances in
// the next cadence window whose first date is on or after ref's date. Both
// dates are midnight in ref's location and fall in the same window.
func (c *Calculator) PairDates(eventType string, ref time.Time) (first, second time.Time, err error) {
	def, err := c.definition(eventType)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	var (
		epoch   catalog.Date
		cadence int
	)
	switch r := def.Recurrence.(type) {
	case catalog.FixedWeekday:
		epoch, cadence = r.Epoch, r.CadenceWeeks
	case catalog.PhaseSet:
		epoch, cadence = r.Epoch, r.CadenceWeeks
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrNotPaired, eventType)
	}
	if len(def.Instances) < 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrNotPaired, eventType)
	}
	a, b := def.Instances[0].Weekday, def.Instances[1].Weekday
	gap := mondayIndex(b) - mondayIndex(a)
	if gap < 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s second weekday precedes first", ErrNotPaired, eventType)
	}

	first, err = nextOnWeekdays(epoch, cadence, []time.Weekday{a}, midnight(ref))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if first.IsZero() {
		return time.Time{}, time.Time{}, ErrNoOccurrence
	}
	return first, first.AddDate(0, 0, gap), nil
}

// InstanceStart returns the first fire instant for one configured instance.
//
// Fixed-calendar events yield the first rule occurrence at slot time that is
// not earlier than now. Custom-date events combine the anchor with the slot
// time and then apply the event's past-anchor policy.
func (c *Calculator) InstanceStart(def *catalog.Definition, slot Slot, loc *time.Location) (time.Time, error) {
	loc = orUTC(loc)
	now := c.now().In(loc)

	switch r := def.Recurrence.(type) {
	case catalog.CustomDate:
		if slot.Anchor.IsZero() {
			return time.Time{}, ErrAnchorRequired
		}
		start := slot.Anchor.At(slot.Hour, slot.Minute, loc)
		if start.Before(now) {
			switch r.PastAnchor {
			case catalog.PastAnchorAdvanceYear:
				start = start.AddDate(1, 0, 0)
			case catalog.PastAnchorReject:
				return time.Time{}, fmt.Errorf("%w: %s", ErrAnchorInPast, start.Format(time.RFC3339))
			}
		}
		return start, nil

	case catalog.FixedWeekday:
		return instanceOnWeekday(def, r.Epoch, r.CadenceWeeks, slot, now)
	case catalog.PhaseSet:
		return instanceOnWeekday(def, r.Epoch, r.CadenceWeeks, slot, now)

	case catalog.FixedWindow:
		day := slot.Day
		if day == 0 {
			day = 1
		}
		if day < 1 || day > r.WindowDays {
			return time.Time{}, fmt.Errorf("%w: day %d of %d", ErrDayOutOfWindow, day, r.WindowDays)
		}
		rule, err := weeklyRule(r.Epoch, r.CadenceWeeks, []time.Weekday{r.Epoch.Weekday()}, slot.Hour, slot.Minute, loc)
		if err != nil {
			return time.Time{}, err
		}
		// window start + (day-1) >= now  <=>  window start >= now - (day-1)
		open := rule.After(now.AddDate(0, 0, -(day-1)), true)
		if open.IsZero() {
			return time.Time{}, ErrNoOccurrence
		}
		return open.AddDate(0, 0, day-1), nil

	case catalog.Daily:
		t := time.Date(now.Year(), now.Month(), now.Day(), slot.Hour, slot.Minute, 0, 0, loc)
		if t.Before(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("recurrence: unsupported class %T", def.Recurrence)
}

func instanceOnWeekday(def *catalog.Definition, epoch catalog.Date, cadence int, slot Slot, now time.Time) (time.Time, error) {
	in, ok := def.Instance(slot.Instance)
	if !ok || !in.HasWeekday {
		return time.Time{}, fmt.Errorf("%w: %s/%s", ErrUnknownInstance, def.Name, slot.Instance)
	}
	rule, err := weeklyRule(epoch, cadence, []time.Weekday{in.Weekday}, slot.Hour, slot.Minute, now.Location())
	if err != nil {
		return time.Time{}, err
	}
	t := rule.After(now, true)
	if t.IsZero() {
		return time.Time{}, ErrNoOccurrence
	}
	return t, nil
}

func nextOnWeekdays(epoch catalog.Date, cadence int, days []time.Weekday, from time.Time) (time.Time, error) {
	rule, err := weeklyRule(epoch, cadence, days, 0, 0, from.Location())
	if err != nil {
		return time.Time{}, err
	}
	return rule.After(from, true), nil
}

var rruleDays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// weeklyRule is FREQ=WEEKLY;INTERVAL=cadence;BYDAY=days;WKST=MO anchored at
// the epoch date with the given wall-clock time in loc.
func weeklyRule(epoch catalog.Date, cadence int, days []time.Weekday, hour, minute int, loc *time.Location) (*rrule.RRule, error) {
	byday := make([]rrule.Weekday, 0, len(days))
	seen := map[time.Weekday]bool{}
	for _, d := range days {
		if seen[d] {
			continue
		}
		seen[d] = true
		byday = append(byday, rruleDays[d])
	}
	if cadence < 1 {
		cadence = 1
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  cadence,
		Wkst:      rrule.MO,
		Byweekday: byday,
		Dtstart:   epoch.At(hour, minute, loc),
	})
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}
	return r, nil
}

func instanceWeekdays(def *catalog.Definition) []time.Weekday {
	out := make([]time.Weekday, 0, len(def.Instances))
	for _, in := range def.Instances {
		if in.HasWeekday {
			out = append(out, in.Weekday)
		}
	}
	return out
}

// mondayIndex maps Monday..Sunday to 0..6, matching WKST=MO windows.
func mondayIndex(d time.Weekday) int { return (int(d) + 6) % 7 }

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
