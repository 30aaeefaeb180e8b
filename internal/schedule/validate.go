package schedule

import (
	"fmt"
	"slices"
	"strconv"

	"eventbot/internal/catalog"
	"eventbot/internal/recurrence"
)

// ValidateInstance checks one desired instance against its definition.
func ValidateInstance(def *catalog.Definition, d DesiredInstance) error {
	key := d.Key
	if def == nil {
		return invalid("event_type", key.EventType, "a catalog event type", "unknown event type")
	}
	if _, ok := def.Instance(key.Instance); !ok {
		return invalid(key.String()+".instance", key.Instance, fmt.Sprint(def.InstanceIDs()), "unknown instance")
	}
	if d.Hour < 0 || d.Hour > 23 {
		return invalid(key.String()+".hour", strconv.Itoa(d.Hour), "0-23", "hour out of range")
	}
	if d.Minute < 0 || d.Minute > 59 {
		return invalid(key.String()+".minute", strconv.Itoa(d.Minute), "0-59", "minute out of range")
	}
	if !recurrence.OnGrid(d.Minute, def.GridMinutes) {
		return invalid(key.String()+".minute", strconv.Itoa(d.Minute),
			fmt.Sprintf("a multiple of %d", def.GridMinutes), "minute is off the time grid")
	}
	if len(def.TimeSlots) > 0 && !slices.Contains(def.TimeSlots, d.Clock()) {
		return invalid(key.String()+".time", d.Clock(), fmt.Sprint(def.TimeSlots), "not one of the event's time slots")
	}

	switch r := def.Recurrence.(type) {
	case catalog.CustomDate:
		if d.Anchor.IsZero() {
			return invalid(key.String()+".date", "", "YYYY-MM-DD", "date is required for this event")
		}
		if d.Day != 0 {
			return invalid(key.String()+".day", strconv.Itoa(d.Day), "no day", "day only applies to multi-day windows")
		}
	case catalog.FixedWindow:
		if d.Day < 0 || d.Day > r.WindowDays {
			return invalid(key.String()+".day", strconv.Itoa(d.Day), fmt.Sprintf("1-%d", r.WindowDays), "day outside the event window")
		}
		if !d.Anchor.IsZero() {
			return invalid(key.String()+".date", d.Anchor.String(), "no date", "this event follows a fixed calendar")
		}
	default:
		if d.Day != 0 {
			return invalid(key.String()+".day", strconv.Itoa(d.Day), "no day", "day only applies to multi-day windows")
		}
		if !d.Anchor.IsZero() {
			return invalid(key.String()+".date", d.Anchor.String(), "no date", "this event follows a fixed calendar")
		}
	}

	if d.RepeatMinutes != nil {
		rm := *d.RepeatMinutes
		if rm < 0 || (rm == 0 && def.Class() != catalog.ClassCustomDate) {
			return invalid(key.String()+".repeat_minutes", strconv.Itoa(rm), "> 0", "repeat interval must be positive")
		}
	}
	return nil
}

// ValidateSet checks every instance and the minimum wall-clock separation
// between instances of one event that share a date.
func ValidateSet(cat *catalog.Catalog, set DesiredSet) error {
	for _, d := range set.All() {
		def, _ := cat.Get(d.Key.EventType)
		if err := ValidateInstance(def, d); err != nil {
			return err
		}
	}
	for _, eventType := range set.EventTypes() {
		def, _ := cat.Get(eventType)
		if def.MinSeparationMinutes <= 0 {
			continue
		}
		ins := set.Instances(eventType)
		for i := 0; i < len(ins); i++ {
			for j := i + 1; j < len(ins); j++ {
				a, b := ins[i], ins[j]
				if a.Anchor != b.Anchor || a.Day != b.Day {
					continue
				}
				gap := (b.Hour*60 + b.Minute) - (a.Hour*60 + a.Minute)
				if gap < 0 {
					gap = -gap
				}
				if gap < def.MinSeparationMinutes {
					return invalid(b.Key.String()+".time", b.Clock(),
						fmt.Sprintf("at least %d minutes from %s (%s)", def.MinSeparationMinutes, a.Key.Instance, a.Clock()),
						fmt.Sprintf("instances are only %d minutes apart", gap))
				}
			}
		}
	}
	return nil
}
