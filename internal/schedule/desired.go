package schedule

import (
	"fmt"
	"sort"

	"eventbot/internal/catalog"
	"eventbot/internal/recurrence"
)

// DesiredInstance is one enabled instance as chosen by the user.
type DesiredInstance struct {
	Key    InstanceKey
	Hour   int
	Minute int
	// Anchor is the calendar date of custom-date events.
	Anchor catalog.Date
	// Day is the 1-based day inside a multi-day window.
	Day int
	// RepeatMinutes overrides the catalog interval when set.
	RepeatMinutes *int
}

func (d DesiredInstance) Clock() string { return recurrence.FormatClock(d.Hour, d.Minute) }

func (d DesiredInstance) Slot() recurrence.Slot {
	return recurrence.Slot{
		Instance: d.Key.Instance,
		Hour:     d.Hour,
		Minute:   d.Minute,
		Anchor:   d.Anchor,
		Day:      d.Day,
	}
}

func (d DesiredInstance) clone() DesiredInstance {
	if d.RepeatMinutes != nil {
		v := *d.RepeatMinutes
		d.RepeatMinutes = &v
	}
	return d
}

// DesiredSet is the finalized, read-only set of enabled instances. An event
// type with no instances in the set counts as not configured.
type DesiredSet struct {
	items map[InstanceKey]DesiredInstance
}

func (s DesiredSet) Len() int { return len(s.items) }

// Get returns a copy of the instance stored under k.
func (s DesiredSet) Get(k InstanceKey) (DesiredInstance, bool) {
	d, ok := s.items[k]
	if !ok {
		return DesiredInstance{}, false
	}
	return d.clone(), true
}

// Has reports whether eventType has at least one desired instance.
func (s DesiredSet) Has(eventType string) bool {
	for k := range s.items {
		if k.EventType == eventType {
			return true
		}
	}
	return false
}

// EventTypes returns the configured event types, sorted.
func (s DesiredSet) EventTypes() []string {
	seen := map[string]bool{}
	var out []string
	for k := range s.items {
		if !seen[k.EventType] {
			seen[k.EventType] = true
			out = append(out, k.EventType)
		}
	}
	sort.Strings(out)
	return out
}

// Instances returns the instances of eventType sorted by instance id.
func (s DesiredSet) Instances(eventType string) []DesiredInstance {
	var out []DesiredInstance
	for k, d := range s.items {
		if k.EventType == eventType {
			out = append(out, d.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// All returns every instance sorted by key.
func (s DesiredSet) All() []DesiredInstance {
	out := make([]DesiredInstance, 0, len(s.items))
	for _, d := range s.items {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Builder accumulates choices and finalizes them once into a DesiredSet.
// Each instance is validated on Add; cross-instance rules run in Build.
// A Builder is not safe for concurrent use.
type Builder struct {
	cat   *catalog.Catalog
	items map[InstanceKey]DesiredInstance
	built bool
}

func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{cat: cat, items: map[InstanceKey]DesiredInstance{}}
}

// Add validates d and stores it, replacing any earlier choice for the same key.
func (b *Builder) Add(d DesiredInstance) error {
	if b.built {
		return ErrBuilderFinalized
	}
	d.Key = NewInstanceKey(d.Key.EventType, d.Key.Instance)
	def, _ := b.cat.Get(d.Key.EventType)
	if err := ValidateInstance(def, d); err != nil {
		return err
	}
	b.items[d.Key] = d.clone()
	return nil
}

// AddClock adds an instance from an "HH:MM" string.
func (b *Builder) AddClock(eventType, instance, clock string) error {
	h, m, err := recurrence.ParseTimeSlot(clock)
	if err != nil {
		key := NewInstanceKey(eventType, instance)
		return invalid(key.String()+".time", clock, "HH:MM", err.Error())
	}
	return b.Add(DesiredInstance{Key: InstanceKey{EventType: eventType, Instance: instance}, Hour: h, Minute: m})
}

// Remove drops a previously added choice.
func (b *Builder) Remove(k InstanceKey) {
	if b.built {
		return
	}
	delete(b.items, NewInstanceKey(k.EventType, k.Instance))
}

func (b *Builder) Len() int { return len(b.items) }

// Build runs the set-level checks and returns the finalized set. The builder
// cannot be used afterwards.
func (b *Builder) Build() (DesiredSet, error) {
	if b.built {
		return DesiredSet{}, ErrBuilderFinalized
	}
	set := DesiredSet{items: make(map[InstanceKey]DesiredInstance, len(b.items))}
	for k, d := range b.items {
		set.items[k] = d.clone()
	}
	if err := ValidateSet(b.cat, set); err != nil {
		return DesiredSet{}, err
	}
	b.built = true
	b.items = nil
	return set, nil
}

// MustBuild is Build for fixtures.
func (b *Builder) MustBuild() DesiredSet {
	s, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("schedule: %v", err))
	}
	return s
}
