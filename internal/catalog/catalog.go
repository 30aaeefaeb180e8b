package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Instance is one named occurrence within an event type (a trap, a legion,
// a phase).
type Instance struct {
	ID          string
	Name        string
	Description string
	// Weekday is meaningful only when HasWeekday is set.
	Weekday    time.Weekday
	HasWeekday bool
}

// Definition describes one event type. Definitions handed out by a Catalog
// are shared and must not be modified.
type Definition struct {
	Name        string
	DisplayName string
	Icon        string
	Description string

	Recurrence    Recurrence
	RepeatMinutes int

	// GridMinutes constrains the minute field of user times. Defaults to 5.
	GridMinutes int
	// MinSeparationMinutes is the minimum gap between two instances that
	// share a date. 0 disables the check.
	MinSeparationMinutes int

	TimeSlots   []string
	Instances   []Instance
	LegacySlots []string
}

func (d *Definition) Class() Class {
	if d.Recurrence == nil {
		return ""
	}
	return d.Recurrence.Class()
}

func (d *Definition) Instance(id string) (Instance, bool) {
	for _, in := range d.Instances {
		if in.ID == id {
			return in, true
		}
	}
	return Instance{}, false
}

func (d *Definition) InstanceIDs() []string {
	out := make([]string, 0, len(d.Instances))
	for _, in := range d.Instances {
		out = append(out, in.ID)
	}
	return out
}

var hhmm = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// InstanceName returns the display name for an instance id. Unknown ids
// (legacy time-named slots like "14:00" included) fall back to the raw id.
func (d *Definition) InstanceName(id string) string {
	if d != nil {
		if in, ok := d.Instance(id); ok && in.Name != "" {
			return in.Name
		}
	}
	return id
}

// Title is the human label for the event type.
func (d *Definition) Title() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

// DefaultGridMinutes applies when a definition leaves GridMinutes unset.
const DefaultGridMinutes = 5

// Catalog is an immutable set of event definitions keyed by name.
type Catalog struct {
	defs  map[string]*Definition
	order []string
}

// New validates defs and builds a Catalog. Names must be unique.
func New(defs ...Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]*Definition, len(defs))}
	for i := range defs {
		d := defs[i]
		d.Name = strings.TrimSpace(d.Name)
		if err := validateDefinition(&d); err != nil {
			return nil, err
		}
		if _, dup := c.defs[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate event type %q", ErrInvalid, d.Name)
		}
		c.defs[d.Name] = &d
		c.order = append(c.order, d.Name)
	}
	sort.Strings(c.order)
	return c, nil
}

// Get looks up a definition by event type name.
func (c *Catalog) Get(name string) (*Definition, bool) {
	if c == nil {
		return nil, false
	}
	d, ok := c.defs[name]
	return d, ok
}

// MustGet is Get for names the caller knows exist.
func (c *Catalog) MustGet(name string) *Definition {
	d, ok := c.Get(name)
	if !ok {
		panic(fmt.Sprintf("catalog: %q not defined", name))
	}
	return d
}

// Names returns all event type names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// All returns every definition in name order.
func (c *Catalog) All() []*Definition {
	if c == nil {
		return nil
	}
	out := make([]*Definition, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.defs[n])
	}
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

func validateDefinition(d *Definition) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalid, d.Name, fmt.Sprintf(format, args...))
	}
	if d.Name == "" {
		return fmt.Errorf("%w: event type name is required", ErrInvalid)
	}
	if d.Recurrence == nil {
		return bad("recurrence is required")
	}
	if d.RepeatMinutes < 0 {
		return bad("repeat_minutes must be >= 0")
	}
	if d.RepeatMinutes == 0 && d.Class() != ClassCustomDate {
		return bad("repeat_minutes 0 is only allowed for custom-date events")
	}
	if d.GridMinutes == 0 {
		d.GridMinutes = DefaultGridMinutes
	}
	if d.GridMinutes < 1 || d.GridMinutes > 60 {
		return bad("grid_minutes must be within 1..60")
	}
	if d.MinSeparationMinutes < 0 {
		return bad("min_separation_minutes must be >= 0")
	}
	for _, s := range d.TimeSlots {
		if !hhmm.MatchString(s) {
			return bad("time slot %q is not HH:MM", s)
		}
	}
	if len(d.Instances) == 0 {
		return bad("at least one instance is required")
	}

	seen := make(map[string]bool, len(d.Instances))
	for _, in := range d.Instances {
		if strings.TrimSpace(in.ID) == "" {
			return bad("instance id is required")
		}
		if seen[in.ID] {
			return bad("duplicate instance %q", in.ID)
		}
		seen[in.ID] = true
	}
	for _, s := range d.LegacySlots {
		if !seen[s] {
			return bad("legacy slot %q is not a declared instance", s)
		}
	}

	switch r := d.Recurrence.(type) {
	case CustomDate:
		switch r.PastAnchor {
		case PastAnchorKeep, PastAnchorAdvanceYear, PastAnchorReject:
		default:
			return bad("unknown past_anchor policy %q", r.PastAnchor)
		}
	case FixedWeekday:
		if err := checkCadence(r.Epoch, r.CadenceWeeks); err != nil {
			return bad("%v", err)
		}
		if err := requireWeekdays(d.Instances); err != nil {
			return bad("%v", err)
		}
	case PhaseSet:
		if err := checkCadence(r.Epoch, r.CadenceWeeks); err != nil {
			return bad("%v", err)
		}
		if err := requireWeekdays(d.Instances); err != nil {
			return bad("%v", err)
		}
	case FixedWindow:
		if err := checkCadence(r.Epoch, r.CadenceWeeks); err != nil {
			return bad("%v", err)
		}
		if r.WindowDays < 1 || r.WindowDays > 7*r.CadenceWeeks {
			return bad("window_days must be within 1..%d", 7*r.CadenceWeeks)
		}
	case Daily:
	default:
		return bad("unsupported recurrence %T", r)
	}
	return nil
}

func checkCadence(epoch Date, weeks int) error {
	if epoch.IsZero() {
		return fmt.Errorf("epoch is required")
	}
	if weeks < 1 {
		return fmt.Errorf("cadence_weeks must be >= 1")
	}
	return nil
}

func requireWeekdays(ins []Instance) error {
	for _, in := range ins {
		if !in.HasWeekday {
			return fmt.Errorf("instance %q needs a weekday", in.ID)
		}
	}
	return nil
}
