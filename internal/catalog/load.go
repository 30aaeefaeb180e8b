package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(defaultYAML)
	})
	return defaultCat, defaultErr
}

// MustDefault is Default for callers that treat a broken embedded table as a
// programming error.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

type fileDoc struct {
	Events []eventDoc `yaml:"events"`
}

type eventDoc struct {
	Name                 string        `yaml:"name"`
	DisplayName          string        `yaml:"display_name"`
	Icon                 string        `yaml:"icon"`
	Description          string        `yaml:"description"`
	Recurrence           recurrenceDoc `yaml:"recurrence"`
	RepeatMinutes        int           `yaml:"repeat_minutes"`
	GridMinutes          int           `yaml:"grid_minutes"`
	MinSeparationMinutes int           `yaml:"min_separation_minutes"`
	TimeSlots            []string      `yaml:"time_slots"`
	Instances            []instanceDoc `yaml:"instances"`
	LegacySlots          []string      `yaml:"legacy_slots"`
}

type recurrenceDoc struct {
	Class        string `yaml:"class"`
	PastAnchor   string `yaml:"past_anchor"`
	Epoch        string `yaml:"epoch"`
	CadenceWeeks int    `yaml:"cadence_weeks"`
	WindowDays   int    `yaml:"window_days"`
}

type instanceDoc struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Weekday     string `yaml:"weekday"`
}

// Parse decodes a YAML catalog. Unknown keys are rejected.
func Parse(b []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var doc fileDoc
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	defs := make([]Definition, 0, len(doc.Events))
	for _, ev := range doc.Events {
		d, err := ev.definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return New(defs...)
}

func (ev eventDoc) definition() (Definition, error) {
	rec, err := ev.Recurrence.recurrence()
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", ev.Name, err)
	}
	d := Definition{
		Name:                 ev.Name,
		DisplayName:          ev.DisplayName,
		Icon:                 ev.Icon,
		Description:          strings.TrimSpace(ev.Description),
		Recurrence:           rec,
		RepeatMinutes:        ev.RepeatMinutes,
		GridMinutes:          ev.GridMinutes,
		MinSeparationMinutes: ev.MinSeparationMinutes,
		TimeSlots:            ev.TimeSlots,
		LegacySlots:          ev.LegacySlots,
	}
	for _, in := range ev.Instances {
		inst := Instance{ID: strings.TrimSpace(in.ID), Name: in.Name, Description: in.Description}
		if in.Weekday != "" {
			wd, err := ParseWeekday(in.Weekday)
			if err != nil {
				return Definition{}, fmt.Errorf("%s/%s: %w", ev.Name, in.ID, err)
			}
			inst.Weekday, inst.HasWeekday = wd, true
		}
		d.Instances = append(d.Instances, inst)
	}
	return d, nil
}

func (r recurrenceDoc) recurrence() (Recurrence, error) {
	var epoch Date
	if r.Epoch != "" {
		e, err := ParseDate(r.Epoch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		epoch = e
	}
	switch Class(strings.ToLower(strings.TrimSpace(r.Class))) {
	case ClassCustomDate:
		policy := PastAnchorPolicy(r.PastAnchor)
		if policy == "" {
			policy = PastAnchorKeep
		}
		return CustomDate{PastAnchor: policy}, nil
	case ClassFixedWeekday:
		return FixedWeekday{Epoch: epoch, CadenceWeeks: r.CadenceWeeks}, nil
	case ClassFixedWindow:
		return FixedWindow{Epoch: epoch, CadenceWeeks: r.CadenceWeeks, WindowDays: r.WindowDays}, nil
	case ClassPhaseSet:
		return PhaseSet{Epoch: epoch, CadenceWeeks: r.CadenceWeeks}, nil
	case ClassDaily:
		return Daily{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown recurrence class %q", ErrInvalid, r.Class)
	}
}
