package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventbot/internal/catalog"
	"eventbot/internal/recurrence"
	"eventbot/internal/schedule"
	"eventbot/internal/templates"
)

// MaterializeInput is everything needed to turn one desired instance into
// storable fields.
type MaterializeInput struct {
	Def      *catalog.Definition
	Batch    schedule.Batch
	Desired  schedule.DesiredInstance
	Timezone string
	Mention  schedule.Mention
	Alert    schedule.AlertProfile
}

// Materializer computes start instants, repeat intervals and payloads.
type Materializer struct {
	calc        *recurrence.Calculator
	lookup      templates.Lookup
	callTimeout time.Duration
}

func NewMaterializer(calc *recurrence.Calculator, lookup templates.Lookup, callTimeout time.Duration) *Materializer {
	return &Materializer{calc: calc, lookup: lookup, callTimeout: callTimeout}
}

// Materialize returns the fields to persist for in. Bad input yields a
// *schedule.ValidationError; a failed template lookup yields a
// *CollaboratorError.
func (m *Materializer) Materialize(ctx context.Context, in MaterializeInput) (schedule.Fields, error) {
	def, d := in.Def, in.Desired
	if def == nil {
		return schedule.Fields{}, &schedule.ValidationError{
			Field: "event_type", Value: d.Key.EventType, Expected: "a catalog event", Reason: "unknown event type",
		}
	}
	loc, err := time.LoadLocation(in.Timezone)
	if err != nil {
		return schedule.Fields{}, &schedule.ValidationError{
			Field: "timezone", Value: in.Timezone, Expected: "an IANA zone name", Reason: err.Error(),
		}
	}

	start, err := m.calc.InstanceStart(def, d.Slot(), loc)
	if err != nil {
		return schedule.Fields{}, startError(d, err)
	}

	repeat := def.RepeatMinutes
	if d.RepeatMinutes != nil {
		repeat = *d.RepeatMinutes
	}

	payload, err := m.payload(ctx, def, d.Key)
	if err != nil {
		return schedule.Fields{}, &CollaboratorError{Key: d.Key, Err: fmt.Errorf("templates: %w", err)}
	}

	alert := in.Alert
	alert.Offsets = append([]int(nil), alert.Offsets...)

	return schedule.Fields{
		Batch:         in.Batch,
		Key:           d.Key,
		Hour:          d.Hour,
		Minute:        d.Minute,
		Day:           d.Day,
		Timezone:      loc.String(),
		StartAt:       start,
		RepeatMinutes: repeat,
		Mention:       in.Mention,
		Alert:         alert,
		Payload:       payload,
	}, nil
}

func startError(d schedule.DesiredInstance, err error) error {
	field := d.Key.String()
	switch {
	case errors.Is(err, recurrence.ErrAnchorRequired), errors.Is(err, recurrence.ErrAnchorInPast):
		return &schedule.ValidationError{Field: field + ".date", Value: d.Anchor.String(), Expected: "a future date", Reason: err.Error()}
	case errors.Is(err, recurrence.ErrDayOutOfWindow):
		return &schedule.ValidationError{Field: field + ".day", Value: fmt.Sprint(d.Day), Reason: err.Error()}
	case errors.Is(err, recurrence.ErrUnknownInstance):
		return &schedule.ValidationError{Field: field + ".instance", Value: d.Key.Instance, Reason: err.Error()}
	}
	return &CollaboratorError{Key: d.Key, Err: err}
}

func (m *Materializer) payload(ctx context.Context, def *catalog.Definition, k schedule.InstanceKey) (schedule.Payload, error) {
	p := defaultPayload(def, k)
	if m.lookup == nil {
		return p, nil
	}
	if m.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.callTimeout)
		defer cancel()
	}
	list, err := m.lookup.TemplatesForEvent(ctx, def.Name)
	if err != nil {
		return schedule.Payload{}, err
	}
	if len(list) == 0 {
		return p, nil
	}
	t := list[0].Expand(def.Title(), def.InstanceName(k.Instance))
	if t.Title != "" {
		p.Title = t.Title
	}
	if t.Description != "" {
		p.Description = t.Description
	}
	p.ImageURL = t.ImageURL
	p.ThumbnailURL = t.ThumbnailURL
	return p, nil
}

// defaultPayload is "<icon> <event> — <instance>". Single-instance events
// drop the instance part.
func defaultPayload(def *catalog.Definition, k schedule.InstanceKey) schedule.Payload {
	title := strings.TrimSpace(def.Icon + " " + def.Title())
	if len(def.Instances) > 1 || k.Instance != schedule.DefaultInstance {
		title += " — " + def.InstanceName(k.Instance)
	}
	desc := def.Description
	if in, ok := def.Instance(k.Instance); ok && in.Description != "" {
		desc = in.Description
	}
	return schedule.Payload{Title: title, Description: desc}
}
