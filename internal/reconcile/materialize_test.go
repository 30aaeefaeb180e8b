package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	"eventbot/internal/templates"
)

func TestMaterialize(t *testing.T) {
	t.Parallel()
	cat := catalog.MustDefault()
	override := 20160

	tests := []struct {
		name       string
		desired    schedule.DesiredInstance
		tz         string
		lookup     templates.Lookup
		wantStart  time.Time
		wantRepeat int
		wantTitle  string
		wantImage  string
	}{
		{
			name:       "default payload",
			desired:    at("crazy_joe", "tuesday", 20, 0),
			tz:         "Europe/Berlin",
			wantStart:  time.Date(2025, time.January, 7, 19, 0, 0, 0, time.UTC),
			wantRepeat: 40320,
			wantTitle:  "🤡 Crazy Joe — Tuesday",
		},
		{
			name: "repeat override",
			desired: func() schedule.DesiredInstance {
				d := at("crazy_joe", "thursday", 20, 0)
				d.RepeatMinutes = &override
				return d
			}(),
			tz:         "UTC",
			wantStart:  time.Date(2025, time.January, 9, 20, 0, 0, 0, time.UTC),
			wantRepeat: 20160,
			wantTitle:  "🤡 Crazy Joe — Thursday",
		},
		{
			name: "single instance drops suffix and rolls the year",
			desired: func() schedule.DesiredInstance {
				d := at("mercenary_prestige", "", 10, 0)
				d.Anchor = catalog.Date{Year: 2025, Month: time.January, Day: 1}
				return d
			}(),
			tz:         "UTC",
			wantStart:  time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC),
			wantRepeat: 0,
			wantTitle:  "⚔️ Mercenary Prestige",
		},
		{
			name:       "first template wins",
			desired:    at("svs", "battle", 12, 0),
			tz:         "UTC",
			lookup:     templates.Static{"svs": {{Title: "{event}: {instance}", ImageURL: "https://img/1.png"}, {Title: "second"}}},
			wantStart:  time.Date(2025, time.January, 18, 12, 0, 0, 0, time.UTC),
			wantRepeat: 40320,
			wantTitle:  "State vs State: Battle",
			wantImage:  "https://img/1.png",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewMaterializer(testCalc(cat), tt.lookup, time.Second)
			def, _ := cat.Get(tt.desired.Key.EventType)
			mention := schedule.Mention{Kind: schedule.MentionEveryone}
			alert := schedule.AlertProfile{Name: schedule.AlertTenFive}

			f, err := m.Materialize(context.Background(), MaterializeInput{
				Def: def, Batch: testBatch, Desired: tt.desired, Timezone: tt.tz, Mention: mention, Alert: alert,
			})
			if err != nil {
				t.Fatalf("Materialize() error = %v", err)
			}
			if !f.StartAt.Equal(tt.wantStart) {
				t.Fatalf("StartAt = %v, want %v", f.StartAt.UTC(), tt.wantStart)
			}
			if f.RepeatMinutes != tt.wantRepeat {
				t.Fatalf("RepeatMinutes = %d, want %d", f.RepeatMinutes, tt.wantRepeat)
			}
			if f.Payload.Title != tt.wantTitle || f.Payload.ImageURL != tt.wantImage {
				t.Fatalf("Payload = %+v", f.Payload)
			}
			if f.Mention != mention || f.Alert.Name != alert.Name || f.Batch != testBatch || f.Timezone != tt.tz {
				t.Fatalf("Fields = %+v", f)
			}
		})
	}
}

func TestMaterializeErrors(t *testing.T) {
	t.Parallel()
	cat := catalog.MustDefault()
	m := NewMaterializer(testCalc(cat), nil, 0)
	def, _ := cat.Get("svs")

	_, err := m.Materialize(context.Background(), MaterializeInput{Def: def, Desired: at("svs", "prep", 10, 0), Timezone: "Nowhere/Land"})
	if !schedule.IsValidation(err) {
		t.Fatalf("bad zone error = %v, want ValidationError", err)
	}

	_, err = m.Materialize(context.Background(), MaterializeInput{Def: nil, Desired: at("nope", "", 10, 0), Timezone: "UTC"})
	if !schedule.IsValidation(err) {
		t.Fatalf("nil def error = %v, want ValidationError", err)
	}

	m = NewMaterializer(testCalc(cat), lookupFunc(func(context.Context, string) ([]templates.Template, error) {
		return nil, errors.New("boom")
	}), 0)
	_, err = m.Materialize(context.Background(), MaterializeInput{Def: def, Desired: at("svs", "prep", 10, 0), Timezone: "UTC"})
	var ce *CollaboratorError
	if !errors.As(err, &ce) || ce.Key.String() != "svs/prep" {
		t.Fatalf("template error = %v, want CollaboratorError", err)
	}
}

type lookupFunc func(ctx context.Context, eventType string) ([]templates.Template, error)

func (f lookupFunc) TemplatesForEvent(ctx context.Context, eventType string) ([]templates.Template, error) {
	return f(ctx, eventType)
}
