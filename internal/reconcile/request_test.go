package reconcile

import (
	"testing"

	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
)

func TestParseRequest(t *testing.T) {
	t.Parallel()
	doc := `
guild_id: "100"
channel_id: "200"
timezone: Europe/Berlin
mention: "<@&42>"
alert: { profile: custom, offsets: [60, 20, 5] }
events:
  crazy_joe:
    - { instance: tuesday, time: "20:00" }
    - { instance: thursday, time: "20:00", repeat_minutes: 20160 }
  bear_trap:
    - { instance: bt1, time: "12:30", date: 2025-02-01 }
  daily_reset:
    - { instance: daily, time: "00:00" }
`
	req, err := ParseRequest(catalog.MustDefault(), []byte(doc))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if req.GuildID != "100" || req.ChannelID != "200" || req.Timezone != "Europe/Berlin" {
		t.Fatalf("request = %+v", req)
	}
	if req.Mention.String() != "role:42" || req.Alert.String() != "custom[60,20,5]" {
		t.Fatalf("mention %s alert %s", req.Mention, req.Alert)
	}
	if req.Desired.Len() != 4 {
		t.Fatalf("Desired.Len() = %d, want 4", req.Desired.Len())
	}
	trap, ok := req.Desired.Get(schedule.NewInstanceKey("bear_trap", "bt1"))
	if !ok || trap.Anchor != (catalog.Date{Year: 2025, Month: 2, Day: 1}) || trap.Minute != 30 {
		t.Fatalf("bear trap = %+v", trap)
	}
	thu, _ := req.Desired.Get(schedule.NewInstanceKey("crazy_joe", "thursday"))
	if thu.RepeatMinutes == nil || *thu.RepeatMinutes != 20160 {
		t.Fatalf("thursday repeat = %v", thu.RepeatMinutes)
	}
	if !req.Desired.Has("daily_reset") {
		t.Fatalf("daily_reset missing")
	}
}

func TestParseRequestRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		doc        string
		validation bool
	}{
		{"unknown key", "guild: 1\n", false},
		{"off grid", "events:\n  svs:\n    - { instance: prep, time: \"10:03\" }\n", true},
		{"missing time", "events:\n  svs:\n    - { instance: prep }\n", true},
		{"bad date", "events:\n  bear_trap:\n    - { instance: bt1, time: \"10:00\", date: tomorrow }\n", true},
		{"traps too close", "events:\n  bear_trap:\n    - { instance: bt1, time: \"10:00\", date: 2025-02-01 }\n    - { instance: bt2, time: \"10:10\", date: 2025-02-01 }\n", true},
		{"bad mention", "mention: admins\n", true},
		{"preset with offsets", "alert: { profile: hour_ahead, offsets: [5] }\n", true},
		{"signed time", "events:\n  svs:\n    - { instance: prep, time: \"14:+5\" }\n", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRequest(catalog.MustDefault(), []byte(tt.doc))
			if err == nil {
				t.Fatalf("ParseRequest() error = nil")
			}
			if tt.validation && !schedule.IsValidation(err) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestFormatSeedReparses(t *testing.T) {
	t.Parallel()

	cat := catalog.MustDefault()
	set := desiredSet(t,
		at("crazy_joe", "tuesday", 20, 0),
		schedule.DesiredInstance{Key: schedule.NewInstanceKey("bear_trap", "bt1"), Hour: 12, Minute: 30, Anchor: catalog.Date{Year: 2025, Month: 2, Day: 1}},
	)
	alert, err := schedule.CustomAlert(30, 5)
	if err != nil {
		t.Fatal(err)
	}
	seed := Seed{IsUpdate: true, Desired: set, Timezone: "Europe/Berlin", Mention: schedule.Mention{Kind: schedule.MentionHere}, Alert: alert}

	b, err := FormatSeed("100", "200", seed)
	if err != nil {
		t.Fatalf("FormatSeed: %v", err)
	}
	req, err := ParseRequest(cat, b)
	if err != nil {
		t.Fatalf("ParseRequest: %v\n%s", err, b)
	}
	if req.Desired.Len() != 2 || req.Timezone != "Europe/Berlin" || req.Alert.String() != "custom[30,5]" || req.Mention.Kind != schedule.MentionHere {
		t.Fatalf("round trip = %+v\n%s", req, b)
	}
	trap, _ := req.Desired.Get(schedule.NewInstanceKey("bear_trap", "bt1"))
	if trap.Anchor.String() != "2025-02-01" {
		t.Fatalf("anchor = %s", trap.Anchor)
	}
}
