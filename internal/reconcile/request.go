package reconcile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.yaml.in/yaml/v3"

	"eventbot/internal/catalog"
	"eventbot/internal/recurrence"
	"eventbot/internal/schedule"
)

// requestDoc is the YAML form of a Request, used by eventctl:
//
//	guild_id: "1234"
//	channel_id: "5678"
//	timezone: Europe/Berlin
//	mention: role:42
//	alert: { profile: custom, offsets: [60, 20, 5] }
//	events:
//	  crazy_joe:
//	    - { instance: tuesday, time: "20:00" }
//	  bear_trap:
//	    - { instance: bt1, time: "12:30", date: 2025-02-01 }
type requestDoc struct {
	GuildID   string                   `yaml:"guild_id"`
	ChannelID string                   `yaml:"channel_id"`
	Timezone  string                   `yaml:"timezone,omitempty"`
	Mention   string                   `yaml:"mention,omitempty"`
	Alert     alertDoc                 `yaml:"alert,omitempty"`
	Events    map[string][]instanceDoc `yaml:"events"`
}

type alertDoc struct {
	Profile string `yaml:"profile,omitempty"`
	Offsets []int  `yaml:"offsets,omitempty,flow"`
}

type instanceDoc struct {
	Instance      string `yaml:"instance"`
	Time          string `yaml:"time"`
	Date          string `yaml:"date,omitempty"`
	Day           int    `yaml:"day,omitempty"`
	RepeatMinutes *int   `yaml:"repeat_minutes,omitempty"`
}

// ParseRequest decodes a desired-state document. Unknown keys are errors.
func ParseRequest(cat *catalog.Catalog, b []byte) (Request, error) {
	var doc requestDoc
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Request{}, fmt.Errorf("parse request: %w", err)
	}

	mention, err := schedule.ParseMention(doc.Mention)
	if err != nil {
		return Request{}, err
	}
	alert, err := schedule.ParseAlertProfile(doc.Alert.Profile, doc.Alert.Offsets)
	if err != nil {
		return Request{}, err
	}

	events := make([]string, 0, len(doc.Events))
	for ev := range doc.Events {
		events = append(events, ev)
	}
	sort.Strings(events)

	builder := schedule.NewBuilder(cat)
	for _, ev := range events {
		for _, in := range doc.Events[ev] {
			key := schedule.NewInstanceKey(ev, in.Instance)
			d := schedule.DesiredInstance{Key: key, Day: in.Day, RepeatMinutes: in.RepeatMinutes}
			if in.Time == "" {
				return Request{}, &schedule.ValidationError{Field: key.String() + ".time", Expected: "HH:MM", Reason: "required"}
			}
			h, m, err := recurrence.ParseTimeSlot(in.Time)
			if err != nil {
				return Request{}, &schedule.ValidationError{Field: key.String() + ".time", Value: in.Time, Expected: "HH:MM", Reason: err.Error()}
			}
			d.Hour, d.Minute = h, m
			if in.Date != "" {
				anchor, err := catalog.ParseDate(in.Date)
				if err != nil {
					return Request{}, &schedule.ValidationError{Field: key.String() + ".date", Value: in.Date, Expected: "YYYY-MM-DD", Reason: err.Error()}
				}
				d.Anchor = anchor
			}
			if err := builder.Add(d); err != nil {
				return Request{}, err
			}
		}
	}
	set, err := builder.Build()
	if err != nil {
		return Request{}, err
	}

	return Request{
		GuildID:   doc.GuildID,
		ChannelID: doc.ChannelID,
		Desired:   set,
		Timezone:  doc.Timezone,
		Mention:   mention,
		Alert:     alert,
	}, nil
}

// FormatSeed renders a Seed as a document ParseRequest accepts, so the
// current state of a batch can be edited and reapplied.
func FormatSeed(guildID, channelID string, s Seed) ([]byte, error) {
	doc := requestDoc{
		GuildID:   guildID,
		ChannelID: channelID,
		Timezone:  s.Timezone,
		Mention:   s.Mention.String(),
		Alert:     alertDoc{Profile: s.Alert.Name},
		Events:    map[string][]instanceDoc{},
	}
	if s.Alert.Name == schedule.AlertCustom {
		doc.Alert.Offsets = s.Alert.Offsets
	}
	for _, ev := range s.Desired.EventTypes() {
		ins := s.Desired.Instances(ev)
		sort.Slice(ins, func(i, j int) bool { return ins[i].Key.Instance < ins[j].Key.Instance })
		for _, d := range ins {
			in := instanceDoc{Instance: d.Key.Instance, Time: d.Clock(), Day: d.Day, RepeatMinutes: d.RepeatMinutes}
			if !d.Anchor.IsZero() {
				in.Date = d.Anchor.String()
			}
			doc.Events[ev] = append(doc.Events[ev], in)
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
