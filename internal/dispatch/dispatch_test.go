package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"eventbot/internal/adapters/discord"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

var (
	now   = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	batch = schedule.Batch{GuildID: "10", ChannelID: "20"}
)

type fakeSender struct {
	mu   sync.Mutex
	sent []discord.Message
}

func (f *fakeSender) Post(_ context.Context, _ string, m discord.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return "x", nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newService(t *testing.T, st storage.Store, snd Sender) *Service {
	t.Helper()
	s := New(Config{Enabled: true, RatePerSec: 1000, Burst: 100}, st, nil, snd, logx.Nop())
	s.now = func() time.Time { return now }
	return s
}

func create(t *testing.T, st storage.Store, f schedule.Fields) int64 {
	t.Helper()
	f.Batch = batch
	id, err := st.Create(t.Context(), f)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestAlertScheduleNext(t *testing.T) {
	t.Parallel()

	first := now.Add(time.Hour)
	tests := []struct {
		name  string
		every time.Duration
		at    time.Time
		want  time.Time
	}{
		{"before first", time.Hour, now, first},
		{"at first", time.Hour, first, first.Add(time.Hour)},
		{"between", time.Hour, first.Add(90 * time.Minute), first.Add(2 * time.Hour)},
		{"once pending", 0, now, first},
		{"once done", 0, first, time.Time{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := alertSchedule{first: first, every: tt.every}.Next(tt.at)
			if !got.Equal(tt.want) {
				t.Fatalf("Next(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestDeliverOnceAndDedup(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	alert, _ := schedule.ParseAlertProfile(schedule.AlertTenFive, nil)
	id := create(t, st, schedule.Fields{
		Key:           schedule.NewInstanceKey("bear_trap", "trap1"),
		StartAt:       now.Add(10 * time.Minute),
		RepeatMinutes: 2880,
		Alert:         alert,
		Mention:       schedule.Mention{Kind: schedule.MentionHere},
		Payload:       schedule.Payload{Title: "Bear Trap"},
	})
	snd := &fakeSender{}
	s := newService(t, st, snd)

	sent, err := s.Deliver(t.Context(), id, 10)
	if err != nil || !sent {
		t.Fatalf("Deliver = %v, %v; want true, nil", sent, err)
	}
	sent, err = s.Deliver(t.Context(), id, 10)
	if err != nil || sent {
		t.Fatalf("second Deliver = %v, %v; want false, nil", sent, err)
	}
	if snd.count() != 1 {
		t.Fatalf("sent = %d, want 1", snd.count())
	}
	m := snd.sent[0]
	if m.Mention.Kind != schedule.MentionHere || !strings.Contains(m.Text, "**Bear Trap** starts") {
		t.Fatalf("message = %+v", m)
	}
}

func TestDeliverSkips(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	snd := &fakeSender{}
	s := newService(t, st, snd)

	notDue := create(t, st, schedule.Fields{Key: schedule.NewInstanceKey("svs", "battle"), StartAt: now.Add(10 * time.Minute), RepeatMinutes: 60})
	disabled := create(t, st, schedule.Fields{Key: schedule.NewInstanceKey("svs", "prep"), StartAt: now, RepeatMinutes: 60})
	if err := st.SetEnabled(t.Context(), disabled, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	passed := create(t, st, schedule.Fields{Key: schedule.NewInstanceKey("mercenary_prestige", "default"), StartAt: now.Add(-time.Hour)})

	tests := []struct {
		name string
		id   int64
		lead int
	}{
		{"not due", notDue, 0},
		{"disabled", disabled, 0},
		{"one-off passed", passed, 0},
		{"missing", 1 << 40, 0},
	}
	for _, tt := range tests {
		sent, err := s.Deliver(t.Context(), tt.id, tt.lead)
		if err != nil || sent {
			t.Fatalf("%s: Deliver = %v, %v; want false, nil", tt.name, sent, err)
		}
	}
	if snd.count() != 0 {
		t.Fatalf("sent = %d, want 0", snd.count())
	}
}

func TestDeliverLateWithinGrace(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	id := create(t, st, schedule.Fields{Key: schedule.NewInstanceKey("svs", "battle"), StartAt: now.Add(-time.Minute), RepeatMinutes: 60})
	snd := &fakeSender{}
	s := newService(t, st, snd)
	sent, err := s.Deliver(t.Context(), id, 0)
	if err != nil || !sent {
		t.Fatalf("Deliver = %v, %v; want true, nil", sent, err)
	}
	if !strings.Contains(snd.sent[0].Text, "starting now") {
		t.Fatalf("text = %q", snd.sent[0].Text)
	}
}

func TestSyncEntries(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	alert, _ := schedule.ParseAlertProfile(schedule.AlertTenFive, nil)
	a := create(t, st, schedule.Fields{Key: schedule.NewInstanceKey("svs", "battle"), StartAt: now.Add(time.Hour), RepeatMinutes: 60, Alert: alert})
	create(t, st, schedule.Fields{Key: schedule.NewInstanceKey("svs", "prep"), StartAt: now.Add(2 * time.Hour), RepeatMinutes: 0, Alert: alert})
	create(t, st, schedule.Fields{Key: schedule.NewInstanceKey("mercenary_prestige", "default"), StartAt: now.Add(-time.Hour), Alert: alert})

	s := newService(t, st, &fakeSender{})
	if err := s.SyncAll(t.Context()); err != ErrNotStarted {
		t.Fatalf("SyncAll before Start = %v, want %v", err, ErrNotStarted)
	}
	if err := s.Start(t.Context(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	got := s.Scheduled()
	if len(got) != 6 {
		t.Fatalf("entries = %d, want 6: %+v", len(got), got)
	}
	if got[0].RowID != a || got[0].Lead != 10 || !got[0].Next.Equal(now.Add(50*time.Minute)) {
		t.Fatalf("first entry = %+v", got[0])
	}

	if err := st.SetEnabled(t.Context(), a, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := s.SyncBatch(t.Context(), batch); err != nil {
		t.Fatalf("SyncBatch: %v", err)
	}
	if n := len(s.Scheduled()); n != 3 {
		t.Fatalf("entries after disable = %d, want 3", n)
	}
}

func TestReminderEmbed(t *testing.T) {
	t.Parallel()

	row := schedule.Row{Fields: schedule.Fields{
		Key:     schedule.NewInstanceKey("svs", "battle"),
		Payload: schedule.Payload{Title: "SvS", ImageURL: "https://img", ThumbnailURL: "https://thumb"},
	}}
	m := Reminder(nil, row, 5, now)
	if m.Embed.Image == nil || m.Embed.Thumbnail == nil || m.Embed.Title != "SvS" {
		t.Fatalf("embed = %+v", m.Embed)
	}
	if !strings.Contains(m.Text, "<t:") {
		t.Fatalf("text = %q", m.Text)
	}
}
