package board

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"eventbot/internal/adapters/discord"
	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

var now = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

type fakePoster struct {
	mu      sync.Mutex
	posts   []discord.Message
	deleted []string
	postErr error
}

func (f *fakePoster) Post(_ context.Context, _ string, m discord.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posts = append(f.posts, m)
	return "b" + string(rune('0'+len(f.posts))), nil
}

func (f *fakePoster) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePoster) snapshot() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts), append([]string(nil), f.deleted...)
}

var batch = schedule.Batch{GuildID: "1", ChannelID: "2"}

func seed(t *testing.T, st storage.Store, f schedule.Fields) int64 {
	t.Helper()
	f.Batch = batch
	id, err := st.Create(t.Context(), f)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestUpcomingOrder(t *testing.T) {
	t.Parallel()

	rows := []schedule.Row{
		{ID: 1, Enabled: true, Fields: schedule.Fields{StartAt: now.Add(3 * time.Hour), RepeatMinutes: 60 * 24}},
		{ID: 2, Enabled: true, Fields: schedule.Fields{StartAt: now.Add(-30 * time.Minute), RepeatMinutes: 60}},
		{ID: 3, Enabled: false, Fields: schedule.Fields{StartAt: now.Add(time.Minute), RepeatMinutes: 60}},
		{ID: 4, Enabled: true, Fields: schedule.Fields{StartAt: now.Add(-time.Hour)}},
	}
	got := Upcoming(rows, now, 0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Row.ID != 2 || !got[0].At.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("first = %d at %v, want 2 at %v", got[0].Row.ID, got[0].At, now.Add(30*time.Minute))
	}
	if got[1].Row.ID != 1 {
		t.Fatalf("second = %d, want 1", got[1].Row.ID)
	}
	if n := len(Upcoming(rows, now, 1)); n != 1 {
		t.Fatalf("limited len = %d, want 1", n)
	}
}

func TestRenderEmpty(t *testing.T) {
	t.Parallel()
	if e := Render(nil, nil, now); e != nil {
		t.Fatalf("Render(nil) = %+v, want nil", e)
	}
}

func TestEntryTitle(t *testing.T) {
	t.Parallel()

	cat := catalog.MustDefault()
	tests := []struct {
		name string
		row  schedule.Row
		want string
	}{
		{"payload", schedule.Row{Fields: schedule.Fields{Payload: schedule.Payload{Title: "Custom"}}}, "Custom"},
		{"catalog", schedule.Row{Fields: schedule.Fields{Key: schedule.NewInstanceKey("svs", "battle")}}, "State vs State — Battle"},
		{"unknown", schedule.Row{Fields: schedule.Fields{Key: schedule.NewInstanceKey("nope", "x")}}, "nope/x"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := EntryTitle(cat, tt.row); got != tt.want {
				t.Fatalf("EntryTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRefreshReplacesPrevious(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	id := seed(t, st, schedule.Fields{Key: schedule.NewInstanceKey("svs", "battle"), StartAt: now.Add(time.Hour), RepeatMinutes: 7 * 24 * 60})
	p := &fakePoster{}
	r := NewRefresher(st, catalog.MustDefault(), p, logx.Nop())
	r.now = func() time.Time { return now }

	if err := r.Refresh(t.Context(), batch); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := r.Refresh(t.Context(), batch); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	posts, deleted := p.snapshot()
	if posts != 2 || len(deleted) != 1 || deleted[0] != "b1" {
		t.Fatalf("posts=%d deleted=%v, want 2 and [b1]", posts, deleted)
	}
	if got := p.posts[1].Embed.Fields[0].Name; got != "State vs State — Battle" {
		t.Fatalf("field = %q", got)
	}

	if err := st.SetEnabled(t.Context(), id, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := r.Refresh(t.Context(), batch); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	posts, deleted = p.snapshot()
	if posts != 2 || len(deleted) != 2 || deleted[1] != "b2" {
		t.Fatalf("posts=%d deleted=%v, want 2 and [b1 b2]", posts, deleted)
	}
}

func TestRefreshPostError(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	seed(t, st, schedule.Fields{Key: schedule.NewInstanceKey("svs", "battle"), StartAt: now.Add(time.Hour), RepeatMinutes: 60})
	boom := errors.New("boom")
	r := NewRefresher(st, nil, &fakePoster{postErr: boom}, logx.Nop())
	r.now = func() time.Time { return now }
	if err := r.Refresh(t.Context(), batch); !errors.Is(err, boom) {
		t.Fatalf("Refresh err = %v, want %v", err, boom)
	}
}

func TestPublisherDrivesRefresher(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	seed(t, st, schedule.Fields{Key: schedule.NewInstanceKey("svs", "battle"), StartAt: time.Now().Add(time.Hour), RepeatMinutes: 60})
	bus := NewBus(logx.Nop())
	defer bus.Close()

	p := &fakePoster{}
	r := NewRefresher(st, nil, p, logx.Nop())
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	if err := r.Start(ctx, bus); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop(context.Background())

	if err := NewPublisher(bus).OnBatchChanged(ctx, batch.GuildID, batch.ChannelID); err != nil {
		t.Fatalf("OnBatchChanged: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		if n, _ := p.snapshot(); n == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("board was not posted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDecodeBatchChanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"ok", `{"guild_id":"1","channel_id":"2"}`, false},
		{"missing channel", `{"guild_id":"1"}`, true},
		{"garbage", `{`, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeBatchChanged(message.NewMessage("id", []byte(tt.payload)))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRepeatRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		minutes int
		want    []string
	}{
		{0, nil},
		{20160, []string{"FREQ=WEEKLY", "INTERVAL=2"}},
		{1440, []string{"FREQ=DAILY", "INTERVAL=1"}},
		{120, []string{"FREQ=HOURLY", "INTERVAL=2"}},
		{90, []string{"FREQ=MINUTELY", "INTERVAL=90"}},
	}
	for _, tt := range tests {
		got := RepeatRule(tt.minutes)
		if tt.want == nil && got != "" {
			t.Fatalf("RepeatRule(%d) = %q, want empty", tt.minutes, got)
		}
		for _, part := range tt.want {
			if !strings.Contains(got, part) {
				t.Fatalf("RepeatRule(%d) = %q, want it to contain %q", tt.minutes, got, part)
			}
		}
	}
}

func TestCalendarSkipsDisabled(t *testing.T) {
	t.Parallel()

	rows := []schedule.Row{
		{ID: 1, Enabled: true, Fields: schedule.Fields{Batch: batch, Payload: schedule.Payload{Title: "Bear"}, StartAt: now, RepeatMinutes: 2880}},
		{ID: 2, Enabled: false, Fields: schedule.Fields{Batch: batch, Payload: schedule.Payload{Title: "Gone"}, StartAt: now}},
	}
	var sb strings.Builder
	if err := WriteCalendar(&sb, nil, batch, rows, now); err != nil {
		t.Fatalf("WriteCalendar: %v", err)
	}
	out := sb.String()
	if n := strings.Count(out, "BEGIN:VEVENT"); n != 1 {
		t.Fatalf("VEVENT count = %d, want 1\n%s", n, out)
	}
	for _, want := range []string{"SUMMARY:Bear", "FREQ=DAILY", "row-1-2@eventbot"} {
		if !strings.Contains(out, want) {
			t.Fatalf("calendar missing %q\n%s", want, out)
		}
	}
}
