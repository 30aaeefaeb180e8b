package logx

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	mu    sync.Mutex
	lines []string
	to    []string
}

func (r *recordingSender) SendText(_ context.Context, channelID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.to = append(r.to, channelID)
	r.lines = append(r.lines, text)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

func TestRenderLine(t *testing.T) {
	t.Parallel()

	got := renderLine([]byte(`{"level":"warn","message":"refresh failed","time":"x","guild":"42","batch":"7"}`))
	want := "**WARN** refresh failed\n```\nbatch=7\nguild=42\n```"
	if got != want {
		t.Fatalf("renderLine = %q, want %q", got, want)
	}

	if got := renderLine([]byte(`{"level":"error","message":"bare"}`)); got != "**ERROR** bare" {
		t.Fatalf("renderLine(no fields) = %q", got)
	}
	if raw := renderLine([]byte("  plain text \n")); raw != "plain text" {
		t.Fatalf("renderLine(raw) = %q, want %q", raw, "plain text")
	}
}

func TestClip(t *testing.T) {
	t.Parallel()

	if got := clip("abcdefghijklmnop", 12); got != "abcdefghi..." {
		t.Fatalf("clip = %q", got)
	}
	if got := clip("short", 12); got != "short" {
		t.Fatalf("clip = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
				t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestChannelSinkRespectsMinLevel(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	svc, log := New(Config{
		Level: "DEBUG",
		Channel: ChannelConfig{
			Enabled:    true,
			ChannelID:  "123",
			MinLevel:   "WARN",
			RatePerSec: 100,
		},
	}, sender)
	defer svc.Close()

	log.Info("ignored")
	log.Warn("delivered", String("k", "v"))

	deadline := time.Now().Add(2 * time.Second)
	for sender.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := sender.count(); n != 1 {
		t.Fatalf("sent lines = %d, want 1", n)
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.to[0] != "123" {
		t.Fatalf("channel = %q, want 123", sender.to[0])
	}
	if !strings.Contains(sender.lines[0], "delivered") {
		t.Fatalf("line = %q, want it to mention the message", sender.lines[0])
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()

	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero Logger should report IsZero")
	}
	l.Info("no panic")
	if Nop().IsZero() {
		t.Fatalf("Nop() should not report IsZero")
	}
}
