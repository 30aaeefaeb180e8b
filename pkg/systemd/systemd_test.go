package systemd

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(_ bool, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recorder) count(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

func TestReadyStopping(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := Notifier{notify: rec.notify}
	n.Ready()
	n.Status("serving")
	n.Stopping()
	want := []string{"READY=1", "STATUS=serving", "STOPPING=1"}
	if len(rec.states) != len(want) {
		t.Fatalf("states = %v, want %v", rec.states, want)
	}
	for i := range want {
		if rec.states[i] != want[i] {
			t.Fatalf("states = %v, want %v", rec.states, want)
		}
	}
}

func TestWatchdog(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := Notifier{
		notify:   rec.notify,
		watchdog: func(bool) (time.Duration, error) { return 20 * time.Millisecond, nil },
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Watchdog(ctx)
		close(done)
	}()
	deadline := time.Now().Add(5 * time.Second)
	for rec.count("WATCHDOG=1") < 2 {
		if time.Now().After(deadline) {
			t.Fatal("no watchdog pings")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestWatchdogDisabled(t *testing.T) {
	t.Parallel()
	n := Notifier{watchdog: func(bool) (time.Duration, error) { return 0, nil }}
	n.Watchdog(context.Background())
}
