package templates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirTemplatesForEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("svs.yaml", "title: \"{event}: {instance}\"\ndescription: go\n")
	write("bear_trap.yaml", "- title: first\n- title: second\n")
	write("broken.yaml", "title: [\n")

	d := Dir{Path: dir}
	tests := []struct {
		event   string
		want    []string
		wantErr bool
	}{
		{event: "svs", want: []string{"{event}: {instance}"}},
		{event: "bear_trap", want: []string{"first", "second"}},
		{event: "canyon_clash", want: nil},
		{event: "broken", wantErr: true},
		{event: "../etc", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.event, func(t *testing.T) {
			t.Parallel()
			got, err := d.TemplatesForEvent(context.Background(), tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TemplatesForEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Title != tt.want[i] || got[i].EventType != tt.event {
					t.Fatalf("got[%d] = %+v", i, got[i])
				}
			}
		})
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()
	got := Template{Title: "{event}: {instance}", Description: "{instance} at start"}.Expand("SvS", "Battle")
	if got.Title != "SvS: Battle" || got.Description != "Battle at start" {
		t.Fatalf("Expand() = %+v", got)
	}
}

type countingLookup struct {
	calls int
	err   error
}

func (c *countingLookup) TemplatesForEvent(ctx context.Context, eventType string) ([]Template, error) {
	c.calls++
	return nil, c.err
}

func TestMemoizeCachesErrors(t *testing.T) {
	t.Parallel()
	src := &countingLookup{err: errors.New("down")}
	m := Memoize(src)
	for i := 0; i < 3; i++ {
		if _, err := m.TemplatesForEvent(context.Background(), "svs"); err == nil {
			t.Fatalf("call %d: error = nil", i)
		}
	}
	if src.calls != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls)
	}
}

func TestStaticSetsEventType(t *testing.T) {
	t.Parallel()
	s := Static{"svs": {{Title: "x"}}}
	got, err := s.TemplatesForEvent(context.Background(), "svs")
	if err != nil || len(got) != 1 || got[0].EventType != "svs" {
		t.Fatalf("TemplatesForEvent() = %+v, %v", got, err)
	}
}
