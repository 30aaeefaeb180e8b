package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

const sampleYAML = `
discord:
  log_channel_id: "123"
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./eventbot.db
  busy_timeout: 2s
reconcile:
  default_timezone: Europe/Berlin
  concurrency: 4
  batch_lock:
    driver: redis
    addr: localhost:6379
dispatch:
  enabled: true
  rate_per_sec: 2
board:
  enabled: true
`

func TestDecodeFormats(t *testing.T) {
	t.Setenv(EnvToken, "")

	tests := []struct {
		name    string
		path    string
		data    string
		wantErr bool
	}{
		{"yaml", "c.yaml", sampleYAML, false},
		{"json", "c.json", `{"storage":{"driver":"memory"},"reconcile":{"concurrency":2}}`, false},
		{"unknown key", "c.json", `{"telegram":{}}`, true},
		{"trailing", "c.json", `{}{}`, true},
		{"bad yaml", "c.yml", "a: [", true},
		{"empty yaml", "c.yaml", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.path, []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	cfg, err := Decode("c.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Reconcile.Concurrency != 4 || cfg.Reconcile.BatchLock.Driver != "redis" || cfg.Storage.BusyTimeout != "2s" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestDecodeEnvToken(t *testing.T) {
	t.Setenv(EnvToken, "from-env")
	cfg, err := Decode("c.json", []byte(`{"discord":{"token":"from-file"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Discord.Token != "from-env" {
		t.Fatalf("token = %q, want from-env", cfg.Discord.Token)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	a := &Config{Storage: StorageConfig{Driver: "memory"}}
	b := &Config{Storage: StorageConfig{Driver: "sqlite"}, Dispatch: DispatchConfig{Enabled: true}}
	b.Reconcile.BatchLock.Password = "secret"
	got, _ := SummarizeChange(a, b)
	want := []string{"storage", "reconcile", "dispatch"}
	if !slices.Equal(got, want) {
		t.Fatalf("SummarizeChange = %v, want %v", got, want)
	}
	if got, _ := SummarizeChange(b, b); len(got) != 0 {
		t.Fatalf("SummarizeChange(same) = %v, want none", got)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 5 * time.Second, false},
		{"0s", 5 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"2d", 48 * time.Hour, false},
		{"-1s", 0, true},
		{"-1d", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("x", tt.raw, 5*time.Second)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, %v; want %v, err %v", tt.raw, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Setenv(EnvToken, "")

	path := filepath.Join(t.TempDir(), "eventbot.json")
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"info"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Logging.Level == "bogus" {
			return os.ErrInvalid
		}
		return nil
	})
	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"logging":{"level":"bogus"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	if got := m.Get().Logging.Level; got != "debug" {
		t.Fatalf("Get level = %q, want debug", got)
	}
}
