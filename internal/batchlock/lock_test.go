package batchlock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	logx "eventbot/pkg/logx"
)

func TestNewDrivers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: Config{}},
		{name: "none", cfg: Config{Driver: "none"}},
		{name: "redis without addr", cfg: Config{Driver: "redis"}, wantErr: true},
		{name: "unknown", cfg: Config{Driver: "etcd"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.cfg, logx.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNoopRelease(t *testing.T) {
	t.Parallel()
	release, err := Noop{}.Lock(context.Background(), "g:c")
	if err != nil || release == nil {
		t.Fatalf("Lock() release set = %v, err = %v", release != nil, err)
	}
	release()
	release()
}

func TestRedisExclusive(t *testing.T) {
	addr := os.Getenv("EVENTBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EVENTBOT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedis(client, 5*time.Second, 300*time.Millisecond, logx.Nop())
	key := "test:" + time.Now().Format(time.RFC3339Nano)

	release, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if _, err := l.Lock(context.Background(), key); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second Lock() error = %v, want ErrLockTimeout", err)
	}
	release()
	release2, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	release2()
}
