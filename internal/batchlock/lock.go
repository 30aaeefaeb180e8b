// Package batchlock serializes reconcile runs on the same (guild, channel).
package batchlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	logx "eventbot/pkg/logx"
)

var ErrLockTimeout = errors.New("batchlock: timed out waiting for lock")

// Locker hands out advisory locks. release is always non-nil when err is nil
// and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Config selects the lock driver. Driver "" and "none" give Noop.
type Config struct {
	Driver   string
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Wait     time.Duration
}

// New builds the configured Locker.
func New(cfg Config, log logx.Logger) (Locker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return Noop{}, nil
	case "redis":
		if strings.TrimSpace(cfg.Addr) == "" {
			return nil, errors.New("batch_lock.addr is required for redis")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return NewRedis(client, cfg.TTL, cfg.Wait, log), nil
	default:
		return nil, fmt.Errorf("unknown batch_lock driver: %s", cfg.Driver)
	}
}

// Noop never blocks. Concurrent runs on one batch are last-writer-wins.
type Noop struct{}

func (Noop) Lock(context.Context, string) (func(), error) { return func() {}, nil }

const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Redis is a single-instance SET NX lock with a fencing token.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	log    logx.Logger
}

func NewRedis(client redis.UniversalClient, ttl, wait time.Duration, log logx.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Redis{client: client, ttl: ttl, wait: wait, poll: 100 * time.Millisecond, log: log}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	key = "eventbot:lock:" + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	t := time.NewTicker(r.poll)
	defer t.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		if ok {
			return r.releaser(key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-t.C:
		}
	}
}

func (r *Redis) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.client.Eval(ctx, unlockScript, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				r.log.Warn("batch lock release failed", logx.String("key", key), logx.Err(err))
			}
		})
	}
}
