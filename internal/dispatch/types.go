package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"eventbot/internal/adapters/discord"
	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

// Config controls the dispatcher.
type Config struct {
	Enabled     bool
	RatePerSec  float64       // sends per second across all channels (default 1)
	Burst       int           // default 3
	SendTimeout time.Duration // per fire (default 15s)
	ResyncEvery time.Duration // full reload from the store (default 5m)
	// Grace is how late a fire may run and still post (default 2m).
	Grace time.Duration
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.Burst <= 0 {
		c.Burst = 3
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	if c.ResyncEvery <= 0 {
		c.ResyncEvery = 5 * time.Minute
	}
	if c.Grace <= 0 {
		c.Grace = 2 * time.Minute
	}
	return c
}

// Sender posts a reminder. *discord.Client implements it.
type Sender interface {
	Post(ctx context.Context, channelID string, m discord.Message) (string, error)
}

// Scheduled describes one registered cron entry.
type Scheduled struct {
	RowID int64
	Batch schedule.Batch
	Lead  int // minutes before start
	Next  time.Time
}

type entry struct {
	id    cron.EntryID
	rowID int64
	batch schedule.Batch
	lead  int
	sched alertSchedule
}

type Service struct {
	mu sync.Mutex

	cfg     Config
	store   storage.Store
	cat     *catalog.Catalog
	sender  Sender
	log     logx.Logger
	limiter *rate.Limiter
	now     func() time.Time

	c       *cron.Cron
	entries map[schedule.Batch][]entry
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}
