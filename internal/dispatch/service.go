package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"eventbot/internal/board"
	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

var ErrNotStarted = errors.New("dispatch: not started")

func New(cfg Config, store storage.Store, cat *catalog.Catalog, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		cfg:     cfg,
		store:   store,
		cat:     cat,
		sender:  sender,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		now:     time.Now,
		entries: map[schedule.Batch][]entry{},
	}
}

// Start loads every enabled row, starts cron and, when sub is non-nil,
// follows batch-changed messages. A periodic full resync picks up changes
// made by other processes sharing the store.
func (s *Service) Start(ctx context.Context, sub message.Subscriber) error {
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return nil
	}
	if s.store == nil || s.sender == nil {
		s.mu.Unlock()
		return errors.New("dispatch: store and sender are required")
	}
	runCtx, cancel := context.WithCancel(ctx)
	var msgs <-chan *message.Message
	if sub != nil {
		var err error
		msgs, err = sub.Subscribe(runCtx, board.TopicBatchChanged)
		if err != nil {
			s.mu.Unlock()
			cancel()
			return fmt.Errorf("dispatch subscribe: %w", err)
		}
	}
	s.c = cron.New(cron.WithLocation(time.UTC))
	s.runCtx, s.cancel = runCtx, cancel
	s.done = make(chan struct{})
	s.c.Start()
	done := s.done
	s.mu.Unlock()

	if err := s.SyncAll(ctx); err != nil {
		s.log.Warn("initial sync failed", logx.Err(err))
	}
	go s.loop(runCtx, msgs, done)
	s.log.Info("dispatcher started", logx.Int("entries", s.count()))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	c, cancel, done := s.c, s.cancel, s.done
	s.c, s.cancel, s.done = nil, nil, nil
	s.entries = map[schedule.Batch][]entry{}
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("dispatcher stopped", logx.Duration("took", time.Since(start)))
	return nil
}

func (s *Service) loop(ctx context.Context, msgs <-chan *message.Message, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.cfg.ResyncEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.SyncAll(ctx); err != nil {
				s.log.Warn("resync failed", logx.Err(err))
			}
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			ev, err := board.DecodeBatchChanged(msg)
			if err == nil {
				err = s.SyncBatch(ctx, schedule.Batch{GuildID: ev.GuildID, ChannelID: ev.ChannelID})
			}
			if err != nil {
				s.log.Warn("batch sync failed", logx.Err(err))
			}
			msg.Ack()
		}
	}
}

// SyncAll replaces every entry with the enabled rows in the store.
func (s *Service) SyncAll(ctx context.Context) error {
	rows, err := s.store.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled: %w", err)
	}
	byBatch := map[schedule.Batch][]schedule.Row{}
	for _, r := range rows {
		byBatch[r.Batch] = append(byBatch[r.Batch], r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return ErrNotStarted
	}
	for b := range s.entries {
		if _, ok := byBatch[b]; !ok {
			s.replaceLocked(b, nil)
		}
	}
	for b, rs := range byBatch {
		s.replaceLocked(b, rs)
	}
	return nil
}

// SyncBatch reloads one batch.
func (s *Service) SyncBatch(ctx context.Context, b schedule.Batch) error {
	rows, err := s.store.ListByBatch(ctx, b)
	if err != nil {
		return fmt.Errorf("list batch: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return ErrNotStarted
	}
	s.replaceLocked(b, rows)
	s.log.Debug("batch synced", logx.String("batch", b.String()), logx.Int("entries", len(s.entries[b])))
	return nil
}

func (s *Service) replaceLocked(b schedule.Batch, rows []schedule.Row) {
	for _, e := range s.entries[b] {
		s.c.Remove(e.id)
	}
	delete(s.entries, b)

	now := s.now()
	var out []entry
	for _, row := range rows {
		if !row.Enabled || row.StartAt.IsZero() {
			continue
		}
		for _, lead := range row.Alert.LeadTimes() {
			sched := newAlertSchedule(row, lead)
			if sched.Next(now).IsZero() {
				continue
			}
			rowID, lead := row.ID, lead
			id := s.c.Schedule(sched, cron.FuncJob(func() { s.fire(rowID, lead) }))
			out = append(out, entry{id: id, rowID: rowID, batch: b, lead: lead, sched: sched})
		}
	}
	if len(out) > 0 {
		s.entries[b] = out
	}
}

func (s *Service) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, es := range s.entries {
		n += len(es)
	}
	return n
}

// Scheduled lists the registered entries by next fire time.
func (s *Service) Scheduled() []Scheduled {
	s.mu.Lock()
	now := s.now()
	var out []Scheduled
	for _, es := range s.entries {
		for _, e := range es {
			out = append(out, Scheduled{RowID: e.rowID, Batch: e.batch, Lead: e.lead, Next: e.sched.Next(now)})
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Next.Equal(out[j].Next) {
			return out[i].Next.Before(out[j].Next)
		}
		if out[i].RowID != out[j].RowID {
			return out[i].RowID < out[j].RowID
		}
		return out[i].Lead > out[j].Lead
	})
	return out
}

func (s *Service) fire(rowID int64, lead int) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	sent, err := s.Deliver(ctx, rowID, lead)
	if err != nil {
		s.log.Warn("reminder failed", logx.Int64("row_id", rowID), logx.Int("lead", lead), logx.Err(err))
		return
	}
	if sent {
		s.log.Info("reminder sent", logx.Int64("row_id", rowID), logx.Int("lead", lead))
	}
}
