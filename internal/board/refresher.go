package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bwmarrin/discordgo"

	"eventbot/internal/adapters/discord"
	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

// maxFields is Discord's embed field limit.
const maxFields = 25

const boardColor = 0x5865F2

// Poster is the part of discord.Client the board needs.
type Poster interface {
	Post(ctx context.Context, channelID string, m discord.Message) (string, error)
	Delete(ctx context.Context, channelID, messageID string) error
}

// Refresher reposts the schedule board of a batch whenever it changes.
// The previous board message is deleted after the new one is up.
type Refresher struct {
	store   storage.Store
	cat     *catalog.Catalog
	poster  Poster
	log     logx.Logger
	now     func() time.Time
	timeout time.Duration

	mu     sync.Mutex
	last   map[schedule.Batch]string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(store storage.Store, cat *catalog.Catalog, poster Poster, log logx.Logger) *Refresher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Refresher{
		store:   store,
		cat:     cat,
		poster:  poster,
		log:     log,
		now:     time.Now,
		timeout: 15 * time.Second,
		last:    map[schedule.Batch]string{},
	}
}

// Start subscribes to TopicBatchChanged and refreshes boards until Stop.
func (r *Refresher) Start(ctx context.Context, sub message.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := sub.Subscribe(ctx, TopicBatchChanged)
	if err != nil {
		cancel()
		return fmt.Errorf("board subscribe: %w", err)
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, msgs, r.done)
	r.log.Info("board refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		r.log.Info("board refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) loop(ctx context.Context, msgs <-chan *message.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ev, err := DecodeBatchChanged(msg)
			if err != nil {
				r.log.Warn("board: bad message", logx.Err(err))
				msg.Ack()
				continue
			}
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			err = r.Refresh(cctx, schedule.Batch{GuildID: ev.GuildID, ChannelID: ev.ChannelID})
			cancel()
			if err != nil {
				r.log.Warn("board refresh failed",
					logx.String("guild_id", ev.GuildID),
					logx.String("channel_id", ev.ChannelID),
					logx.Err(err),
				)
			}
			msg.Ack()
		}
	}
}

// Refresh posts the current board for b. A batch with no enabled rows only
// loses its previous board.
func (r *Refresher) Refresh(ctx context.Context, b schedule.Batch) error {
	if r.store == nil || r.poster == nil {
		return errors.New("board: not configured")
	}
	rows, err := r.store.ListByBatch(ctx, b)
	if err != nil {
		return fmt.Errorf("list batch: %w", err)
	}

	r.mu.Lock()
	prev := r.last[b]
	r.mu.Unlock()

	embed := Render(r.cat, rows, r.now())
	if embed == nil {
		r.mu.Lock()
		delete(r.last, b)
		r.mu.Unlock()
		if prev != "" {
			return r.poster.Delete(ctx, b.ChannelID, prev)
		}
		return nil
	}

	id, err := r.poster.Post(ctx, b.ChannelID, discord.Message{Embed: embed})
	if err != nil {
		return fmt.Errorf("post board: %w", err)
	}
	r.mu.Lock()
	r.last[b] = id
	r.mu.Unlock()

	if prev != "" {
		if err := r.poster.Delete(ctx, b.ChannelID, prev); err != nil {
			r.log.Debug("board: delete previous failed", logx.String("message_id", prev), logx.Err(err))
		}
	}
	r.log.Debug("board refreshed", logx.String("batch", b.String()), logx.String("message_id", id))
	return nil
}

// Entry is one upcoming reminder line.
type Entry struct {
	Row schedule.Row
	At  time.Time
}

// Upcoming returns the next fire time of every enabled row that still has
// one, soonest first. n <= 0 means no limit.
func Upcoming(rows []schedule.Row, now time.Time, n int) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if !row.Enabled {
			continue
		}
		at, ok := row.NextFire(now)
		if !ok {
			continue
		}
		out = append(out, Entry{Row: row, At: at})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Row.ID < out[j].Row.ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Render builds the board embed. It returns nil when nothing is scheduled.
func Render(cat *catalog.Catalog, rows []schedule.Row, now time.Time) *discordgo.MessageEmbed {
	entries := Upcoming(rows, now, maxFields)
	if len(entries) == 0 {
		return nil
	}
	e := &discordgo.MessageEmbed{
		Title:     "📅 Upcoming events",
		Color:     boardColor,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	for _, en := range entries {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  EntryTitle(cat, en.Row),
			Value: fmt.Sprintf("<t:%d:F> (<t:%d:R>)", en.At.Unix(), en.At.Unix()),
		})
	}
	return e
}

// EntryTitle prefers the stored payload title and falls back to the
// catalog naming.
func EntryTitle(cat *catalog.Catalog, row schedule.Row) string {
	if row.Payload.Title != "" {
		return row.Payload.Title
	}
	if cat != nil {
		if def, ok := cat.Get(row.Key.EventType); ok {
			return def.Title() + " — " + def.InstanceName(row.Key.Instance)
		}
	}
	return row.Key.String()
}
