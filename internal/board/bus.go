package board

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	logx "eventbot/pkg/logx"
)

// TopicBatchChanged carries BatchChanged payloads.
const TopicBatchChanged = "schedule.batch_changed"

// BatchChanged is published after every reconcile run.
type BatchChanged struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	At        time.Time `json:"at"`
}

// NewBus returns the in-process pub/sub used between reconcile, the board
// and the dispatcher.
func NewBus(log logx.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewWatermillLogger(log))
}

// Publisher implements Notifier on top of a watermill publisher.
type Publisher struct {
	pub message.Publisher
	now func() time.Time
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub, now: time.Now}
}

func (p *Publisher) OnBatchChanged(ctx context.Context, guildID, channelID string) error {
	b, err := json.Marshal(BatchChanged{GuildID: guildID, ChannelID: channelID, At: p.now().UTC()})
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("guild_id", guildID)
	msg.Metadata.Set("channel_id", channelID)
	msg.SetContext(ctx)
	if err := p.pub.Publish(TopicBatchChanged, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicBatchChanged, err)
	}
	return nil
}

// DecodeBatchChanged parses a message published by Publisher.
func DecodeBatchChanged(msg *message.Message) (BatchChanged, error) {
	var ev BatchChanged
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return BatchChanged{}, fmt.Errorf("decode %s: %w", TopicBatchChanged, err)
	}
	if ev.GuildID == "" || ev.ChannelID == "" {
		return BatchChanged{}, fmt.Errorf("decode %s: missing batch", TopicBatchChanged)
	}
	return ev, nil
}

// watermillLogger adapts logx to watermill.LoggerAdapter.
type watermillLogger struct {
	log logx.Logger
}

func NewWatermillLogger(log logx.Logger) watermill.LoggerAdapter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return watermillLogger{log: log}
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Error(msg, append(toFields(fields), logx.Err(err))...)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Info(msg, toFields(fields)...)
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debug(msg, toFields(fields)...)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Trace(msg, toFields(fields)...)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{log: w.log.With(toFields(fields)...)}
}

func toFields(fields watermill.LogFields) []logx.Field {
	out := make([]logx.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, logx.Any(k, v))
	}
	return out
}
