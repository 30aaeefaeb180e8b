package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender delivers a plain-text line to a chat channel.
type Sender interface {
	SendText(ctx context.Context, channelID, text string) error
}

// Discord rejects messages over 2000 characters.
const (
	maxChannelText = 1900
	maxFieldText   = 300
	sendTimeout    = 10 * time.Second
)

// channelSink is a zerolog.LevelWriter. Lines are queued and delivered by
// one goroutine; when the queue is full or the rate is exceeded the line
// is dropped, so logging never waits on the network.
type channelSink struct {
	mu        sync.Mutex
	sender    Sender
	channelID string
	minLevel  zerolog.Level
	limiter   *rate.Limiter

	queue chan string
	start sync.Once
	stop  context.CancelFunc
	done  chan struct{}
}

func newChannelSink(sender Sender) *channelSink {
	return &channelSink{
		sender:   sender,
		minLevel: zerolog.WarnLevel,
		limiter:  rate.NewLimiter(1, 1),
		queue:    make(chan string, 256),
	}
}

func (c *channelSink) setSender(s Sender) {
	c.mu.Lock()
	c.sender = s
	c.mu.Unlock()
}

func (c *channelSink) configure(cfg ChannelConfig) {
	rps := max(1, cfg.RatePerSec)
	c.mu.Lock()
	c.channelID = strings.TrimSpace(cfg.ChannelID)
	c.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	c.mu.Unlock()

	if cfg.Enabled {
		c.start.Do(func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			c.mu.Lock()
			c.stop, c.done = cancel, done
			c.mu.Unlock()
			go c.run(ctx, done)
		})
	}
}

func (c *channelSink) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-c.queue:
			c.mu.Lock()
			sender, to := c.sender, c.channelID
			c.mu.Unlock()
			if sender == nil || to == "" {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, sendTimeout)
			_ = sender.SendText(sctx, to, text)
			cancel()
		}
	}
}

func (c *channelSink) close() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
}

func (c *channelSink) Write(p []byte) (int, error) { return c.WriteLevel(zerolog.InfoLevel, p) }

func (c *channelSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	c.mu.Lock()
	ok := c.channelID != "" && level >= c.minLevel && c.limiter.Allow()
	c.mu.Unlock()
	if !ok {
		return len(p), nil
	}
	if text := renderLine(p); text != "" {
		select {
		case c.queue <- text:
		default:
		}
	}
	return len(p), nil
}

// renderLine turns one JSON log line into a short chat message: the level
// and message in bold, then the fields sorted by key in a code block.
func renderLine(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return clip(strings.TrimSpace(string(p)), maxChannelText)
	}

	level, _ := m[zerolog.LevelFieldName].(string)
	msg, _ := m[zerolog.MessageFieldName].(string)
	delete(m, zerolog.LevelFieldName)
	delete(m, zerolog.MessageFieldName)
	delete(m, zerolog.TimestampFieldName)

	var b strings.Builder
	if level != "" {
		fmt.Fprintf(&b, "**%s** ", strings.ToUpper(level))
	}
	b.WriteString(msg)

	if len(m) > 0 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n```\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%s\n", k, clip(fmt.Sprint(m[k]), maxFieldText))
		}
		b.WriteString("```")
	}
	return clip(b.String(), maxChannelText)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 4 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
