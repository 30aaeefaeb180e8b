// Package discord is the outbound Discord transport: reminders, the schedule
// board and log lines are all posted through a Client.
package discord

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"

	"eventbot/internal/schedule"
	logx "eventbot/pkg/logx"
)

// maxContent is Discord's message content limit.
const maxContent = 2000

// Session is the subset of *discordgo.Session the bot uses.
type Session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

type Config struct {
	Token string
}

// Client wraps a Session. It is safe for concurrent use.
type Client struct {
	s   Session
	log logx.Logger
}

// New creates a bot session from a token. Only the guilds intent is
// requested; the bot never reads messages.
func New(cfg Config, log logx.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return NewWithSession(s, log), nil
}

func NewWithSession(s Session, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{s: s, log: log}
}

func (c *Client) Open() error {
	c.log.Info("opening discord gateway")
	return c.s.Open()
}

func (c *Client) Close() error {
	c.log.Info("closing discord gateway")
	return c.s.Close()
}

// Message is one outbound post.
type Message struct {
	Mention schedule.Mention
	Text    string
	Embed   *discordgo.MessageEmbed
}

// Post sends m and returns the created message id. Only the mention in m
// may ping; everything else in the content is inert.
func (c *Client) Post(ctx context.Context, channelID string, m Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content := strings.TrimSpace(MentionText(m.Mention) + " " + m.Text)
	send := &discordgo.MessageSend{
		Content:         truncate(content, maxContent),
		AllowedMentions: AllowedMentions(m.Mention),
	}
	if m.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{m.Embed}
	}
	msg, err := c.s.ChannelMessageSendComplex(channelID, send)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Delete removes a message the bot posted earlier.
func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.s.ChannelMessageDelete(channelID, messageID)
}

// SendText implements logx.Sender.
func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         truncate(text, maxContent),
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	})
	return err
}

// MentionText renders m in Discord message syntax.
func MentionText(m schedule.Mention) string {
	switch m.Kind {
	case schedule.MentionEveryone:
		return "@everyone"
	case schedule.MentionHere:
		return "@here"
	case schedule.MentionRole:
		return "<@&" + m.ID + ">"
	case schedule.MentionUser:
		return "<@" + m.ID + ">"
	default:
		return ""
	}
}

// AllowedMentions restricts pings to exactly m.
func AllowedMentions(m schedule.Mention) *discordgo.MessageAllowedMentions {
	am := &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
	switch m.Kind {
	case schedule.MentionEveryone, schedule.MentionHere:
		am.Parse = []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeEveryone}
	case schedule.MentionRole:
		am.Roles = []string{m.ID}
	case schedule.MentionUser:
		am.Users = []string{m.ID}
	}
	return am
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
