package discord

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"eventbot/internal/schedule"
	logx "eventbot/pkg/logx"
)

type fakeSession struct {
	mu      sync.Mutex
	sent    []*discordgo.MessageSend
	deleted []string
}

func (f *fakeSession) Open() error  { return nil }
func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return f.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: content})
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: "m" + string(rune('0'+len(f.sent))), ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID+"/"+messageID)
	return nil
}

func TestMentionRendering(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m     schedule.Mention
		text  string
		parse int
		roles int
		users int
	}{
		{schedule.Mention{Kind: schedule.MentionNone}, "", 0, 0, 0},
		{schedule.Mention{Kind: schedule.MentionEveryone}, "@everyone", 1, 0, 0},
		{schedule.Mention{Kind: schedule.MentionHere}, "@here", 1, 0, 0},
		{schedule.Mention{Kind: schedule.MentionRole, ID: "42"}, "<@&42>", 0, 1, 0},
		{schedule.Mention{Kind: schedule.MentionUser, ID: "7"}, "<@7>", 0, 0, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.m.String(), func(t *testing.T) {
			t.Parallel()
			if got := MentionText(tt.m); got != tt.text {
				t.Fatalf("MentionText() = %q, want %q", got, tt.text)
			}
			am := AllowedMentions(tt.m)
			if len(am.Parse) != tt.parse || len(am.Roles) != tt.roles || len(am.Users) != tt.users {
				t.Fatalf("AllowedMentions() = %+v", am)
			}
		})
	}
}

func TestPostAndDelete(t *testing.T) {
	t.Parallel()
	fs := &fakeSession{}
	c := NewWithSession(fs, logx.Nop())

	id, err := c.Post(context.Background(), "c1", Message{
		Mention: schedule.Mention{Kind: schedule.MentionRole, ID: "42"},
		Text:    "Crazy Joe in 10 minutes",
		Embed:   &discordgo.MessageEmbed{Title: "Crazy Joe"},
	})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if id != "m1" {
		t.Fatalf("Post() id = %q, want m1", id)
	}
	got := fs.sent[0]
	if got.Content != "<@&42> Crazy Joe in 10 minutes" || len(got.Embeds) != 1 {
		t.Fatalf("sent = %+v", got)
	}
	if len(got.AllowedMentions.Roles) != 1 || got.AllowedMentions.Roles[0] != "42" {
		t.Fatalf("AllowedMentions = %+v", got.AllowedMentions)
	}

	if err := c.Delete(context.Background(), "c1", id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(fs.deleted) != 1 || fs.deleted[0] != "c1/m1" {
		t.Fatalf("deleted = %v", fs.deleted)
	}
}

func TestSendTextNeverPings(t *testing.T) {
	t.Parallel()
	fs := &fakeSession{}
	c := NewWithSession(fs, logx.Nop())
	if err := c.SendText(context.Background(), "log", "@everyone "+strings.Repeat("x", 3000)); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	got := fs.sent[0]
	if len(got.AllowedMentions.Parse) != 0 {
		t.Fatalf("log line may ping: %+v", got.AllowedMentions)
	}
	if n := len([]rune(got.Content)); n != maxContent {
		t.Fatalf("content runes = %d, want %d", n, maxContent)
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatalf("New() error = nil")
	}
}
