package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"eventbot/internal/adapters/discord"
	"eventbot/internal/board"
	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
)

const reminderColor = 0xF1C40F

// dedupKeep is how long past the occurrence a sent reminder is remembered.
const dedupKeep = time.Hour

// Deliver posts the reminder for row at lead minutes before its current
// occurrence. It reports false without error when the row is gone or
// disabled, the fire is not due, or the reminder was already sent.
func (s *Service) Deliver(ctx context.Context, rowID int64, lead int) (bool, error) {
	row, err := s.store.Get(ctx, rowID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get row: %w", err)
	}
	if !row.Enabled {
		return false, nil
	}

	now := s.now()
	leadDur := time.Duration(lead) * time.Minute
	start, ok := row.NextFire(now.Add(leadDur).Add(-s.cfg.Grace))
	if !ok {
		return false, nil
	}
	if start.Add(-leadDur).After(now.Add(s.cfg.Grace)) {
		return false, nil
	}

	key := fmt.Sprintf("alert:%d:%d:%d", row.ID, lead, start.Unix())
	if until, seen, err := s.store.GetDedup(ctx, key); err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	} else if seen && until.After(now) {
		return false, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}
	if _, err := s.sender.Post(ctx, row.Batch.ChannelID, Reminder(s.cat, row, lead, start)); err != nil {
		return false, fmt.Errorf("post: %w", err)
	}
	if err := s.store.PutDedup(ctx, key, start.Add(dedupKeep)); err != nil {
		return true, fmt.Errorf("dedup store: %w", err)
	}
	return true, nil
}

// Reminder builds the message for one fire of row.
func Reminder(cat *catalog.Catalog, row schedule.Row, lead int, start time.Time) discord.Message {
	title := board.EntryTitle(cat, row)
	text := fmt.Sprintf("**%s** starts <t:%d:R>", title, start.Unix())
	if lead == 0 {
		text = fmt.Sprintf("**%s** is starting now!", title)
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: row.Payload.Description,
		Color:       reminderColor,
		Timestamp:   start.UTC().Format(time.RFC3339),
	}
	if row.Payload.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: row.Payload.ImageURL}
	}
	if row.Payload.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: row.Payload.ThumbnailURL}
	}
	return discord.Message{Mention: row.Mention, Text: text, Embed: embed}
}
