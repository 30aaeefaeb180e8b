package reconcile

import (
	"context"
	"time"

	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	logx "eventbot/pkg/logx"
)

// Seed pre-populates a configuration flow from what is already stored.
type Seed struct {
	// IsUpdate is set when the batch has at least one enabled instance.
	IsUpdate bool
	Desired  schedule.DesiredSet
	Timezone string
	Mention  schedule.Mention
	Alert    schedule.AlertProfile
}

// LoadExisting turns the enabled rows of a batch back into a DesiredSet.
// Rows that no longer validate are skipped and logged. Timezone, mention
// and alert come from the most recently updated enabled row.
func (e *Engine) LoadExisting(ctx context.Context, guildID, channelID string) (Seed, error) {
	if e.store == nil {
		return Seed{}, &NotFoundError{Collaborator: "store"}
	}
	log := e.log.With(logx.String("guild", guildID), logx.String("channel", channelID))
	base, err := NewLoader(e.store, e.cat, log).Load(ctx, guildID, channelID)
	if err != nil {
		return Seed{}, err
	}

	seed := Seed{
		Timezone: e.cfg.DefaultTimezone,
		Mention:  schedule.Mention{Kind: schedule.MentionNone},
		Alert:    schedule.AlertProfile{Name: schedule.DefaultAlertProfile},
	}
	var (
		accepted []schedule.DesiredInstance
		latest   time.Time
	)
	for _, ev := range base.EventTypes() {
		def, ok := e.cat.Get(ev)
		if !ok {
			log.Warn("seed: unknown event type", logx.String("event_type", ev))
			continue
		}
		for _, k := range base.Keys(ev) {
			r := base.Rows[k]
			if !r.Enabled {
				continue
			}
			seed.IsUpdate = true
			if !r.UpdatedAt.Before(latest) {
				latest = r.UpdatedAt
				seed.Timezone = r.Timezone
				seed.Mention = r.Mention
				seed.Alert = r.Alert
			}
			d := desiredFromRow(def, k, r)
			if _, err := buildSet(e.cat, append(accepted, d)); err != nil {
				log.Warn("seed: skipping row", logx.Int64("row_id", r.ID), logx.Err(err))
				continue
			}
			accepted = append(accepted, d)
		}
	}

	set, err := buildSet(e.cat, accepted)
	if err != nil {
		return Seed{}, err
	}
	seed.Desired = set
	return seed, nil
}

func desiredFromRow(def *catalog.Definition, k schedule.InstanceKey, r schedule.Row) schedule.DesiredInstance {
	d := schedule.DesiredInstance{Key: k, Hour: r.Hour, Minute: r.Minute, Day: r.Day}
	if def.Class() == catalog.ClassCustomDate && !r.StartAt.IsZero() {
		d.Anchor = catalog.DateOf(r.StartAt.In(r.Location()))
	}
	if r.RepeatMinutes != def.RepeatMinutes {
		v := r.RepeatMinutes
		d.RepeatMinutes = &v
	}
	return d
}

func buildSet(cat *catalog.Catalog, ds []schedule.DesiredInstance) (schedule.DesiredSet, error) {
	b := schedule.NewBuilder(cat)
	for _, d := range ds {
		if err := b.Add(d); err != nil {
			return schedule.DesiredSet{}, err
		}
	}
	return b.Build()
}
