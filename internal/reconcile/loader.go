package reconcile

import (
	"context"
	"fmt"
	"sort"

	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

// Baseline is the persisted state of one batch, keyed by instance.
type Baseline struct {
	Batch schedule.Batch
	Rows  map[schedule.InstanceKey]schedule.Row
	// Orphans are rows that could not be given a key (legacy rows past the
	// slot table, duplicates of a key). They are never modified.
	Orphans []schedule.Row
}

// Row returns the row stored under k.
func (b Baseline) Row(k schedule.InstanceKey) (schedule.Row, bool) {
	r, ok := b.Rows[k]
	return r, ok
}

// Keys returns the keys of eventType, sorted by instance.
func (b Baseline) Keys(eventType string) []schedule.InstanceKey {
	var out []schedule.InstanceKey
	for k := range b.Rows {
		if k.EventType == eventType {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// EventTypes returns every event type that has at least one enabled row.
func (b Baseline) EventTypes() []string {
	seen := map[string]bool{}
	var out []string
	for k, r := range b.Rows {
		if r.Enabled && !seen[k.EventType] {
			seen[k.EventType] = true
			out = append(out, k.EventType)
		}
	}
	sort.Strings(out)
	return out
}

// Loader reads a batch and resolves row identities. It never writes.
type Loader struct {
	store storage.Store
	cat   *catalog.Catalog
	log   logx.Logger
}

func NewLoader(store storage.Store, cat *catalog.Catalog, log logx.Logger) *Loader {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loader{store: store, cat: cat, log: log}
}

// Load lists the batch, disabled rows included, and keys every row.
//
// Rows with an instance id keep it. Rows written before instance ids
// existed are given the event's legacy slots in ascending id order, skipping
// slots that an explicit row already holds. When two rows resolve to the
// same key the lowest id wins.
func (l *Loader) Load(ctx context.Context, guildID, channelID string) (Baseline, error) {
	if l.store == nil {
		return Baseline{}, &NotFoundError{Collaborator: "store"}
	}
	batch := schedule.Batch{GuildID: guildID, ChannelID: channelID}
	rows, err := l.store.ListByBatch(ctx, batch)
	if err != nil {
		return Baseline{}, fmt.Errorf("list batch %s: %w", batch, err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	base := Baseline{Batch: batch, Rows: make(map[schedule.InstanceKey]schedule.Row, len(rows))}
	legacy := map[string][]schedule.Row{}
	var legacyTypes []string

	for _, r := range rows {
		if r.Key.Instance == "" {
			if _, ok := legacy[r.Key.EventType]; !ok {
				legacyTypes = append(legacyTypes, r.Key.EventType)
			}
			legacy[r.Key.EventType] = append(legacy[r.Key.EventType], r)
			continue
		}
		l.claim(&base, schedule.NewInstanceKey(r.Key.EventType, r.Key.Instance), r)
	}

	for _, ev := range legacyTypes {
		var slots []string
		if def, ok := l.cat.Get(ev); ok {
			slots = def.LegacySlots
		}
		next := 0
		for _, r := range legacy[ev] {
			for next < len(slots) {
				if _, taken := base.Rows[schedule.NewInstanceKey(ev, slots[next])]; !taken {
					break
				}
				next++
			}
			if next >= len(slots) {
				l.orphan(&base, r, "no legacy slot left")
				continue
			}
			base.Rows[schedule.NewInstanceKey(ev, slots[next])] = r
			next++
		}
	}
	return base, nil
}

func (l *Loader) claim(base *Baseline, k schedule.InstanceKey, r schedule.Row) {
	if _, dup := base.Rows[k]; dup {
		l.orphan(base, r, "duplicate of "+k.String())
		return
	}
	base.Rows[k] = r
}

func (l *Loader) orphan(base *Baseline, r schedule.Row, reason string) {
	base.Orphans = append(base.Orphans, r)
	l.log.Warn("ignoring row",
		logx.Int64("row_id", r.ID),
		logx.String("batch", base.Batch.String()),
		logx.String("event_type", r.Key.EventType),
		logx.String("reason", reason),
	)
}
