package reconcile

import (
	"testing"
	"time"

	"eventbot/internal/catalog"
	"eventbot/internal/recurrence"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	"eventbot/internal/templates"
	logx "eventbot/pkg/logx"
)

// Monday, one day before the first Crazy Joe of the 2025 cadence.
var testNow = time.Date(2025, time.January, 6, 12, 0, 0, 0, time.UTC)

var testBatch = schedule.Batch{GuildID: "100", ChannelID: "200"}

func testCalc(cat *catalog.Catalog) *recurrence.Calculator {
	return recurrence.New(cat, recurrence.WithClock(func() time.Time { return testNow }))
}

func newTestEngine(store storage.Store, lookup templates.Lookup, opts ...Option) *Engine {
	cat := catalog.MustDefault()
	return New(Config{DefaultTimezone: "UTC", CallTimeout: time.Second}, cat, testCalc(cat), store, lookup, opts...)
}

func at(ev, inst string, h, m int) schedule.DesiredInstance {
	return schedule.DesiredInstance{Key: schedule.NewInstanceKey(ev, inst), Hour: h, Minute: m}
}

func desiredSet(t *testing.T, ds ...schedule.DesiredInstance) schedule.DesiredSet {
	t.Helper()
	b := schedule.NewBuilder(catalog.MustDefault())
	for _, d := range ds {
		if err := b.Add(d); err != nil {
			t.Fatalf("Add(%s) error = %v", d.Key, err)
		}
	}
	set, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return set
}

func request(set schedule.DesiredSet) Request {
	return Request{GuildID: testBatch.GuildID, ChannelID: testBatch.ChannelID, Desired: set, Timezone: "UTC"}
}

func rowsByKey(t *testing.T, st storage.Store) map[schedule.InstanceKey]schedule.Row {
	t.Helper()
	base, err := NewLoader(st, catalog.MustDefault(), logx.Nop()).Load(t.Context(), testBatch.GuildID, testBatch.ChannelID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return base.Rows
}
