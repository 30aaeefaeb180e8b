package recurrence

import (
	"errors"
	"testing"
	"time"

	"eventbot/internal/catalog"
)

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func date(y int, m time.Month, d, hh, mm int, loc *time.Location) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

func TestValidateTimeSlot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		grid int
		want bool
	}{
		{"14:32", 5, false},
		{"14:30", 5, true},
		{"25:00", 5, false},
		{"00:00", 5, true},
		{"23:55", 5, true},
		{"9:05", 5, true},
		{"14:3", 5, false},
		{"14:60", 5, false},
		{"-1:00", 5, false},
		{"+5:30", 5, false},
		{"-0:00", 5, false},
		{"14:+5", 5, false},
		{"14:-0", 5, false},
		{" 9:05", 5, true},
		{"9 :05", 5, false},
		{"1430", 5, false},
		{"", 5, false},
		{"14:32", 1, true},
		{"14:45", 15, true},
		{"14:40", 15, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := ValidateTimeSlot(tt.in, tt.grid); got != tt.want {
				t.Fatalf("ValidateTimeSlot(%q, %d) = %v, want %v", tt.in, tt.grid, got, tt.want)
			}
		})
	}
}

func TestCrazyJoeDates(t *testing.T) {
	t.Parallel()

	calc := New(catalog.MustDefault())
	tests := []struct {
		name    string
		ref     time.Time
		wantTue time.Time
		wantThu time.Time
	}{
		{"epoch day", date(2025, 1, 7, 9, 0, time.UTC), date(2025, 1, 7, 0, 0, time.UTC), date(2025, 1, 9, 0, 0, time.UTC)},
		{"between tue and thu", date(2025, 1, 8, 0, 0, time.UTC), date(2025, 2, 4, 0, 0, time.UTC), date(2025, 2, 6, 0, 0, time.UTC)},
		{"off week", date(2025, 1, 21, 0, 0, time.UTC), date(2025, 2, 4, 0, 0, time.UTC), date(2025, 2, 6, 0, 0, time.UTC)},
		{"late 2026", date(2026, 10, 16, 0, 0, time.UTC), date(2026, 11, 10, 0, 0, time.UTC), date(2026, 11, 12, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tue, thu, err := calc.CrazyJoeDates(tt.ref)
			if err != nil {
				t.Fatalf("CrazyJoeDates error: %v", err)
			}
			if !tue.Equal(tt.wantTue) || !thu.Equal(tt.wantThu) {
				t.Fatalf("CrazyJoeDates(%s) = %s, %s; want %s, %s", tt.ref, tue, thu, tt.wantTue, tt.wantThu)
			}
			if tue.Weekday() != time.Tuesday || thu.Weekday() != time.Thursday {
				t.Fatalf("weekdays = %s/%s", tue.Weekday(), thu.Weekday())
			}
			if thu.Before(tue) {
				t.Fatalf("thursday %s before tuesday %s", thu, tue)
			}
		})
	}
}

func TestPairDatesRejectsSingleInstanceEvents(t *testing.T) {
	t.Parallel()

	calc := New(catalog.MustDefault())
	if _, _, err := calc.PairDates("daily_reset", time.Now()); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("PairDates(daily_reset) error = %v, want ErrNotPaired", err)
	}
	if _, _, err := calc.PairDates("nope", time.Now()); !errors.Is(err, catalog.ErrUnknownEvent) {
		t.Fatalf("PairDates(nope) error = %v, want ErrUnknownEvent", err)
	}
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()

	cat := catalog.MustDefault()
	tests := []struct {
		name   string
		now    time.Time
		event  string
		want   time.Time
		wantOK bool
	}{
		{"custom date has no rule", date(2025, 1, 6, 12, 0, time.UTC), "mercenary_prestige", time.Time{}, false},
		{"daily is today", date(2025, 1, 6, 12, 0, time.UTC), "daily_reset", date(2025, 1, 6, 0, 0, time.UTC), true},
		{"biweekly sunday", date(2025, 1, 6, 12, 0, time.UTC), "foundry_battle", date(2025, 1, 19, 0, 0, time.UTC), true},
		{"biweekly sunday same day", date(2025, 1, 19, 23, 0, time.UTC), "foundry_battle", date(2025, 1, 19, 0, 0, time.UTC), true},
		{"phase set picks earliest phase", date(2025, 1, 14, 8, 0, time.UTC), "svs", date(2025, 1, 18, 0, 0, time.UTC), true},
		{"window open", date(2025, 1, 8, 10, 0, time.UTC), "frostfire_mine", date(2025, 1, 8, 0, 0, time.UTC), true},
		{"window closed", date(2025, 1, 10, 10, 0, time.UTC), "frostfire_mine", date(2025, 1, 21, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calc := New(cat, fixedClock(tt.now))
			got, ok, err := calc.NextOccurrence(tt.event, time.UTC)
			if err != nil {
				t.Fatalf("NextOccurrence error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextOccurrence = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextOccurrenceUsesSessionZone(t *testing.T) {
	t.Parallel()

	// 02:00 UTC Monday is still Sunday evening five hours west.
	west := time.FixedZone("UTC-5", -5*60*60)
	calc := New(catalog.MustDefault(), fixedClock(date(2025, 1, 20, 2, 0, time.UTC)))

	got, ok, err := calc.NextOccurrence("foundry_battle", west)
	if err != nil || !ok {
		t.Fatalf("NextOccurrence = %v, %v, %v", got, ok, err)
	}
	want := date(2025, 1, 19, 0, 0, west)
	if !got.Equal(want) {
		t.Fatalf("NextOccurrence = %s, want %s", got, want)
	}
}

func TestInstanceStart(t *testing.T) {
	t.Parallel()

	cat := catalog.MustDefault()
	now := date(2025, 1, 6, 12, 0, time.UTC)
	west := time.FixedZone("UTC-5", -5*60*60)

	tests := []struct {
		name  string
		event string
		slot  Slot
		loc   *time.Location
		now   time.Time
		want  time.Time
	}{
		{
			name:  "custom date keeps past anchor",
			event: "bear_trap",
			slot:  Slot{Instance: "bt1", Hour: 14, Minute: 0, Anchor: catalog.Date{Year: 2025, Month: 1, Day: 1}},
			want:  date(2025, 1, 1, 14, 0, time.UTC),
		},
		{
			name:  "custom date future anchor",
			event: "bear_trap",
			slot:  Slot{Instance: "bt2", Hour: 14, Minute: 35, Anchor: catalog.Date{Year: 2025, Month: 1, Day: 9}},
			want:  date(2025, 1, 9, 14, 35, time.UTC),
		},
		{
			name:  "year rollover",
			event: "mercenary_prestige",
			slot:  Slot{Instance: "default", Hour: 14, Minute: 0, Anchor: catalog.Date{Year: 2025, Month: 1, Day: 1}},
			want:  date(2026, 1, 1, 14, 0, time.UTC),
		},
		{
			name:  "no rollover when anchor ahead",
			event: "mercenary_prestige",
			slot:  Slot{Instance: "default", Hour: 14, Minute: 0, Anchor: catalog.Date{Year: 2025, Month: 1, Day: 6}},
			want:  date(2025, 1, 6, 14, 0, time.UTC),
		},
		{
			name:  "fixed weekday instance",
			event: "crazy_joe",
			slot:  Slot{Instance: "thursday", Hour: 20, Minute: 0},
			want:  date(2025, 1, 9, 20, 0, time.UTC),
		},
		{
			name:  "fixed weekday in session zone",
			event: "svs",
			slot:  Slot{Instance: "battle", Hour: 21, Minute: 0},
			loc:   west,
			want:  date(2025, 1, 19, 2, 0, time.UTC),
		},
		{
			name:  "window day two still ahead",
			event: "frostfire_mine",
			slot:  Slot{Instance: "boss_1", Hour: 10, Minute: 0, Day: 2},
			now:   date(2025, 1, 8, 9, 0, time.UTC),
			want:  date(2025, 1, 8, 10, 0, time.UTC),
		},
		{
			name:  "window day two passed",
			event: "frostfire_mine",
			slot:  Slot{Instance: "boss_1", Hour: 10, Minute: 0, Day: 2},
			now:   date(2025, 1, 8, 11, 0, time.UTC),
			want:  date(2025, 1, 22, 10, 0, time.UTC),
		},
		{
			name:  "daily rolls to tomorrow",
			event: "daily_reset",
			slot:  Slot{Instance: "daily", Hour: 0, Minute: 0},
			want:  date(2025, 1, 7, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := now
			if !tt.now.IsZero() {
				clock = tt.now
			}
			loc := tt.loc
			if loc == nil {
				loc = time.UTC
			}
			calc := New(cat, fixedClock(clock))
			got, err := calc.InstanceStart(cat.MustGet(tt.event), tt.slot, loc)
			if err != nil {
				t.Fatalf("InstanceStart error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("InstanceStart = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInstanceStartErrors(t *testing.T) {
	t.Parallel()

	strict, err := catalog.New(catalog.Definition{
		Name:          "raid",
		Recurrence:    catalog.CustomDate{PastAnchor: catalog.PastAnchorReject},
		RepeatMinutes: 0,
		Instances:     []catalog.Instance{{ID: "default"}},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	now := date(2025, 1, 6, 12, 0, time.UTC)
	calc := New(strict, fixedClock(now))
	raid := strict.MustGet("raid")

	_, err = calc.InstanceStart(raid, Slot{Instance: "default", Hour: 9, Anchor: catalog.Date{Year: 2025, Month: 1, Day: 6}}, time.UTC)
	if !errors.Is(err, ErrAnchorInPast) {
		t.Fatalf("past anchor error = %v, want ErrAnchorInPast", err)
	}
	_, err = calc.InstanceStart(raid, Slot{Instance: "default", Hour: 9}, time.UTC)
	if !errors.Is(err, ErrAnchorRequired) {
		t.Fatalf("missing anchor error = %v, want ErrAnchorRequired", err)
	}

	def := catalog.MustDefault()
	calc = New(def, fixedClock(now))
	_, err = calc.InstanceStart(def.MustGet("frostfire_mine"), Slot{Instance: "boss_1", Day: 4}, time.UTC)
	if !errors.Is(err, ErrDayOutOfWindow) {
		t.Fatalf("day 4 error = %v, want ErrDayOutOfWindow", err)
	}
	_, err = calc.InstanceStart(def.MustGet("crazy_joe"), Slot{Instance: "friday"}, time.UTC)
	if !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("unknown instance error = %v, want ErrUnknownInstance", err)
	}
}
