package board

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"eventbot/internal/catalog"
	"eventbot/internal/schedule"
)

// eventLength is the nominal VEVENT duration; reminders have no end time.
const eventLength = 30 * time.Minute

// Calendar renders the enabled rows of one batch as iCalendar. Repeating
// rows carry an RRULE derived from their repeat interval.
func Calendar(cat *catalog.Catalog, b schedule.Batch, rows []schedule.Row, now time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//eventbot//schedule//EN")
	cal.SetXWRCalName("Events " + b.String())

	for _, row := range rows {
		if !row.Enabled || row.StartAt.IsZero() {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("row-%d-%s@eventbot", row.ID, b.ChannelID))
		ev.SetDtStampTime(now.UTC())
		ev.SetCreatedTime(row.CreatedAt.UTC())
		ev.SetModifiedAt(row.UpdatedAt.UTC())
		ev.SetStartAt(row.StartAt.UTC())
		ev.SetEndAt(row.StartAt.Add(eventLength).UTC())
		ev.SetSummary(EntryTitle(cat, row))
		if row.Payload.Description != "" {
			ev.SetDescription(row.Payload.Description)
		}
		if rule := RepeatRule(row.RepeatMinutes); rule != "" {
			ev.AddRrule(rule)
		}
	}
	return cal
}

// WriteCalendar serializes Calendar to w.
func WriteCalendar(w io.Writer, cat *catalog.Catalog, b schedule.Batch, rows []schedule.Row, now time.Time) error {
	_, err := io.WriteString(w, Calendar(cat, b, rows, now).Serialize())
	return err
}

// RepeatRule maps a repeat interval to the coarsest exact RRULE, or "" for
// one-off rows.
func RepeatRule(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	opt := rrule.ROption{Freq: rrule.MINUTELY, Interval: minutes}
	switch {
	case minutes%(7*24*60) == 0:
		opt = rrule.ROption{Freq: rrule.WEEKLY, Interval: minutes / (7 * 24 * 60)}
	case minutes%(24*60) == 0:
		opt = rrule.ROption{Freq: rrule.DAILY, Interval: minutes / (24 * 60)}
	case minutes%60 == 0:
		opt = rrule.ROption{Freq: rrule.HOURLY, Interval: minutes / 60}
	}
	return opt.RRuleString()
}
