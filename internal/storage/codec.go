package storage

import (
	"encoding/json"
	"strings"
	"time"

	"eventbot/internal/schedule"
)

// Column encoders shared by the SQL drivers.

func encodeOffsets(offs []int) string {
	if len(offs) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(offs)
	return string(b)
}

func decodeOffsets(s string) []int {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil
	}
	var out []int
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// decodeMention is lenient: stored values that no longer parse read as none.
func decodeMention(s string) schedule.Mention {
	m, err := schedule.ParseMention(s)
	if err != nil {
		return schedule.Mention{Kind: schedule.MentionNone}
	}
	return m
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
