package recurrence

import (
	"fmt"
	"strings"
)

// ParseTimeSlot parses a strict "HH:MM" wall-clock time.
func ParseTimeSlot(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, ok := digits(parts[0])
	if !ok || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, ok := digits(parts[1])
	if !ok || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// digits parses an unsigned decimal. Signs and spaces are rejected.
func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, s != ""
}

// ValidateTimeSlot reports whether text is a valid HH:MM time whose minute
// sits on the grid. It never returns an error; anything unparsable is false.
func ValidateTimeSlot(text string, gridMinutes int) bool {
	_, m, err := ParseTimeSlot(text)
	if err != nil {
		return false
	}
	return OnGrid(m, gridMinutes)
}

// OnGrid reports whether minute is a multiple of gridMinutes. A grid <= 1
// accepts every minute.
func OnGrid(minute, gridMinutes int) bool {
	if minute < 0 || minute > 59 {
		return false
	}
	if gridMinutes <= 1 {
		return true
	}
	return minute%gridMinutes == 0
}

// FormatClock renders hour:minute as HH:MM.
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
