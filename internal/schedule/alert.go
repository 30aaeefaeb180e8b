package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Alert profile names.
const (
	AlertStartOnly     = "start_only"
	AlertFiveMinutes   = "five_minutes"
	AlertTenFive       = "ten_five"
	AlertFifteenFive   = "fifteen_five"
	AlertThirtyTenFive = "thirty_ten_five"
	AlertHourAhead     = "hour_ahead"
	AlertCustom        = "custom"

	DefaultAlertProfile = AlertTenFive
)

var presetOffsets = map[string][]int{
	AlertStartOnly:     {0},
	AlertFiveMinutes:   {5, 0},
	AlertTenFive:       {10, 5, 0},
	AlertFifteenFive:   {15, 5, 0},
	AlertThirtyTenFive: {30, 10, 5, 0},
	AlertHourAhead:     {60, 30, 10, 0},
}

// PresetNames lists the fixed profiles in ascending lead time.
func PresetNames() []string {
	return []string{AlertStartOnly, AlertFiveMinutes, AlertTenFive, AlertFifteenFive, AlertThirtyTenFive, AlertHourAhead}
}

// AlertProfile is the set of lead times (minutes before start) at which a
// reminder fires. Offsets is only set for custom profiles; presets expand
// through LeadTimes.
type AlertProfile struct {
	Name    string
	Offsets []int
}

// ParseAlertProfile builds a profile from a name and its offsets. Only
// "custom" takes offsets. An empty name selects DefaultAlertProfile.
func ParseAlertProfile(name string, offsets []int) (AlertProfile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultAlertProfile
	}
	p := AlertProfile{Name: name}
	if len(offsets) > 0 {
		p.Offsets = append([]int(nil), offsets...)
	}
	if err := p.Validate(); err != nil {
		return AlertProfile{}, err
	}
	return p, nil
}

// CustomAlert is ParseAlertProfile("custom", offsets).
func CustomAlert(offsets ...int) (AlertProfile, error) {
	return ParseAlertProfile(AlertCustom, offsets)
}

// ParseOffsets parses a comma separated list like "60,20,5".
func ParseOffsets(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, invalid("alert.offsets", s, "comma separated minutes", fmt.Sprintf("%q is not a number", part))
		}
		out = append(out, n)
	}
	return out, nil
}

// Validate checks the profile name and, for custom profiles, that offsets
// are non-negative and strictly descending.
func (p AlertProfile) Validate() error {
	if p.Name == AlertCustom {
		if len(p.Offsets) == 0 {
			return invalid("alert.offsets", "", "at least one offset", "custom profile has no offsets")
		}
		for i, off := range p.Offsets {
			if off < 0 {
				return invalid("alert.offsets", formatOffsets(p.Offsets), "non-negative minutes", fmt.Sprintf("offset %d is negative", off))
			}
			if i > 0 && off >= p.Offsets[i-1] {
				return invalid("alert.offsets", formatOffsets(p.Offsets), "strictly descending minutes", fmt.Sprintf("%d does not come after %d", off, p.Offsets[i-1]))
			}
		}
		return nil
	}
	if _, ok := presetOffsets[p.Name]; !ok {
		return invalid("alert.profile", p.Name, strings.Join(append(PresetNames(), AlertCustom), "|"), "unknown profile")
	}
	if len(p.Offsets) > 0 {
		return invalid("alert.offsets", formatOffsets(p.Offsets), "no offsets", "offsets are only allowed for custom profiles")
	}
	return nil
}

// LeadTimes expands the profile into minutes-before-start, largest first.
func (p AlertProfile) LeadTimes() []int {
	if p.Name == AlertCustom {
		return append([]int(nil), p.Offsets...)
	}
	if offs, ok := presetOffsets[p.Name]; ok {
		return append([]int(nil), offs...)
	}
	return []int{0}
}

func (p AlertProfile) IsZero() bool { return p.Name == "" && len(p.Offsets) == 0 }

func (p AlertProfile) String() string {
	if p.Name == AlertCustom {
		return AlertCustom + "[" + formatOffsets(p.Offsets) + "]"
	}
	return p.Name
}

func formatOffsets(offs []int) string {
	parts := make([]string, len(offs))
	for i, o := range offs {
		parts[i] = strconv.Itoa(o)
	}
	return strings.Join(parts, ",")
}
