package schedule

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBuilderFinalized = errors.New("schedule: builder already built")

// ValidationError reports malformed user input. It is always raised before
// any persistence call.
type ValidationError struct {
	Field    string
	Value    string
	Expected string
	Reason   string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid ")
	b.WriteString(e.Field)
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Expected != "" {
		b.WriteString(" (expected ")
		b.WriteString(e.Expected)
		b.WriteString(")")
	}
	return b.String()
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, value, expected, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Expected: expected, Reason: reason}
}
