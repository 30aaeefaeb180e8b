package catalog

import "errors"

var (
	ErrUnknownEvent   = errors.New("catalog: unknown event type")
	ErrUnknownWeekday = errors.New("catalog: unknown weekday name")
	ErrInvalid        = errors.New("catalog: invalid definition")
)
