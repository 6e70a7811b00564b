package calendar

import "errors"

var (
	ErrInvalidMonth      = errors.New("month must be formatted as YYYY-MM")
	ErrInvalidDate       = errors.New("invalid appointment date")
	ErrPastDate          = errors.New("appointment date is in the past")
	ErrEventNotFound     = errors.New("calendar event not found")
	ErrEventNotRemovable = errors.New("only appointments can be removed")
)
