package notification

import "errors"

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUnknownCategory      = errors.New("unknown notification category")
	ErrInvalidID            = errors.New("invalid notification id")
)
