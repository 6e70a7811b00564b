package pushsender

import (
	"context"
)

// PushMessage is one stored notification fanned out to every device of a user.
type PushMessage struct {
	NotificationID int
	Kind           string // notification type, one collapse group per kind
	Priority       string // low, medium or high
	Title          string
	Body           string
	Link           string // in-app path opened on tap
	Tokens         []string
}

type SendResult struct {
	SuccessCount int
	FailureCount int
	// StaleTokens were rejected as unregistered or malformed and can be forgotten.
	// Tokens that failed for other reasons are only counted.
	StaleTokens []string
}

type Sender interface {
	// Send returns an error only when the provider could not be reached at all.
	Send(ctx context.Context, msg PushMessage) (*SendResult, error)
	Ping(ctx context.Context) error
}
