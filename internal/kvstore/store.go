// Package kvstore is the persistent string storage every module writes its JSON blobs to.
// Keys are fixed names; backends add their own namespace.
package kvstore

import (
	"context"
	"errors"
)

// Fixed keys.
const (
	KeyUserData           = "userData"
	KeyCredentials        = "credentials"
	KeyDonationCodes      = "donationCodes"
	KeyAvailabilityChecks = "availabilityChecks"
)

var (
	ErrNotFound    = errors.New("kvstore: key not found")
	ErrUnavailable = errors.New("kvstore: storage unavailable")
)

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}
