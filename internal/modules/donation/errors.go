package donation

import (
	"errors"
	"fmt"
)

var (
	ErrEligibilityViolation = errors.New("donation cooldown has not elapsed")
	ErrInvalidDonation      = errors.New("invalid donation")
	ErrInvalidCode          = errors.New("invalid donation code")
	ErrCodeAlreadyUsed      = errors.New("donation code already used")
)

const ReasonCooldown = "cooldown"

// EligibilityError carries the dates the client shows as "come back on ...".
type EligibilityError struct {
	Reason            string `json:"reason"`
	LastDonationDate  string `json:"lastDonationDate"`
	NextAvailableDate string `json:"nextAvailableDate"`
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("%s: last donation %s, next available %s", ErrEligibilityViolation, e.LastDonationDate, e.NextAvailableDate)
}

func (e *EligibilityError) Unwrap() error {
	return ErrEligibilityViolation
}
