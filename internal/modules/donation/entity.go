package donation

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"bloodlink/internal/modules/userdata"
)

// CodePattern is the shape of a code handed out at the donation center.
var CodePattern = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)

// RecordRequest is the body of POST /donations.
type RecordRequest struct {
	Date         string     `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Center       string     `json:"center" validate:"required,max=120"`
	Type         string     `json:"type" validate:"required,oneof=Sang Plasma Plaquetes"`
	Volume       *int       `json:"volume,omitempty" validate:"omitempty,min=1,max=1000"`
	Observations string     `json:"observations,omitempty" validate:"omitempty,max=500"`
}

func (r RecordRequest) ToDonation() userdata.Donation {
	return userdata.Donation{
		Date:         r.Date,
		Timestamp:    r.Timestamp,
		Center:       r.Center,
		Type:         r.Type,
		Volume:       r.Volume,
		Observations: r.Observations,
	}
}

// RedeemRequest is the body of POST /donations/code.
type RedeemRequest struct {
	Code string `json:"code" validate:"required"`
	RecordRequest
}

// Acceptance is returned for an accepted donation.
type Acceptance struct {
	Donations         userdata.DonationsSection `json:"donations"`
	NextAvailableDate *string                   `json:"nextAvailableDate"`
}

// Eligibility tells whether the user may donate now.
type Eligibility struct {
	Eligible          bool    `json:"eligible"`
	LastDonationDate  *string `json:"lastDonationDate"`
	NextAvailableDate *string `json:"nextAvailableDate"`
}

// CodeUse is one entry of the redeemed-code ledger.
type CodeUse struct {
	UserID string    `json:"userId"`
	UsedAt time.Time `json:"usedAt"`
}

// --- Interfaces ---

// CalendarSync keeps the calendar coherent with the donation list.
type CalendarSync interface {
	ApplyDonation(rec *userdata.UserRecord, d userdata.Donation, donatedAt, now time.Time)
}

// Notifier derives notifications from an accepted donation. ApplyDonation runs inside the
// store update that accepts it. Announce publishes the result once the lock is released.
type Notifier interface {
	ApplyDonation(rec *userdata.UserRecord, d userdata.Donation, donatedAt, now time.Time) []userdata.Notification
	Announce(ctx context.Context, userID string, added []userdata.Notification)
}

// CodeLedger stores which codes were already used.
type CodeLedger interface {
	Load(ctx context.Context) (map[string]CodeUse, error)
	Save(ctx context.Context, ledger map[string]CodeUse) error
}

type UseCase interface {
	RecordDonation(ctx context.Context, userID string, d userdata.Donation) (*Acceptance, error)
	RedeemCode(ctx context.Context, userID string, code string, d userdata.Donation) (*Acceptance, error)
	Eligibility(ctx context.Context, userID string) (*Eligibility, error)
	List(ctx context.Context, userID string) (*userdata.DonationsSection, error)
}

type Controller interface {
	List(w http.ResponseWriter, r *http.Request)
	Record(w http.ResponseWriter, r *http.Request)
	Eligibility(w http.ResponseWriter, r *http.Request)
	RedeemCode(w http.ResponseWriter, r *http.Request)
}
