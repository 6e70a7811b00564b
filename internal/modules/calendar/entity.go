package calendar

import (
	"context"
	"net/http"
	"time"

	"bloodlink/internal/modules/userdata"
)

// AppointmentRequest is the body of POST /calendar/appointments.
type AppointmentRequest struct {
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	Title        string `json:"title,omitempty" validate:"omitempty,max=120"`
	Center       string `json:"center" validate:"required,max=120"`
	DonationType string `json:"donationType,omitempty" validate:"omitempty,oneof=Sang Plasma Plaquetes"`
	Notes        string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type UseCase interface {
	// ApplyDonation brings the calendar of rec in line with an accepted donation. It does not persist.
	ApplyDonation(rec *userdata.UserRecord, d userdata.Donation, donatedAt, now time.Time)
	ListEvents(ctx context.Context, userID string, month string) ([]userdata.CalendarEvent, error)
	AddAppointment(ctx context.Context, userID string, req AppointmentRequest) (*userdata.CalendarEvent, error)
	RemoveEvent(ctx context.Context, userID string, eventID string) error
}

type Controller interface {
	ListEvents(w http.ResponseWriter, r *http.Request)
	AddAppointment(w http.ResponseWriter, r *http.Request)
	RemoveEvent(w http.ResponseWriter, r *http.Request)
}
