package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"bloodlink/internal/modules/calendar"
	"bloodlink/internal/modules/userdata"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/datecalc"

	"github.com/google/uuid"
)

const (
	availableTitle   = "Ja pots tornar a donar"
	appointmentTitle = "Cita de donació"
)

type CalendarUseCase struct {
	store    userdata.UseCase
	cooldown datecalc.Cooldown
	clock    clock.Clock
	log      *slog.Logger
}

func NewCalendarUseCase(store userdata.UseCase, cooldown datecalc.Cooldown, clk clock.Clock, log *slog.Logger) *CalendarUseCase {
	return &CalendarUseCase{
		store:    store,
		cooldown: cooldown,
		clock:    clk,
		log:      log,
	}
}

func (uc *CalendarUseCase) ApplyDonation(rec *userdata.UserRecord, d userdata.Donation, donatedAt, now time.Time) {
	date := uc.cooldown.Format(donatedAt)

	hasDonation := false
	events := make([]userdata.CalendarEvent, 0, len(rec.Calendar.Appointments)+2)
	for _, e := range rec.Calendar.Appointments {
		if e.Type == userdata.EventAvailable {
			continue
		}
		if e.Type == userdata.EventDonation && e.Date == date {
			hasDonation = true
		}
		events = append(events, e)
	}

	if !hasDonation {
		events = append(events, userdata.CalendarEvent{
			ID:           uuid.NewString(),
			Type:         userdata.EventDonation,
			Title:        donationTitle(d.Type),
			Date:         date,
			Center:       d.Center,
			DonationType: d.Type,
			Notes:        d.Observations,
		})
	}

	if next := uc.cooldown.NextAvailable(donatedAt); next.After(now) {
		events = append(events, userdata.CalendarEvent{
			ID:    uuid.NewString(),
			Type:  userdata.EventAvailable,
			Title: availableTitle,
			Date:  uc.cooldown.Format(next),
		})
	}

	rec.Calendar.Appointments = events
}

func donationTitle(donationType string) string {
	if donationType == "" {
		return "Donació"
	}
	return "Donació de " + strings.ToLower(donationType)
}

// ListEvents returns the events of userID ordered by date and time. month ("YYYY-MM") is optional.
func (uc *CalendarUseCase) ListEvents(ctx context.Context, userID string, month string) ([]userdata.CalendarEvent, error) {
	op := "CalendarUseCase.ListEvents"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	if month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			return nil, calendar.ErrInvalidMonth
		}
	}

	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		log.Error("failed to load record", "error", err)
		return nil, err
	}

	events := make([]userdata.CalendarEvent, 0, len(rec.Calendar.Appointments))
	for _, e := range rec.Calendar.Appointments {
		if month == "" || strings.HasPrefix(e.Date, month+"-") {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Time < events[j].Time
	})
	return events, nil
}

func (uc *CalendarUseCase) AddAppointment(ctx context.Context, userID string, req calendar.AppointmentRequest) (*userdata.CalendarEvent, error) {
	op := "CalendarUseCase.AddAppointment"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	day, err := datecalc.ParseDate(req.Date, uc.cooldown.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", calendar.ErrInvalidDate, err)
	}
	if day.Before(datecalc.StartOfDay(uc.clock.Now(), uc.cooldown.Location)) {
		return nil, calendar.ErrPastDate
	}

	title := req.Title
	if title == "" {
		title = appointmentTitle
	}
	event := userdata.CalendarEvent{
		ID:           uuid.NewString(),
		Type:         userdata.EventAppointment,
		Title:        title,
		Date:         req.Date,
		Time:         req.Time,
		Center:       req.Center,
		DonationType: req.DonationType,
		Notes:        req.Notes,
	}

	if _, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		rec.Calendar.Appointments = append(rec.Calendar.Appointments, event)
		return nil
	}); err != nil {
		log.Error("failed to save appointment", "error", err)
		return nil, err
	}
	log.Info("appointment added", slog.String("eventID", event.ID), slog.String("date", event.Date))
	return &event, nil
}

func (uc *CalendarUseCase) RemoveEvent(ctx context.Context, userID string, eventID string) error {
	op := "CalendarUseCase.RemoveEvent"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID), slog.String("eventID", eventID))

	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		for i, e := range rec.Calendar.Appointments {
			if e.ID != eventID {
				continue
			}
			if e.Type != userdata.EventAppointment {
				return calendar.ErrEventNotRemovable
			}
			rec.Calendar.Appointments = append(rec.Calendar.Appointments[:i], rec.Calendar.Appointments[i+1:]...)
			return nil
		}
		return calendar.ErrEventNotFound
	})
	if err != nil {
		log.Warn("event not removed", "error", err)
		return err
	}
	log.Info("event removed")
	return nil
}
