package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bloodlink/internal/modules/calendar"
	resp "bloodlink/pkg/lib/response"
	jwtmw "bloodlink/pkg/middleware/jwt"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type CalendarController struct {
	log      *slog.Logger
	usecase  calendar.UseCase
	validate *validator.Validate
}

func NewCalendarController(log *slog.Logger, uc calendar.UseCase) calendar.Controller {
	return &CalendarController{
		log:      log,
		usecase:  uc,
		validate: validator.New(),
	}
}

func (c *CalendarController) ListEvents(w http.ResponseWriter, r *http.Request) {
	op := "CalendarController.ListEvents"
	log := c.log.With(slog.String("op", op))
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		log.Error("cannot get userID from context")
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	events, err := c.usecase.ListEvents(r.Context(), userID, r.URL.Query().Get("month"))
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, events)
}

func (c *CalendarController) AddAppointment(w http.ResponseWriter, r *http.Request) {
	op := "CalendarController.AddAppointment"
	log := c.log.With(slog.String("op", op))
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		log.Error("cannot get userID from context")
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req calendar.AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := c.validate.Struct(req); err != nil {
		resp.SendValidationError(w, r, err)
		return
	}

	event, err := c.usecase.AddAppointment(r.Context(), userID, req)
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusCreated, event)
}

func (c *CalendarController) RemoveEvent(w http.ResponseWriter, r *http.Request) {
	op := "CalendarController.RemoveEvent"
	log := c.log.With(slog.String("op", op))
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		log.Error("cannot get userID from context")
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := c.usecase.RemoveEvent(r.Context(), userID, chi.URLParam(r, "eventID")); err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendOK(w, r, http.StatusOK)
}

func (c *CalendarController) sendError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, calendar.ErrInvalidMonth), errors.Is(err, calendar.ErrInvalidDate), errors.Is(err, calendar.ErrPastDate):
		resp.SendError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, calendar.ErrEventNotFound):
		resp.SendError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, calendar.ErrEventNotRemovable):
		resp.SendError(w, r, http.StatusForbidden, err.Error())
	default:
		log.Error("calendar request failed", "error", err)
		resp.SendError(w, r, http.StatusInternalServerError, "internal error")
	}
}
