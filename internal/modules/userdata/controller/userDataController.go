package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bloodlink/internal/kvstore"
	"bloodlink/internal/modules/userdata"
	resp "bloodlink/pkg/lib/response"
	jwtmw "bloodlink/pkg/middleware/jwt"

	"github.com/go-chi/chi/v5"
)

type UserDataController struct {
	log     *slog.Logger
	usecase userdata.UseCase
}

func NewUserDataController(log *slog.Logger, uc userdata.UseCase) userdata.Controller {
	return &UserDataController{
		log:     log,
		usecase: uc,
	}
}

func (c *UserDataController) GetRecord(w http.ResponseWriter, r *http.Request) {
	op := "UserDataController.GetRecord"
	log := c.log.With(slog.String("op", op))

	rec, err := c.usecase.GetCurrentUserRecord(r.Context())
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, rec)
}

func (c *UserDataController) SaveRecord(w http.ResponseWriter, r *http.Request) {
	op := "UserDataController.SaveRecord"
	log := c.log.With(slog.String("op", op))

	var rec userdata.UserRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		log.Warn("failed to decode record", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.usecase.SaveCurrentUserRecord(r.Context(), &rec); err != nil {
		c.sendError(w, r, log, err)
		return
	}
	log.Info("record replaced")
	resp.SendSuccess(w, r, http.StatusOK, &rec)
}

func (c *UserDataController) UpdateSection(w http.ResponseWriter, r *http.Request) {
	op := "UserDataController.UpdateSection"
	log := c.log.With(slog.String("op", op))

	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		c.sendError(w, r, log, userdata.ErrNotAuthenticated)
		return
	}
	section := chi.URLParam(r, "section")
	log = log.With(slog.String("userID", userID), slog.String("section", section))

	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		log.Warn("failed to decode partial section", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.usecase.UpdateSection(r.Context(), userID, section, partial); err != nil {
		c.sendError(w, r, log, err)
		return
	}

	rec, err := c.usecase.GetRecord(r.Context(), userID)
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, rec)
}

func (c *UserDataController) sendError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, userdata.ErrNotAuthenticated):
		resp.SendError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, userdata.ErrUnknownSection), errors.Is(err, userdata.ErrInvalidSection), errors.Is(err, userdata.ErrNilRecord),
		errors.Is(err, userdata.ErrBadDonationDate):
		resp.SendError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, kvstore.ErrUnavailable):
		log.Error("storage unavailable", "error", err)
		resp.SendError(w, r, http.StatusInternalServerError, "storage unavailable")
	default:
		log.Error("user data request failed", "error", err)
		resp.SendError(w, r, http.StatusInternalServerError, "internal error")
	}
}
