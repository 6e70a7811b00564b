package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"bloodlink/internal/modules/user/profile"
	"bloodlink/internal/modules/userdata"
	resp "bloodlink/pkg/lib/response"
	jwtmw "bloodlink/pkg/middleware/jwt"
)

type ProfileController struct {
	log      *slog.Logger
	usecase  profile.UseCase
	validate *validator.Validate
}

func NewProfileController(log *slog.Logger, uc profile.UseCase) profile.Controller {
	return &ProfileController{
		log:      log,
		usecase:  uc,
		validate: validator.New(),
	}
}

func (c *ProfileController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	op := "ProfileController.UpdateProfile"
	log := c.log.With(slog.String("op", op))

	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req profile.UpdateProfileRequest
	if !c.decode(w, r, log, &req) {
		return
	}

	p, err := c.usecase.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, p)
}

func (c *ProfileController) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	op := "ProfileController.UpdatePreferences"
	log := c.log.With(slog.String("op", op))

	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req profile.UpdatePreferencesRequest
	if !c.decode(w, r, log, &req) {
		return
	}

	p, err := c.usecase.UpdatePreferences(r.Context(), userID, &req)
	if err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, p)
}

func (c *ProfileController) RegisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	op := "ProfileController.RegisterDeviceToken"
	log := c.log.With(slog.String("op", op))

	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req profile.RegisterDeviceTokenRequest
	if !c.decode(w, r, log, &req) {
		return
	}

	if err := c.usecase.RegisterDeviceToken(r.Context(), userID, req.DeviceToken); err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendOK(w, r, http.StatusCreated)
}

func (c *ProfileController) UnregisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	op := "ProfileController.UnregisterDeviceToken"
	log := c.log.With(slog.String("op", op))

	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req profile.UnregisterDeviceTokenRequest
	if !c.decode(w, r, log, &req) {
		return
	}

	if err := c.usecase.UnregisterDeviceToken(r.Context(), userID, req.DeviceToken); err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendOK(w, r, http.StatusOK)
}

func (c *ProfileController) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst interface{}) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Warn("failed to decode request body", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := c.validate.Struct(dst); err != nil {
		resp.SendValidationError(w, r, err)
		return false
	}
	return true
}

func (c *ProfileController) sendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, userdata.ErrInvalidSection):
		resp.SendError(w, r, http.StatusBadRequest, err.Error())
	default:
		c.log.Error("profile request failed", "error", err)
		resp.SendError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
