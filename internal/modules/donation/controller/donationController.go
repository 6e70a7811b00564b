package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"bloodlink/internal/modules/donation"
	resp "bloodlink/pkg/lib/response"
	jwtmw "bloodlink/pkg/middleware/jwt"

	"github.com/go-playground/validator/v10"
)

type DonationController struct {
	log      *slog.Logger
	usecase  donation.UseCase
	validate *validator.Validate
}

func NewDonationController(log *slog.Logger, uc donation.UseCase) donation.Controller {
	return &DonationController{
		log:      log,
		usecase:  uc,
		validate: validator.New(),
	}
}

func (c *DonationController) List(w http.ResponseWriter, r *http.Request) {
	op := "DonationController.List"
	log := c.log.With(slog.String("op", op))
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		log.Error("cannot get userID from context")
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	section, err := c.usecase.List(r.Context(), userID)
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, section)
}

func (c *DonationController) Record(w http.ResponseWriter, r *http.Request) {
	op := "DonationController.Record"
	log := c.log.With(slog.String("op", op))
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		log.Error("cannot get userID from context")
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req donation.RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := c.validate.Struct(req); err != nil {
		resp.SendValidationError(w, r, err)
		return
	}

	acc, err := c.usecase.RecordDonation(r.Context(), userID, req.ToDonation())
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusCreated, acc)
}

func (c *DonationController) RedeemCode(w http.ResponseWriter, r *http.Request) {
	op := "DonationController.RedeemCode"
	log := c.log.With(slog.String("op", op))
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		log.Error("cannot get userID from context")
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req donation.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := c.validate.Struct(req); err != nil {
		resp.SendValidationError(w, r, err)
		return
	}

	acc, err := c.usecase.RedeemCode(r.Context(), userID, req.Code, req.ToDonation())
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusCreated, acc)
}

func (c *DonationController) Eligibility(w http.ResponseWriter, r *http.Request) {
	op := "DonationController.Eligibility"
	log := c.log.With(slog.String("op", op))
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		log.Error("cannot get userID from context")
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := c.usecase.Eligibility(r.Context(), userID)
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, res)
}

func (c *DonationController) sendError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var elig *donation.EligibilityError
	switch {
	case errors.As(err, &elig):
		resp.SendErrorWithData(w, r, http.StatusConflict, donation.ErrEligibilityViolation.Error(), elig)
	case errors.Is(err, donation.ErrCodeAlreadyUsed):
		resp.SendError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, donation.ErrInvalidDonation), errors.Is(err, donation.ErrInvalidCode):
		resp.SendError(w, r, http.StatusBadRequest, err.Error())
	default:
		log.Error("donation request failed", "error", err)
		resp.SendError(w, r, http.StatusInternalServerError, "internal error")
	}
}
