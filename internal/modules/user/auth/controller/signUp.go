package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	u "bloodlink/internal/modules/user"
	resp "bloodlink/pkg/lib/response"
)

// SignUp
// @Summary User SignUp
// @Tags auth
// @Description Registers a new user and seeds an empty record with the given name and email.
// @Accept json
// @Produce json
// @Param user body controller.UserSignUpRequest true "User registration details"
// @Success 201 {object} response.Response "User successfully created"
// @Failure 400 {object} response.Response "Validation error or invalid request payload"
// @Failure 409 {object} response.Response "User with this email already exists"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /auth/sign-up [post]
func (c *AuthController) SignUp(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "SignUpHandler"))

	var req UserSignUpRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}

	if err := c.validate.Struct(req); err != nil {
		resp.SendValidationError(w, r, err)
		return
	}

	userID, err := c.uc.SignUp(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, u.ErrEmailExists):
			log.Info("email already exists")
			resp.SendError(w, r, http.StatusConflict, err.Error())
		default:
			log.Error("failed to sign up user", "error", err)
			resp.SendError(w, r, http.StatusInternalServerError, u.ErrInternal.Error())
		}
		return
	}

	resp.SendSuccess(w, r, http.StatusCreated, map[string]string{"user_id": userID})
}
