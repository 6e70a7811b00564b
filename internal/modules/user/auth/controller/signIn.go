package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	u "bloodlink/internal/modules/user"
	resp "bloodlink/pkg/lib/response"
)

// SignIn
// @Summary User SignIn
// @Tags auth
// @Description Create access and refresh token and return them to the user
// @Accept json
// @Produce json
// @Param user body controller.UserSignInRequest true "User login details"
// @Success 200 {object} response.Response "User successfully signed in"
// @Failure 400 {object} response.Response "Invalid request payload or validation error"
// @Failure 401 {object} response.Response "Invalid password or email"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /auth/sign-in [post]
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "SignInHandler"))

	var req UserSignInRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}

	if err := c.validate.Struct(req); err != nil {
		resp.SendValidationError(w, r, err)
		return
	}

	tokens, err := c.uc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, u.ErrInvalidCredentials):
			resp.SendError(w, r, http.StatusUnauthorized, err.Error())
		default:
			log.Error("failed to sign in", "error", err)
			resp.SendError(w, r, http.StatusInternalServerError, u.ErrInternal.Error())
		}
		return
	}

	c.setRefreshCookie(w, tokens.RefreshToken)
	resp.SendSuccess(w, r, http.StatusOK, resp.TokensData{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		UserID:       tokens.UserID,
	})
}
