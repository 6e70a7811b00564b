package controller

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	gouser "bloodlink/internal/modules/user"
	resp "bloodlink/pkg/lib/response"
)

// RefreshToken
// @Summary      Refresh tokens
// @Tags         auth
// @Description  Issues a new token pair. The refresh token is read from the body, falling back to the refresh_token cookie.
// @Accept       json
// @Produce      json
// @Param        request body controller.RefreshTokenRequest false "Refresh token payload"
// @Success      200 {object} response.Response "Successfully refreshed tokens"
// @Failure      400 {object} response.Response "Invalid request payload"
// @Failure      401 {object} response.Response "Invalid, missing, or expired refresh token"
// @Failure      500 {object} response.Response "Internal server error"
// @Router       /auth/refresh-token [post]
func (c *AuthController) RefreshToken(w http.ResponseWriter, r *http.Request) {
	op := "AuthController.RefreshToken"
	log := c.log.With(slog.String("op", op))

	var req RefreshTokenRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("failed to decode request body", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "failed to decode request")
		return
	}

	token := req.RefreshToken
	if token == "" {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			token = cookie.Value
		}
	}

	tokens, err := c.uc.Refresh(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, gouser.ErrNoRefreshToken),
			errors.Is(err, gouser.ErrInvalidToken),
			errors.Is(err, gouser.ErrExpiredToken),
			errors.Is(err, gouser.ErrUserNotFound):
			log.Info("refresh rejected", "error", err)
			c.clearRefreshCookie(w)
			resp.SendError(w, r, http.StatusUnauthorized, err.Error())
		default:
			log.Error("failed to refresh tokens", "error", err)
			resp.SendError(w, r, http.StatusInternalServerError, gouser.ErrInternal.Error())
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
