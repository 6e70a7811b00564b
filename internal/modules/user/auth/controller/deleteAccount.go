package controller

import (
	"errors"
	"log/slog"
	"net/http"

	gouser "bloodlink/internal/modules/user"
	"bloodlink/pkg/middleware/jwt"
	resp "bloodlink/pkg/lib/response"
)

// DeleteAccount removes the credentials and the whole record of the signed-in user.
func (c *AuthController) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "DeleteAccountHandler"))

	userID, ok := jwt.UserIDFromContext(r.Context())
	if !ok {
		resp.SendError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := c.uc.DeleteAccount(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, gouser.ErrUserNotFound):
			resp.SendError(w, r, http.StatusNotFound, err.Error())
		default:
			log.Error("failed to delete account", "error", err)
			resp.SendError(w, r, http.StatusInternalServerError, gouser.ErrInternal.Error())
		}
		return
	}

	c.clearRefreshCookie(w)
	resp.SendOK(w, r, http.StatusOK)
}
