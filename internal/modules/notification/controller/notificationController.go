package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bloodlink/internal/modules/notification"
	resp "bloodlink/pkg/lib/response"
	jwtmw "bloodlink/pkg/middleware/jwt"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type NotificationController struct {
	log      *slog.Logger
	usecase  notification.UseCase
	validate *validator.Validate
}

func NewNotificationController(log *slog.Logger, uc notification.UseCase) notification.Controller {
	return &NotificationController{
		log:      log,
		usecase:  uc,
		validate: validator.New(),
	}
}

// userAndID reads the session user and, when withID is set, the {id} URL parameter.
func (c *NotificationController) userAndID(w http.ResponseWriter, r *http.Request, log *slog.Logger, withID bool) (string, int, bool) {
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		log.Error("cannot get userID from context")
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return "", 0, false
	}
	if !withID {
		return userID, 0, true
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		resp.SendError(w, r, http.StatusBadRequest, notification.ErrInvalidID.Error())
		return "", 0, false
	}
	return userID, id, true
}

func (c *NotificationController) GetNotifications(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.GetNotifications"))
	userID, _, ok := c.userAndID(w, r, log, false)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			resp.SendError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := c.usecase.GetNotifications(r.Context(), userID, limit)
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, list)
}

func (c *NotificationController) UnreadCount(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.UnreadCount"))
	userID, _, ok := c.userAndID(w, r, log, false)
	if !ok {
		return
	}

	n, err := c.usecase.UnreadCount(r.Context(), userID)
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, notification.UnreadCountResponse{Unread: n})
}

func (c *NotificationController) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.MarkAsRead"))
	userID, id, ok := c.userAndID(w, r, log, true)
	if !ok {
		return
	}

	if err := c.usecase.MarkAsRead(r.Context(), userID, id); err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendOK(w, r, http.StatusOK)
}

func (c *NotificationController) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.MarkAllAsRead"))
	userID, _, ok := c.userAndID(w, r, log, false)
	if !ok {
		return
	}

	if err := c.usecase.MarkAllAsRead(r.Context(), userID); err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendOK(w, r, http.StatusOK)
}

func (c *NotificationController) Remove(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.Remove"))
	userID, id, ok := c.userAndID(w, r, log, true)
	if !ok {
		return
	}

	if err := c.usecase.Remove(r.Context(), userID, id); err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendOK(w, r, http.StatusOK)
}

func (c *NotificationController) Trash(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.Trash"))
	userID, _, ok := c.userAndID(w, r, log, false)
	if !ok {
		return
	}

	list, err := c.usecase.Trash(r.Context(), userID)
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, list)
}

func (c *NotificationController) Restore(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.Restore"))
	userID, id, ok := c.userAndID(w, r, log, true)
	if !ok {
		return
	}

	if err := c.usecase.Restore(r.Context(), userID, id); err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendOK(w, r, http.StatusOK)
}

func (c *NotificationController) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.EmptyTrash"))
	userID, _, ok := c.userAndID(w, r, log, false)
	if !ok {
		return
	}

	if err := c.usecase.EmptyTrash(r.Context(), userID); err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendOK(w, r, http.StatusOK)
}

func (c *NotificationController) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	log := c.log.With(slog.String("op", "NotificationController.UpdatePreferences"))
	userID, _, ok := c.userAndID(w, r, log, false)
	if !ok {
		return
	}

	var req notification.PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.SendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := c.validate.Struct(req); err != nil {
		resp.SendValidationError(w, r, err)
		return
	}

	prefs, err := c.usecase.UpdatePreferences(r.Context(), userID, req.Preferences)
	if err != nil {
		c.sendError(w, r, log, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, prefs)
}

func (c *NotificationController) sendError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, notification.ErrNotificationNotFound):
		resp.SendError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, notification.ErrUnknownCategory):
		resp.SendError(w, r, http.StatusBadRequest, err.Error())
	default:
		log.Error("notification request failed", "error", err)
		resp.SendError(w, r, http.StatusInternalServerError, "internal error")
	}
}
