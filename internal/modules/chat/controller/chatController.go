package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"bloodlink/internal/modules/chat"
	"bloodlink/internal/modules/chat/ws"
	resp "bloodlink/pkg/lib/response"
	jwtmw "bloodlink/pkg/middleware/jwt"
)

type httpChatController struct {
	useCase  chat.UseCase
	log      *slog.Logger
	validate *validator.Validate
}

type wsChatController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

type controllerImpl struct {
	*httpChatController
	wsCtrl *wsChatController
}

func NewController(log *slog.Logger, uc chat.UseCase, hub *ws.Hub, allowedOrigins []string) chat.Controller {
	return &controllerImpl{
		httpChatController: &httpChatController{
			useCase:  uc,
			log:      log.With(slog.String("controller_sub_type", "http_chat")),
			validate: validator.New(),
		},
		wsCtrl: &wsChatController{
			hub:      hub,
			upgrader: ws.NewUpgrader(allowedOrigins),
			log:      log.With(slog.String("controller_sub_type", "ws_chat")),
		},
	}
}

func (c *controllerImpl) ServeWs(w http.ResponseWriter, r *http.Request) {
	c.wsCtrl.ServeWs(w, r)
}

func (wc *wsChatController) ServeWs(w http.ResponseWriter, r *http.Request) {
	op := "wsChatController.ServeWs"

	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		wc.log.Warn("unauthorized websocket request", slog.String("op", op))
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	log := wc.log.With(slog.String("op", op), slog.String("userID", userID))

	conn, err := wc.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Warn(chat.ErrWebSocketUpgradeFailed.Error(), "error", err)
		return
	}

	client := ws.NewClient(wc.hub, conn, userID, wc.log)
	wc.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (c *httpChatController) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID, ok := c.user(w, r)
	if !ok {
		return
	}
	contacts, err := c.useCase.ListContacts(r.Context(), userID)
	if err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, contacts)
}

func (c *httpChatController) AddContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := c.user(w, r)
	if !ok {
		return
	}

	var req chat.AddContactRequest
	if !c.decode(w, r, &req) {
		return
	}

	contact, err := c.useCase.AddContact(r.Context(), userID, req)
	if err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusCreated, contact)
}

func (c *httpChatController) RemoveContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := c.user(w, r)
	if !ok {
		return
	}
	if err := c.useCase.RemoveContact(r.Context(), userID, chi.URLParam(r, "contactID")); err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendOK(w, r, http.StatusOK)
}

func (c *httpChatController) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := c.user(w, r)
	if !ok {
		return
	}
	msgs, err := c.useCase.GetConversation(r.Context(), userID, chi.URLParam(r, "contactID"))
	if err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, msgs)
}

func (c *httpChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := c.user(w, r)
	if !ok {
		return
	}

	var req chat.SendMessageRequest
	if !c.decode(w, r, &req) {
		return
	}

	msg, err := c.useCase.SendMessage(r.Context(), userID, chi.URLParam(r, "contactID"), req.Text, "")
	if err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusCreated, msg)
}

func (c *httpChatController) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := c.user(w, r)
	if !ok {
		return
	}
	changed, err := c.useCase.MarkConversationRead(r.Context(), userID, chi.URLParam(r, "contactID"))
	if err != nil {
		c.sendError(w, r, err)
		return
	}
	resp.SendSuccess(w, r, http.StatusOK, map[string]int{"updated": changed})
}

func (c *httpChatController) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := jwtmw.UserIDFromContext(r.Context())
	if !ok {
		resp.SendError(w, r, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

func (c *httpChatController) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		c.log.Warn("failed to decode request body", "error", err)
		resp.SendError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := c.validate.Struct(dst); err != nil {
		resp.SendValidationError(w, r, err)
		return false
	}
	return true
}

func (c *httpChatController) sendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrContactNotFound):
		resp.SendError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrContactExists):
		resp.SendError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrInvalidMessageData):
		resp.SendError(w, r, http.StatusBadRequest, err.Error())
	default:
		c.log.Error("chat request failed", "error", err)
		resp.SendError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
