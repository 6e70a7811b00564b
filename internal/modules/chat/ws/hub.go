package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"bloodlink/internal/modules/chat"
	"bloodlink/internal/modules/notification/dispatcher"
)

// Subscriber is the part of the event bus the hub listens on.
type Subscriber interface {
	Subscribe(eventType dispatcher.EventType, handler dispatcher.Handler) func()
}

// Hub keeps the open sockets of every user and pushes bus events to them.
type Hub struct {
	users      map[string]map[*Client]bool
	mu         sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	Log        *slog.Logger

	Chat          chat.UseCase
	Notifications chat.NotificationReader
	validate      *validator.Validate
}

func NewHub(log *slog.Logger, uc chat.UseCase, notifications chat.NotificationReader) *Hub {
	return &Hub{
		users:         make(map[string]map[*Client]bool),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		done:          make(chan struct{}),
		Log:           log.With(slog.String("component", "ws_hub")),
		Chat:          uc,
		Notifications: notifications,
		validate:      validator.New(),
	}
}

// Subscribe forwards record, notification and chat events to the sockets of the affected user.
// The returned function removes every subscription.
func (h *Hub) Subscribe(bus Subscriber) func() {
	forward := func(frame string) dispatcher.Handler {
		return func(_ context.Context, e dispatcher.Event) {
			h.SendToUser(e.UserID, frame, e.Payload)
		}
	}
	unsubs := []func(){
		bus.Subscribe(dispatcher.EventUserDataUpdated, forward(chat.FrameUserDataUpdated)),
		bus.Subscribe(dispatcher.EventNewNotification, forward(chat.FrameNewNotification)),
		bus.Subscribe(dispatcher.EventChatMessage, forward(chat.FrameChatMessage)),
		bus.Subscribe(dispatcher.EventUserDataDeleted, func(_ context.Context, e dispatcher.Event) {
			h.DisconnectUser(e.UserID)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Run serves Register and Unregister until ctx is done, then closes every socket.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.users[client.UserID]; !ok {
				h.users[client.UserID] = make(map[*Client]bool)
			}
			h.users[client.UserID][client] = true
			h.mu.Unlock()
			client.Log.Info("client registered")

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			client.Log.Info("client unregistered")

		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.users {
				for c := range clients {
					h.remove(c)
				}
			}
			h.mu.Unlock()
			h.Log.Info("hub stopped")
			return
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.users[client.UserID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	close(client.Send)
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.users, client.UserID)
	}
}

// unregister does not block once the hub has stopped.
func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) DisconnectUser(userID string) {
	h.mu.Lock()
	for c := range h.users[userID] {
		h.remove(c)
	}
	h.mu.Unlock()
}

// Connected reports how many sockets userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) ProcessClientMessage(client *Client, wsMsg chat.WebSocketMessage) {
	ctx := context.Background()
	log := client.Log.With("op", "Hub.ProcessClientMessage", "msgType", wsMsg.Type)

	switch wsMsg.Type {
	case chat.FrameSendMessage:
		var payload chat.SendMessagePayload
		if err := json.Unmarshal(wsMsg.Payload, &payload); err != nil || h.validate.Struct(payload) != nil {
			h.sendErrorToClient(client, "invalid payload", wsMsg.Type, payload.ClientMessageID)
			return
		}
		msg, err := h.Chat.SendMessage(ctx, client.UserID, payload.ContactID, payload.Text, payload.ClientMessageID)
		if err != nil {
			h.sendErrorToClient(client, clientError(err), wsMsg.Type, payload.ClientMessageID)
			return
		}
		log.Debug("message sent over websocket", "messageID", msg.ID)

	case chat.FrameMarkAsRead:
		var payload chat.MarkAsReadPayload
		if err := json.Unmarshal(wsMsg.Payload, &payload); err != nil || h.validate.Struct(payload) != nil {
			h.sendErrorToClient(client, "invalid payload", wsMsg.Type, "")
			return
		}
		var err error
		if payload.NotificationID != nil {
			err = h.Notifications.MarkAsRead(ctx, client.UserID, *payload.NotificationID)
		} else {
			_, err = h.Chat.MarkConversationRead(ctx, client.UserID, payload.ContactID)
		}
		if err != nil {
			h.sendErrorToClient(client, clientError(err), wsMsg.Type, "")
		}

	default:
		h.sendErrorToClient(client, chat.ErrUnknownFrame.Error(), wsMsg.Type, "")
	}
}

// SendToUser delivers one frame to every socket of userID.
func (h *Hub) SendToUser(userID string, frameType string, payload interface{}) {
	msg := chat.WebSocketMessage{
		Type:    frameType,
		Payload: MarshalPayloadToRawMessage(payload, h.Log, frameType),
	}
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		h.Log.Error("failed to marshal frame", "error", err, "userID", userID, "msg_type", frameType)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		h.enqueue(c, messageBytes)
	}
}

func (h *Hub) sendToClient(client *Client, message chat.WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		client.Log.Error("failed to marshal message for client", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.users[client.UserID][client] {
		h.enqueue(client, messageBytes)
	}
}

// enqueue must be called with mu held for reading. A client that cannot keep up is dropped.
func (h *Hub) enqueue(client *Client, messageBytes []byte) {
	select {
	case client.Send <- messageBytes:
	default:
		h.Log.Warn("client send buffer full, disconnecting", "userID", client.UserID)
		go h.unregister(client)
	}
}

func (h *Hub) sendErrorToClient(client *Client, errorText, originalType, clientMessageID string) {
	h.sendToClient(client, chat.WebSocketMessage{
		Type: chat.FrameError,
		Payload: MarshalPayloadToRawMessage(chat.ErrorPayload{
			Message:         errorText,
			OriginalType:    originalType,
			ClientMessageID: clientMessageID,
		}, h.Log, "ErrorPayload"),
	})
}

func clientError(err error) string {
	switch {
	case errors.Is(err, chat.ErrContactNotFound), errors.Is(err, chat.ErrInvalidMessageData):
		return err.Error()
	default:
		return "internal error"
	}
}
