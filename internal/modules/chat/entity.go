package chat

import (
	"context"
	"encoding/json"
	"net/http"

	"bloodlink/internal/modules/userdata"
)

// --- HTTP DTOs ---

type AddContactRequest struct {
	ID     string `json:"id,omitempty" validate:"omitempty,max=64"`
	Name   string `json:"name" validate:"required,min=1,max=100"`
	Role   string `json:"role,omitempty" validate:"omitempty,max=100"`
	Avatar string `json:"avatar,omitempty" validate:"omitempty,max=2048"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// ContactSummary is a contact with the state of its conversation.
type ContactSummary struct {
	userdata.Contact
	Unread      int               `json:"unread"`
	LastMessage *userdata.Message `json:"lastMessage,omitempty"`
}

// MessageEvent is the payload of CHAT_MESSAGE events.
type MessageEvent struct {
	ContactID string           `json:"contactId"`
	Message   userdata.Message `json:"message"`
	// ClientMessageID echoes the id a websocket client attached to SEND_MESSAGE.
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// --- WebSocket frames ---

const (
	// Client to server.
	FrameMarkAsRead  = "MARK_AS_READ"
	FrameSendMessage = "SEND_MESSAGE"

	// Server to client. Event frames reuse the dispatcher event type names.
	FrameUserDataUpdated = "USER_DATA_UPDATED"
	FrameNewNotification = "NEW_NOTIFICATION"
	FrameChatMessage     = "CHAT_MESSAGE"
	FrameError           = "ERROR"
)

type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarkAsReadPayload marks one notification read, or a whole conversation when ContactID is set.
type MarkAsReadPayload struct {
	NotificationID *int   `json:"notificationId,omitempty" validate:"required_without=ContactID"`
	ContactID      string `json:"contactId,omitempty" validate:"required_without=NotificationID"`
}

type SendMessagePayload struct {
	ContactID       string `json:"contactId" validate:"required"`
	Text            string `json:"text" validate:"required,min=1,max=2000"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

type ErrorPayload struct {
	Message         string `json:"message"`
	OriginalType    string `json:"originalType,omitempty"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// --- Interfaces ---

type Controller interface {
	ListContacts(w http.ResponseWriter, r *http.Request)
	AddContact(w http.ResponseWriter, r *http.Request)
	RemoveContact(w http.ResponseWriter, r *http.Request)
	GetConversation(w http.ResponseWriter, r *http.Request)
	SendMessage(w http.ResponseWriter, r *http.Request)
	MarkConversationRead(w http.ResponseWriter, r *http.Request)
	ServeWs(w http.ResponseWriter, r *http.Request)
}

type UseCase interface {
	ListContacts(ctx context.Context, userID string) ([]ContactSummary, error)
	AddContact(ctx context.Context, userID string, req AddContactRequest) (*userdata.Contact, error)
	RemoveContact(ctx context.Context, userID string, contactID string) error
	SendMessage(ctx context.Context, userID string, contactID string, text string, clientMessageID string) (*userdata.Message, error)
	GetConversation(ctx context.Context, userID string, contactID string) ([]userdata.Message, error)
	// MarkConversationRead returns how many messages changed state.
	MarkConversationRead(ctx context.Context, userID string, contactID string) (int, error)
}

// NotificationReader is the part of the notification service the websocket hub drives.
type NotificationReader interface {
	MarkAsRead(ctx context.Context, userID string, id int) error
}
