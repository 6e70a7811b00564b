package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"bloodlink/internal/modules/chat"
	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
	"bloodlink/pkg/lib/clock"
)

type ChatUseCase struct {
	store     userdata.UseCase
	publisher userdata.Publisher
	clock     clock.Clock
	log       *slog.Logger
}

func NewChatUseCase(store userdata.UseCase, publisher userdata.Publisher, clk clock.Clock, log *slog.Logger) *ChatUseCase {
	return &ChatUseCase{
		store:     store,
		publisher: publisher,
		clock:     clk,
		log:       log,
	}
}

func (uc *ChatUseCase) ListContacts(ctx context.Context, userID string) ([]chat.ContactSummary, error) {
	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]chat.ContactSummary, 0, len(rec.Chats.Contacts))
	for _, c := range rec.Chats.Contacts {
		s := chat.ContactSummary{Contact: c}
		msgs := rec.Chats.Conversations[c.ID]
		for i := range msgs {
			if msgs[i].From == userdata.SenderContact && !msgs[i].Read {
				s.Unread++
			}
		}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			s.LastMessage = &last
		}
		out = append(out, s)
	}
	return out, nil
}

func (uc *ChatUseCase) AddContact(ctx context.Context, userID string, req chat.AddContactRequest) (*userdata.Contact, error) {
	op := "ChatUseCase.AddContact"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	contact := userdata.Contact{
		ID:     strings.TrimSpace(req.ID),
		Name:   strings.TrimSpace(req.Name),
		Role:   strings.TrimSpace(req.Role),
		Avatar: req.Avatar,
	}
	if contact.Name == "" {
		return nil, chat.ErrInvalidMessageData
	}
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}

	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		if findContact(rec, contact.ID) >= 0 {
			return chat.ErrContactExists
		}
		rec.Chats.Contacts = append(rec.Chats.Contacts, contact)
		if _, ok := rec.Chats.Conversations[contact.ID]; !ok {
			rec.Chats.Conversations[contact.ID] = []userdata.Message{}
		}
		return nil
	})
	if err != nil {
		log.Warn("contact not added", "error", err)
		return nil, err
	}
	log.Info("contact added", slog.String("contactID", contact.ID))
	return &contact, nil
}

// RemoveContact drops the contact together with its conversation.
func (uc *ChatUseCase) RemoveContact(ctx context.Context, userID string, contactID string) error {
	op := "ChatUseCase.RemoveContact"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		i := findContact(rec, contactID)
		if i < 0 {
			return chat.ErrContactNotFound
		}
		rec.Chats.Contacts = append(rec.Chats.Contacts[:i], rec.Chats.Contacts[i+1:]...)
		delete(rec.Chats.Conversations, contactID)
		return nil
	})
	if err != nil {
		log.Warn("contact not removed", "error", err)
		return err
	}
	log.Info("contact removed", slog.String("contactID", contactID))
	return nil
}

func (uc *ChatUseCase) SendMessage(ctx context.Context, userID string, contactID string, text string, clientMessageID string) (*userdata.Message, error) {
	op := "ChatUseCase.SendMessage"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID), slog.String("contactID", contactID))

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, chat.ErrInvalidMessageData
	}

	msg := userdata.Message{
		ID:        uuid.NewString(),
		From:      userdata.SenderUser,
		Text:      text,
		Timestamp: uc.clock.Now(),
		Read:      true,
	}

	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		if findContact(rec, contactID) < 0 {
			return chat.ErrContactNotFound
		}
		rec.Chats.Conversations[contactID] = append(rec.Chats.Conversations[contactID], msg)
		return nil
	})
	if err != nil {
		log.Warn("message not sent", "error", err)
		return nil, err
	}

	log.Info("message sent", slog.String("messageID", msg.ID))
	if uc.publisher != nil {
		uc.publisher.Dispatch(ctx, dispatcher.Event{
			Type:   dispatcher.EventChatMessage,
			UserID: userID,
			Payload: chat.MessageEvent{
				ContactID:       contactID,
				Message:         msg,
				ClientMessageID: clientMessageID,
			},
		})
	}
	return &msg, nil
}

// GetConversation returns the messages exchanged with contactID, oldest first.
func (uc *ChatUseCase) GetConversation(ctx context.Context, userID string, contactID string) ([]userdata.Message, error) {
	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	if findContact(rec, contactID) < 0 {
		return nil, chat.ErrContactNotFound
	}

	msgs := append([]userdata.Message{}, rec.Chats.Conversations[contactID]...)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

func (uc *ChatUseCase) MarkConversationRead(ctx context.Context, userID string, contactID string) (int, error) {
	op := "ChatUseCase.MarkConversationRead"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID), slog.String("contactID", contactID))

	changed := 0
	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		if findContact(rec, contactID) < 0 {
			return chat.ErrContactNotFound
		}
		msgs := rec.Chats.Conversations[contactID]
		for i := range msgs {
			if !msgs[i].Read {
				msgs[i].Read = true
				changed++
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("conversation not marked read", "error", err)
		return 0, err
	}
	log.Debug("conversation marked read", slog.Int("changed", changed))
	return changed, nil
}

func findContact(rec *userdata.UserRecord, contactID string) int {
	for i, c := range rec.Chats.Contacts {
		if c.ID == contactID {
			return i
		}
	}
	return -1
}
