package usecase

import (
	"context"
	"testing"
	"time"

	"bloodlink/internal/kvstore/kvtest"
	"bloodlink/internal/modules/chat"
	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
	userdatarepo "bloodlink/internal/modules/userdata/repo"
	userdatausecase "bloodlink/internal/modules/userdata/usecase"
	"bloodlink/pkg/lib/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChat(t *testing.T) (*ChatUseCase, *userdatausecase.UserDataUseCase, *dispatcher.Bus, *clock.Frozen) {
	t.Helper()
	kv, _ := kvtest.NewStore(t)
	log := kvtest.Logger()
	bus := dispatcher.New(log)
	clk := clock.NewFrozen(time.Date(2024, time.May, 2, 9, 0, 0, 0, time.UTC))
	store := userdatausecase.NewUserDataUseCase(userdatarepo.NewRepo(kv, log), bus, nil, log)
	return NewChatUseCase(store, bus, clk, log), store, bus, clk
}

func TestContacts(t *testing.T) {
	uc, _, _, _ := newChat(t)
	ctx := context.Background()

	c, err := uc.AddContact(ctx, "u1", chat.AddContactRequest{ID: "center", Name: "Banc de Sang"})
	require.NoError(t, err)
	assert.Equal(t, "center", c.ID)

	_, err = uc.AddContact(ctx, "u1", chat.AddContactRequest{ID: "center", Name: "Again"})
	assert.ErrorIs(t, err, chat.ErrContactExists)

	other, err := uc.AddContact(ctx, "u1", chat.AddContactRequest{Name: "Infermera"})
	require.NoError(t, err)
	assert.NotEmpty(t, other.ID)

	list, err := uc.ListContacts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, uc.RemoveContact(ctx, "u1", "center"))
	assert.ErrorIs(t, uc.RemoveContact(ctx, "u1", "center"), chat.ErrContactNotFound)

	list, err = uc.ListContacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)
}

func TestSendMessagePublishes(t *testing.T) {
	uc, _, bus, _ := newChat(t)
	ctx := context.Background()

	var got []chat.MessageEvent
	bus.Subscribe(dispatcher.EventChatMessage, func(_ context.Context, e dispatcher.Event) {
		assert.Equal(t, "u1", e.UserID)
		got = append(got, e.Payload.(chat.MessageEvent))
	})

	_, err := uc.SendMessage(ctx, "u1", "nobody", "hola", "")
	assert.ErrorIs(t, err, chat.ErrContactNotFound)

	_, err = uc.AddContact(ctx, "u1", chat.AddContactRequest{ID: "center", Name: "Banc de Sang"})
	require.NoError(t, err)

	_, err = uc.SendMessage(ctx, "u1", "center", "   ", "")
	assert.ErrorIs(t, err, chat.ErrInvalidMessageData)

	msg, err := uc.SendMessage(ctx, "u1", "center", " hola ", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "hola", msg.Text)
	assert.Equal(t, userdata.SenderUser, msg.From)

	require.Len(t, got, 1)
	assert.Equal(t, "center", got[0].ContactID)
	assert.Equal(t, "c-1", got[0].ClientMessageID)
	assert.Equal(t, msg.ID, got[0].Message.ID)
}

func TestConversationOrderAndRead(t *testing.T) {
	uc, store, _, clk := newChat(t)
	ctx := context.Background()

	_, err := uc.AddContact(ctx, "u1", chat.AddContactRequest{ID: "center", Name: "Banc de Sang"})
	require.NoError(t, err)

	base := clk.Now()
	_, err = store.Update(ctx, "u1", func(rec *userdata.UserRecord) error {
		rec.Chats.Conversations["center"] = append(rec.Chats.Conversations["center"],
			userdata.Message{ID: "m2", From: userdata.SenderContact, Text: "segon", Timestamp: base.Add(2 * time.Minute)},
			userdata.Message{ID: "m1", From: userdata.SenderContact, Text: "primer", Timestamp: base.Add(time.Minute)},
		)
		return nil
	})
	require.NoError(t, err)

	list, err := uc.ListContacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Unread)

	msgs, err := uc.GetConversation(ctx, "u1", "center")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)

	changed, err := uc.MarkConversationRead(ctx, "u1", "center")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	changed, err = uc.MarkConversationRead(ctx, "u1", "center")
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	list, err = uc.ListContacts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, list[0].Unread)
}
