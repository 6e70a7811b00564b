package delivery

import (
	"context"
	"testing"

	"bloodlink/internal/kvstore/kvtest"
	"bloodlink/internal/modules/notification"
	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
	userdatarepo "bloodlink/internal/modules/userdata/repo"
	userdatausecase "bloodlink/internal/modules/userdata/usecase"
	"bloodlink/pkg/lib/emailsender"
	"bloodlink/pkg/lib/pushsender"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []pushsender.PushMessage
	reject []string
}

func (s *fakeSender) Send(_ context.Context, msg pushsender.PushMessage) (*pushsender.SendResult, error) {
	s.sent = append(s.sent, msg)
	return &pushsender.SendResult{
		SuccessCount: len(msg.Tokens) - len(s.reject),
		FailureCount: len(s.reject),
		StaleTokens:  s.reject,
	}, nil
}

func (s *fakeSender) Ping(context.Context) error { return nil }

type fakeMailer struct {
	to   []string
	data []emailsender.ReminderData
}

func (m *fakeMailer) SendReminderEmail(to string, data emailsender.ReminderData) error {
	m.to = append(m.to, to)
	m.data = append(m.data, data)
	return nil
}

func newStore(t *testing.T) (*userdatausecase.UserDataUseCase, *dispatcher.Bus) {
	t.Helper()
	kv, _ := kvtest.NewStore(t)
	log := kvtest.Logger()
	bus := dispatcher.New(log)
	return userdatausecase.NewUserDataUseCase(userdatarepo.NewRepo(kv, log), bus, nil, log), bus
}

func newNotificationEvent(n userdata.Notification) dispatcher.Event {
	return dispatcher.Event{Type: dispatcher.EventNewNotification, UserID: "u1", Payload: n}
}

func TestPushSubscriber(t *testing.T) {
	store, bus := newStore(t)
	ctx := context.Background()
	sender := &fakeSender{reject: []string{"stale"}}
	NewPushSubscriber(sender, store, kvtest.Logger(), false).Register(bus)

	_, err := store.Update(ctx, "u1", func(rec *userdata.UserRecord) error {
		rec.Preferences.PushTokens = []string{"good", "stale"}
		return nil
	})
	require.NoError(t, err)

	bus.Dispatch(ctx, newNotificationEvent(userdata.Notification{
		ID: 7, Type: userdata.NotificationInfo, Priority: userdata.PriorityLow, Title: "t", Description: "d",
		Actions: []userdata.NotificationAction{{Label: "go", Action: "open", URL: "/calendar"}},
	}))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "t", msg.Title)
	assert.Equal(t, "d", msg.Body)
	assert.Equal(t, []string{"good", "stale"}, msg.Tokens)
	assert.Equal(t, 7, msg.NotificationID)
	assert.Equal(t, userdata.NotificationInfo, msg.Kind)
	assert.Equal(t, userdata.PriorityLow, msg.Priority)
	assert.Equal(t, "/calendar", msg.Link)

	rec, err := store.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, rec.Preferences.PushTokens)
}

func TestPushSubscriber_Suppressed(t *testing.T) {
	store, bus := newStore(t)
	ctx := context.Background()
	sender := &fakeSender{}
	NewPushSubscriber(sender, store, kvtest.Logger(), false).Register(bus)

	// No tokens.
	bus.Dispatch(ctx, newNotificationEvent(userdata.Notification{ID: 1}))

	_, err := store.Update(ctx, "u1", func(rec *userdata.UserRecord) error {
		rec.Preferences.PushTokens = []string{"good"}
		rec.Preferences.NotificationsEnabled = false
		return nil
	})
	require.NoError(t, err)
	bus.Dispatch(ctx, newNotificationEvent(userdata.Notification{ID: 2}))

	assert.Empty(t, sender.sent)
}

func TestEmailSubscriber(t *testing.T) {
	store, bus := newStore(t)
	ctx := context.Background()
	mailer := &fakeMailer{}
	NewEmailSubscriber(mailer, store, kvtest.Logger(), false).Register(bus)

	last := "2024-01-10"
	_, err := store.Update(ctx, "u1", func(rec *userdata.UserRecord) error {
		rec.Profile.Email = "anna@example.org"
		rec.Profile.Name = "Anna"
		rec.Profile.LastDonationDate = &last
		return nil
	})
	require.NoError(t, err)

	bus.Dispatch(ctx, newNotificationEvent(userdata.Notification{Type: userdata.NotificationInfo, Title: "other"}))
	assert.Empty(t, mailer.to)

	bus.Dispatch(ctx, newNotificationEvent(userdata.Notification{
		Type: userdata.NotificationReminders, Title: notification.ReminderTitle, Description: "come back",
	}))
	require.Equal(t, []string{"anna@example.org"}, mailer.to)
	assert.Equal(t, "Anna", mailer.data[0].Name)
	assert.Equal(t, last, mailer.data[0].LastDonationDate)

	err = store.UpdateSection(ctx, "u1", userdata.SectionPreferences, map[string]any{"notificationsEnabled": false})
	require.NoError(t, err)
	bus.Dispatch(ctx, newNotificationEvent(userdata.Notification{
		Type: userdata.NotificationReminders, Title: notification.ReminderTitle,
	}))
	assert.Len(t, mailer.to, 1)
}
