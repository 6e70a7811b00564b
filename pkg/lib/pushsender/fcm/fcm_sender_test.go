package fcm

import (
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/pkg/lib/pushsender"
)

func TestBuildMessage_HighPriorityReminder(t *testing.T) {
	m := buildMessage(pushsender.PushMessage{
		NotificationID: 4,
		Kind:           "reminders",
		Priority:       "high",
		Title:          "Ja pots tornar a donar",
		Body:           "Reserva una cita!",
		Link:           "/calendar",
		Tokens:         []string{"a", "b"},
	})

	assert.Equal(t, []string{"a", "b"}, m.Tokens)
	assert.Equal(t, "4", m.Data["notificationId"])
	assert.Equal(t, "reminders", m.Data["type"])
	assert.Equal(t, "/calendar", m.Data["url"])

	require.NotNil(t, m.Android)
	assert.Equal(t, "high", m.Android.Priority)
	assert.Equal(t, "bloodlink-reminders", m.Android.CollapseKey)
	require.NotNil(t, m.Android.TTL)
	assert.Equal(t, 24*time.Hour, *m.Android.TTL)

	assert.Equal(t, "10", m.APNS.Headers["apns-priority"])
	assert.Equal(t, "bloodlink-reminders", m.APNS.Headers["apns-collapse-id"])
	assert.Equal(t, "high", m.Webpush.Headers["Urgency"])
	require.NotNil(t, m.Webpush.FCMOptions)
	assert.Equal(t, "/calendar", m.Webpush.FCMOptions.Link)
}

func TestBuildMessage_LowPriorityInfo(t *testing.T) {
	m := buildMessage(pushsender.PushMessage{NotificationID: 1, Kind: "info", Priority: "low", Tokens: []string{"a"}})

	assert.Equal(t, "normal", m.Android.Priority)
	assert.Nil(t, m.Android.TTL)
	assert.Equal(t, "5", m.APNS.Headers["apns-priority"])
	assert.Equal(t, "normal", m.Webpush.Headers["Urgency"])
	assert.Nil(t, m.Webpush.FCMOptions)
	assert.NotContains(t, m.Data, "url")
}

func TestCollect_OnlyStaleTokensAreReported(t *testing.T) {
	gone := errors.New("unregistered")
	br := &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 2,
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "m1"},
			{Success: false, Error: gone},
			{Success: false, Error: errors.New("quota exceeded")},
		},
	}

	res := collect(br, []string{"ok", "dead", "busy"}, func(err error) bool { return errors.Is(err, gone) })

	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
	assert.Equal(t, []string{"dead"}, res.StaleTokens)
}
