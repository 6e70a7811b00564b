// Package delivery forwards stored notifications to channels outside the app: push and e-mail.
package delivery

import (
	"context"
	"log/slog"

	"bloodlink/internal/modules/notification"
	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
	"bloodlink/pkg/lib/pushsender"
)

// PushSubscriber sends every new notification to the user's registered devices.
type PushSubscriber struct {
	sender pushsender.Sender
	store  userdata.UseCase
	log    *slog.Logger
	async  bool
}

// NewPushSubscriber builds the subscriber. With async set, delivery leaves the publisher's goroutine.
func NewPushSubscriber(sender pushsender.Sender, store userdata.UseCase, log *slog.Logger, async bool) *PushSubscriber {
	return &PushSubscriber{
		sender: sender,
		store:  store,
		log:    log.With(slog.String("service", "PushSubscriber")),
		async:  async,
	}
}

func (s *PushSubscriber) Register(bus notification.Dispatcher) {
	bus.Subscribe(dispatcher.EventNewNotification, s.Handle)
}

func (s *PushSubscriber) Handle(ctx context.Context, event dispatcher.Event) {
	if s.async {
		go s.deliver(context.WithoutCancel(ctx), event)
		return
	}
	s.deliver(ctx, event)
}

func (s *PushSubscriber) deliver(ctx context.Context, event dispatcher.Event) {
	log := s.log.With(slog.String("op", "deliver"), slog.String("userID", event.UserID))

	n, ok := event.Payload.(userdata.Notification)
	if !ok {
		log.Error("invalid payload type for NEW_NOTIFICATION")
		return
	}

	rec, err := s.store.GetRecord(ctx, event.UserID)
	if err != nil {
		log.Error("failed to load record for push", "error", err)
		return
	}
	if !rec.Preferences.NotificationsEnabled {
		log.Debug("skipping push: notifications disabled by user")
		return
	}
	if len(rec.Preferences.PushTokens) == 0 {
		log.Debug("skipping push: no device tokens")
		return
	}

	link := ""
	if len(n.Actions) > 0 {
		link = n.Actions[0].URL
	}

	result, err := s.sender.Send(ctx, pushsender.PushMessage{
		NotificationID: n.ID,
		Kind:           n.Type,
		Priority:       n.Priority,
		Title:          n.Title,
		Body:           n.Description,
		Link:           link,
		Tokens:         rec.Preferences.PushTokens,
	})
	if err != nil {
		log.Error("failed to send push notification", "error", err)
		return
	}
	if len(result.StaleTokens) > 0 {
		s.pruneTokens(ctx, event.UserID, result.StaleTokens, log)
	}
}

// pruneTokens forgets device tokens the provider rejected.
func (s *PushSubscriber) pruneTokens(ctx context.Context, userID string, failed []string, log *slog.Logger) {
	drop := make(map[string]struct{}, len(failed))
	for _, t := range failed {
		drop[t] = struct{}{}
	}

	_, err := s.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		kept := rec.Preferences.PushTokens[:0]
		for _, t := range rec.Preferences.PushTokens {
			if _, bad := drop[t]; !bad {
				kept = append(kept, t)
			}
		}
		rec.Preferences.PushTokens = kept
		return nil
	})
	if err != nil {
		log.Warn("failed to prune device tokens", "error", err)
		return
	}
	log.Info("pruned rejected device tokens", slog.Int("count", len(failed)))
}
