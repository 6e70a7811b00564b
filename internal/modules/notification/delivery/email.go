package delivery

import (
	"context"
	"log/slog"

	"bloodlink/internal/modules/notification"
	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
	"bloodlink/pkg/lib/emailsender"
)

// EmailSubscriber mails the availability reminder to users with an e-mail address.
type EmailSubscriber struct {
	mailer emailsender.Mailer
	store  userdata.UseCase
	log    *slog.Logger
	async  bool
}

func NewEmailSubscriber(mailer emailsender.Mailer, store userdata.UseCase, log *slog.Logger, async bool) *EmailSubscriber {
	return &EmailSubscriber{
		mailer: mailer,
		store:  store,
		log:    log.With(slog.String("service", "EmailSubscriber")),
		async:  async,
	}
}

func (s *EmailSubscriber) Register(bus notification.Dispatcher) {
	bus.Subscribe(dispatcher.EventNewNotification, s.Handle)
}

func (s *EmailSubscriber) Handle(ctx context.Context, event dispatcher.Event) {
	n, ok := event.Payload.(userdata.Notification)
	if !ok || n.Type != userdata.NotificationReminders || n.Title != notification.ReminderTitle {
		return
	}
	if s.async {
		go s.deliver(context.WithoutCancel(ctx), event.UserID, n)
		return
	}
	s.deliver(ctx, event.UserID, n)
}

func (s *EmailSubscriber) deliver(ctx context.Context, userID string, n userdata.Notification) {
	log := s.log.With(slog.String("op", "deliver"), slog.String("userID", userID))

	rec, err := s.store.GetRecord(ctx, userID)
	if err != nil {
		log.Error("failed to load record for reminder email", "error", err)
		return
	}
	if !rec.Preferences.NotificationsEnabled || rec.Profile.Email == "" {
		log.Debug("skipping reminder email")
		return
	}

	data := emailsender.ReminderData{
		Name:        rec.Profile.Name,
		Title:       n.Title,
		Description: n.Description,
	}
	if rec.Profile.LastDonationDate != nil {
		data.LastDonationDate = *rec.Profile.LastDonationDate
	}

	if err := s.mailer.SendReminderEmail(rec.Profile.Email, data); err != nil {
		log.Error("failed to send reminder email", "error", err)
		return
	}
	log.Info("reminder email sent")
}
