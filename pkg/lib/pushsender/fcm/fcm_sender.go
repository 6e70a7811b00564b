package fcm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"bloodlink/config"
	"bloodlink/pkg/lib/pushsender"
)

const (
	webIcon = "/icons/icon-192.png"
	// reminders are stale once the next one is due
	reminderTTL = 24 * time.Hour
)

type FCMSender struct {
	client *messaging.Client
	log    *slog.Logger
}

func NewFCMSender(ctx context.Context, cfg config.FCMConfig, logger *slog.Logger) (*FCMSender, error) {
	log := logger.With(slog.String("component", "FCMSender"))

	if cfg.ProjectID == "" && cfg.ServiceAccountKeyJSONPath == "" {
		return nil, errors.New("fcm: project_id or service_account_key_json_path is required")
	}

	var (
		fbConfig *firebase.Config
		opts     []option.ClientOption
	)
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	if cfg.ServiceAccountKeyJSONPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountKeyJSONPath))
	} else {
		log.Info("no service account key, using application default credentials", "projectID", cfg.ProjectID)
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("fcm: init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: messaging client: %w", err)
	}

	log.Info("push delivery through FCM enabled")
	return &FCMSender{client: client, log: log}, nil
}

func (s *FCMSender) Send(ctx context.Context, msg pushsender.PushMessage) (*pushsender.SendResult, error) {
	op := "FCMSender.Send"
	log := s.log.With(slog.String("op", op), slog.Int("notificationId", msg.NotificationID))

	if len(msg.Tokens) == 0 {
		return &pushsender.SendResult{}, nil
	}

	br, err := s.client.SendEachForMulticast(ctx, buildMessage(msg))
	if err != nil {
		log.Error("fcm unreachable", "error", err)
		return &pushsender.SendResult{FailureCount: len(msg.Tokens)}, fmt.Errorf("fcm send: %w", err)
	}

	result := collect(br, msg.Tokens, isStale)
	if result.FailureCount > 0 {
		log.Warn("push partially delivered",
			slog.Int("delivered", result.SuccessCount),
			slog.Int("failed", result.FailureCount),
			slog.Int("stale", len(result.StaleTokens)),
		)
	} else {
		log.Debug("push delivered", slog.Int("devices", result.SuccessCount))
	}
	return result, nil
}

// buildMessage maps a notification onto the per-platform options. High priority wakes
// the device; everything else is delivered when convenient. Notifications of one kind
// replace each other on the lock screen.
func buildMessage(msg pushsender.PushMessage) *messaging.MulticastMessage {
	androidPriority, apnsPriority, urgency := "normal", "5", "normal"
	if msg.Priority == "high" {
		androidPriority, apnsPriority, urgency = "high", "10", "high"
	}
	collapseKey := "bloodlink-" + msg.Kind

	data := map[string]string{
		"notificationId": strconv.Itoa(msg.NotificationID),
		"type":           msg.Kind,
	}
	if msg.Link != "" {
		data["url"] = msg.Link
	}

	android := &messaging.AndroidConfig{
		Priority:    androidPriority,
		CollapseKey: collapseKey,
		Notification: &messaging.AndroidNotification{
			Tag:       collapseKey,
			ChannelID: msg.Kind,
		},
	}
	if msg.Kind == "reminders" {
		ttl := reminderTTL
		android.TTL = &ttl
	}

	web := &messaging.WebpushConfig{
		Headers: map[string]string{"Urgency": urgency},
		Notification: &messaging.WebpushNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Icon:  webIcon,
			Tag:   collapseKey,
		},
	}
	if msg.Link != "" {
		web.FCMOptions = &messaging.WebpushFCMOptions{Link: msg.Link}
	}

	return &messaging.MulticastMessage{
		Tokens:       msg.Tokens,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         data,
		Android:      android,
		Webpush:      web,
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":    apnsPriority,
				"apns-collapse-id": collapseKey,
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", ThreadID: msg.Kind},
			},
		},
	}
}

func isStale(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err)
}

// collect pairs batch responses with their tokens. Responses come back in token order.
func collect(br *messaging.BatchResponse, tokens []string, stale func(error) bool) *pushsender.SendResult {
	result := &pushsender.SendResult{SuccessCount: br.SuccessCount, FailureCount: br.FailureCount}
	for i, r := range br.Responses {
		if r.Success || i >= len(tokens) {
			continue
		}
		if r.Error != nil && stale(r.Error) {
			result.StaleTokens = append(result.StaleTokens, tokens[i])
		}
	}
	return result
}

func (s *FCMSender) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("fcm: client not initialized")
	}
	return nil
}
