package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"bloodlink/internal/modules/notification"
	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/datecalc"
)

// errSuppressed aborts an update without writing when nothing should be stored.
var errSuppressed = errors.New("notification suppressed")

type NotificationUseCase struct {
	store     userdata.UseCase
	publisher userdata.Publisher
	cooldown  datecalc.Cooldown
	clock     clock.Clock
	log       *slog.Logger
}

func NewNotificationUseCase(store userdata.UseCase, publisher userdata.Publisher, cooldown datecalc.Cooldown, clk clock.Clock, log *slog.Logger) *NotificationUseCase {
	return &NotificationUseCase{
		store:     store,
		publisher: publisher,
		cooldown:  cooldown,
		clock:     clk,
		log:       log,
	}
}

func (uc *NotificationUseCase) AddNotification(ctx context.Context, userID string, n userdata.Notification) (*userdata.Notification, error) {
	return uc.add(ctx, userID, n, nil)
}

// add stores n unless its category is muted or guard (evaluated under the store lock) says no.
func (uc *NotificationUseCase) add(ctx context.Context, userID string, n userdata.Notification, guard func(rec *userdata.UserRecord) bool) (*userdata.Notification, error) {
	op := "NotificationUseCase.add"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID), slog.String("type", n.Type))

	var stored userdata.Notification
	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		if guard != nil && !guard(rec) {
			return errSuppressed
		}
		var ok bool
		if stored, ok = uc.push(rec, n); !ok {
			return errSuppressed
		}
		return nil
	})
	if errors.Is(err, errSuppressed) {
		log.Debug("notification not stored")
		return nil, nil
	}
	if err != nil {
		log.Error("failed to store notification", "error", err)
		return nil, err
	}

	log.Info("notification added", slog.Int("id", stored.ID))
	uc.Announce(ctx, userID, []userdata.Notification{stored})
	return &stored, nil
}

// push prepends n to the record with the next id. ok is false when the category is muted.
func (uc *NotificationUseCase) push(rec *userdata.UserRecord, n userdata.Notification) (userdata.Notification, bool) {
	if enabled, ok := rec.Notifications.Preferences[n.Type]; ok && !enabled {
		return n, false
	}
	n.ID = nextID(rec) + 1
	n.Timestamp = uc.clock.Now()
	n.Unread = true
	if n.Priority == "" {
		n.Priority = userdata.PriorityMedium
	}
	if n.Actions == nil {
		n.Actions = []userdata.NotificationAction{}
	}
	rec.Notifications.List = append([]userdata.Notification{n}, rec.Notifications.List...)
	return n, true
}

// Announce publishes NEW_NOTIFICATION for each stored notification, in order.
func (uc *NotificationUseCase) Announce(ctx context.Context, userID string, added []userdata.Notification) {
	if uc.publisher == nil {
		return
	}
	for _, n := range added {
		uc.publisher.Dispatch(ctx, dispatcher.Event{
			Type:    dispatcher.EventNewNotification,
			UserID:  userID,
			Payload: n,
		})
	}
}

// nextID is the largest id used so far, trash included, so a restored entry never collides.
func nextID(rec *userdata.UserRecord) int {
	maxID := 0
	for _, list := range [][]userdata.Notification{rec.Notifications.List, rec.Notifications.Trash} {
		for _, n := range list {
			if n.ID > maxID {
				maxID = n.ID
			}
		}
	}
	return maxID
}

// --- Generators ---

// OnDonationRecorded stores the notifications of a donation that is already in the record.
func (uc *NotificationUseCase) OnDonationRecorded(ctx context.Context, userID string, d userdata.Donation) error {
	op := "NotificationUseCase.OnDonationRecorded"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	now := uc.clock.Now()
	donatedAt, ok := d.EffectiveDate(uc.cooldown.Location)
	if !ok {
		donatedAt = datecalc.StartOfDay(now, uc.cooldown.Location)
	}

	var added []userdata.Notification
	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		added = uc.ApplyDonation(rec, d, donatedAt, now)
		return nil
	})
	if err != nil {
		log.Error("failed to store donation notifications", "error", err)
		return err
	}
	uc.Announce(ctx, userID, added)
	return nil
}

// ApplyDonation writes the thanks, next-date and milestone notifications of d into rec and
// returns the ones stored. It runs inside the store update that accepted the donation, so
// the milestone is decided on the count that donation produced.
func (uc *NotificationUseCase) ApplyDonation(rec *userdata.UserRecord, d userdata.Donation, donatedAt, now time.Time) []userdata.Notification {
	var added []userdata.Notification
	store := func(n userdata.Notification) {
		if stored, ok := uc.push(rec, n); ok {
			added = append(added, stored)
		}
	}

	store(userdata.Notification{
		Type:        userdata.NotificationAchievements,
		Icon:        "heart",
		Title:       "Gràcies per la teva donació!",
		Description: fmt.Sprintf("Has donat el %s a %s. La teva donació pot salvar fins a %d vides.", uc.cooldown.Format(donatedAt), d.Center, notification.LivesPerDonation),
		Category:    "donation",
		Priority:    userdata.PriorityMedium,
	})

	if next := uc.cooldown.NextAvailable(donatedAt); next.After(now) {
		store(userdata.Notification{
			Type:        userdata.NotificationInfo,
			Icon:        "calendar",
			Title:       "Propera donació",
			Description: fmt.Sprintf("Podràs tornar a donar a partir del %s.", uc.cooldown.Format(next)),
			Category:    "eligibility",
			Priority:    userdata.PriorityLow,
			Actions: []userdata.NotificationAction{
				{Label: "Veure calendari", Action: "open-calendar", URL: "/calendar"},
			},
		})
	}

	count := rec.Donations.TotalCount
	rec.Achievements.Progress["donations"] = count
	rec.Achievements.Progress["livesSaved"] = count * notification.LivesPerDonation

	milestone, ok := notification.MilestoneFor(count)
	if !ok || !rec.Achievements.Unlock(milestone.ID) {
		return added
	}
	uc.log.Info("milestone unlocked", slog.String("op", "NotificationUseCase.ApplyDonation"), slog.String("milestone", milestone.ID))
	store(userdata.Notification{
		Type:  userdata.NotificationAchievements,
		Icon:  milestone.Icon,
		Title: "Assoliment desbloquejat: " + milestone.Title,
		Description: fmt.Sprintf("Has arribat a %d donacions (nivell %s). Has ajudat a salvar fins a %d vides.",
			milestone.Count, milestone.Level, milestone.Count*notification.LivesPerDonation),
		Category: "milestone",
		Priority: userdata.PriorityHigh,
		Actions: []userdata.NotificationAction{
			{Label: "Veure assoliments", Action: "open-achievements", URL: "/achievements"},
		},
	})
	return added
}

func (uc *NotificationUseCase) OnAvailableAgain(ctx context.Context, userID string) (bool, error) {
	op := "NotificationUseCase.OnAvailableAgain"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	now := uc.clock.Now()
	var lastDate string
	guard := func(rec *userdata.UserRecord) bool {
		if len(rec.Donations.List) == 0 {
			return false
		}
		last, ok := rec.Donations.List[0].EffectiveDate(uc.cooldown.Location)
		if !ok || !uc.cooldown.Elapsed(last, now) {
			return false
		}
		for _, n := range rec.Notifications.List {
			if n.Unread && n.Type == userdata.NotificationReminders && n.Title == notification.ReminderTitle {
				return false
			}
		}
		lastDate = uc.cooldown.Format(last)
		return true
	}

	stored, err := uc.add(ctx, userID, userdata.Notification{
		Type:        userdata.NotificationReminders,
		Icon:        "droplet",
		Title:       notification.ReminderTitle,
		Description: "Ja han passat els mesos de descans des de la teva última donació. Reserva una cita!",
		Category:    "eligibility",
		Priority:    userdata.PriorityHigh,
		Actions: []userdata.NotificationAction{
			{Label: "Reservar cita", Action: "book-appointment", URL: "/calendar"},
		},
	}, guard)
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, nil
	}
	log.Info("availability reminder emitted", slog.String("lastDonationDate", lastDate))
	return true, nil
}

// --- Accessors ---

func (uc *NotificationUseCase) GetNotifications(ctx context.Context, userID string, limit int) ([]userdata.Notification, error) {
	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	list := rec.Notifications.List
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (uc *NotificationUseCase) UnreadCount(ctx context.Context, userID string) (int, error) {
	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range rec.Notifications.List {
		if n.Unread {
			count++
		}
	}
	return count, nil
}

func (uc *NotificationUseCase) MarkAsRead(ctx context.Context, userID string, id int) error {
	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		i := indexOf(rec.Notifications.List, id)
		if i < 0 {
			return notification.ErrNotificationNotFound
		}
		rec.Notifications.List[i].Unread = false
		return nil
	})
	return err
}

func (uc *NotificationUseCase) MarkAllAsRead(ctx context.Context, userID string) error {
	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		for i := range rec.Notifications.List {
			rec.Notifications.List[i].Unread = false
		}
		return nil
	})
	return err
}

// Remove moves the notification to the trash.
func (uc *NotificationUseCase) Remove(ctx context.Context, userID string, id int) error {
	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		i := indexOf(rec.Notifications.List, id)
		if i < 0 {
			return notification.ErrNotificationNotFound
		}
		n := rec.Notifications.List[i]
		rec.Notifications.List = append(rec.Notifications.List[:i], rec.Notifications.List[i+1:]...)
		rec.Notifications.Trash = append([]userdata.Notification{n}, rec.Notifications.Trash...)
		return nil
	})
	return err
}

func (uc *NotificationUseCase) Trash(ctx context.Context, userID string) ([]userdata.Notification, error) {
	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.Notifications.Trash, nil
}

// Restore puts a trashed notification back in the list at its chronological place.
func (uc *NotificationUseCase) Restore(ctx context.Context, userID string, id int) error {
	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		i := indexOf(rec.Notifications.Trash, id)
		if i < 0 {
			return notification.ErrNotificationNotFound
		}
		n := rec.Notifications.Trash[i]
		rec.Notifications.Trash = append(rec.Notifications.Trash[:i], rec.Notifications.Trash[i+1:]...)

		list := append(rec.Notifications.List, n)
		sort.SliceStable(list, func(a, b int) bool {
			return list[a].Timestamp.After(list[b].Timestamp)
		})
		rec.Notifications.List = list
		return nil
	})
	return err
}

func (uc *NotificationUseCase) EmptyTrash(ctx context.Context, userID string) error {
	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		rec.Notifications.Trash = []userdata.Notification{}
		return nil
	})
	return err
}

func (uc *NotificationUseCase) UpdatePreferences(ctx context.Context, userID string, prefs map[string]bool) (map[string]bool, error) {
	for category := range prefs {
		if !isCategory(category) {
			return nil, fmt.Errorf("%w: %s", notification.ErrUnknownCategory, category)
		}
	}

	rec, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		for category, enabled := range prefs {
			rec.Notifications.Preferences[category] = enabled
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec.Notifications.Preferences, nil
}

func isCategory(c string) bool {
	for _, known := range userdata.NotificationCategories {
		if c == known {
			return true
		}
	}
	return false
}

func indexOf(list []userdata.Notification, id int) int {
	for i, n := range list {
		if n.ID == id {
			return i
		}
	}
	return -1
}
