package notification

import (
	"context"
	"net/http"

	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
)

// --- Event bus ---

// Dispatcher is the publish/subscribe contract every producer and consumer of events shares.
type Dispatcher interface {
	Subscribe(eventType dispatcher.EventType, handler dispatcher.Handler) (unsubscribe func())
	Dispatch(ctx context.Context, event dispatcher.Event)
}

// --- Milestones ---

type Milestone struct {
	Count int
	ID    string
	Title string
	Level string
	Icon  string
}

// Milestones fire on an exact donation count, once each.
var Milestones = []Milestone{
	{Count: 1, ID: "donations_1", Title: "Primera donació", Level: "Bronze", Icon: "medal-bronze"},
	{Count: 3, ID: "donations_3", Title: "Donant compromès", Level: "Bronze", Icon: "medal-bronze"},
	{Count: 5, ID: "donations_5", Title: "Donant habitual", Level: "Silver", Icon: "medal-silver"},
	{Count: 10, ID: "donations_10", Title: "Heroi de la sang", Level: "Gold", Icon: "medal-gold"},
	{Count: 25, ID: "donations_25", Title: "Donant llegendari", Level: "Platinum", Icon: "trophy"},
	{Count: 50, ID: "donations_50", Title: "Donant de diamant", Level: "Diamond", Icon: "diamond"},
}

// LivesPerDonation is the figure shown to donors for one donation.
const LivesPerDonation = 3

func MilestoneFor(count int) (Milestone, bool) {
	for _, m := range Milestones {
		if m.Count == count {
			return m, true
		}
	}
	return Milestone{}, false
}

// ReminderTitle identifies the "you can donate again" reminder; at most one unread copy exists.
const ReminderTitle = "Ja pots tornar a donar!"

// --- DTO ---

type PreferencesRequest struct {
	Preferences map[string]bool `json:"preferences" validate:"required,min=1"`
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// --- Interfaces ---

type UseCase interface {
	// AddNotification stores n and returns it with its id, or nil when the category is muted.
	AddNotification(ctx context.Context, userID string, n userdata.Notification) (*userdata.Notification, error)
	GetNotifications(ctx context.Context, userID string, limit int) ([]userdata.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID string, id int) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string, id int) error
	Trash(ctx context.Context, userID string) ([]userdata.Notification, error)
	Restore(ctx context.Context, userID string, id int) error
	EmptyTrash(ctx context.Context, userID string) error
	UpdatePreferences(ctx context.Context, userID string, prefs map[string]bool) (map[string]bool, error)

	OnDonationRecorded(ctx context.Context, userID string, d userdata.Donation) error
	// OnAvailableAgain reports whether a reminder was emitted.
	OnAvailableAgain(ctx context.Context, userID string) (bool, error)
}

type Controller interface {
	GetNotifications(w http.ResponseWriter, r *http.Request)
	UnreadCount(w http.ResponseWriter, r *http.Request)
	MarkAsRead(w http.ResponseWriter, r *http.Request)
	MarkAllAsRead(w http.ResponseWriter, r *http.Request)
	Remove(w http.ResponseWriter, r *http.Request)
	Trash(w http.ResponseWriter, r *http.Request)
	Restore(w http.ResponseWriter, r *http.Request)
	EmptyTrash(w http.ResponseWriter, r *http.Request)
	UpdatePreferences(w http.ResponseWriter, r *http.Request)
}
