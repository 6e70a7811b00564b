package userdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/pkg/lib/datecalc"
)

// CurrentSchemaVersion is written on every save. Upgrade brings older records forward.
const CurrentSchemaVersion = 2

// Section names accepted by UpdateSection.
const (
	SectionProfile       = "profile"
	SectionDonations     = "donations"
	SectionNotifications = "notifications"
	SectionCalendar      = "calendar"
	SectionChats         = "chats"
	SectionAchievements  = "achievements"
	SectionPreferences   = "preferences"
)

// --- Aggregate ---

type UserRecord struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Profile       Profile             `json:"profile"`
	Donations     DonationsSection    `json:"donations"`
	Notifications NotificationSection `json:"notifications"`
	Calendar      CalendarSection     `json:"calendar"`
	Chats         ChatsSection        `json:"chats"`
	Achievements  AchievementsSection `json:"achievements"`
	Preferences   Preferences         `json:"preferences"`
}

type Profile struct {
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	DonationCount    int     `json:"donationCount"`
	LastDonationDate *string `json:"lastDonationDate"`
	Groups           []Group `json:"groups"`
}

type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// --- Donations ---

const (
	MethodForm = "Formulari"
	MethodCode = "Codi"
)

type Donation struct {
	Date         string     `json:"date,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Center       string     `json:"center"`
	Type         string     `json:"type"`
	Volume       *int       `json:"volume"`
	Observations string     `json:"observations,omitempty"`
	Method       string     `json:"method,omitempty"`
	Code         string     `json:"code,omitempty"`
}

// EffectiveDate is the local calendar day of the donation at midnight: Date when set,
// otherwise the day of Timestamp. ok is false when it carries neither or Date does not parse.
func (d Donation) EffectiveDate(loc *time.Location) (t time.Time, ok bool) {
	if d.Date != "" {
		parsed, err := datecalc.ParseDate(d.Date, loc)
		if err == nil {
			return parsed, true
		}
	}
	if d.Timestamp != nil {
		return datecalc.StartOfDay(*d.Timestamp, loc), true
	}
	return time.Time{}, false
}

type DonationsSection struct {
	List             []Donation `json:"list"`
	TotalCount       int        `json:"totalCount"`
	TodayCount       int        `json:"todayCount"`
	LastDonationDate *string    `json:"lastDonationDate"`
}

// CheckDates fails on the first donation without a usable effective date.
func (s DonationsSection) CheckDates() error {
	for i, d := range s.List {
		if d.Date != "" {
			if _, err := time.Parse(datecalc.DateLayout, d.Date); err != nil {
				return fmt.Errorf("%w: list[%d] date %q", ErrBadDonationDate, i, d.Date)
			}
			continue
		}
		if d.Timestamp == nil {
			return fmt.Errorf("%w: list[%d]", ErrBadDonationDate, i)
		}
	}
	return nil
}

// --- Notifications ---

const (
	NotificationEvents       = "events"
	NotificationReminders    = "reminders"
	NotificationAchievements = "achievements"
	NotificationInfo         = "info"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// NotificationCategories lists the flags kept in NotificationSection.Preferences.
var NotificationCategories = []string{NotificationEvents, NotificationReminders, NotificationAchievements, NotificationInfo}

type Notification struct {
	ID          int                  `json:"id"`
	Type        string               `json:"type"`
	Icon        string               `json:"icon,omitempty"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    string               `json:"category,omitempty"`
	Priority    string               `json:"priority"`
	Unread      bool                 `json:"unread"`
	Timestamp   time.Time            `json:"timestamp"`
	Actions     []NotificationAction `json:"actions"`
}

type NotificationAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
}

type NotificationSection struct {
	List        []Notification  `json:"list"`
	Trash       []Notification  `json:"trash"`
	Preferences map[string]bool `json:"preferences"`
}

// --- Calendar ---

const (
	EventDonation    = "donation"
	EventAvailable   = "available"
	EventAppointment = "appointment"
)

type CalendarEvent struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	Time         string `json:"time,omitempty"`
	Center       string `json:"center,omitempty"`
	DonationType string `json:"donationType,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type CalendarSection struct {
	Appointments []CalendarEvent `json:"appointments"`
}

// --- Chats ---

type Contact struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

const (
	SenderUser    = "user"
	SenderContact = "contact"
)

type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

type ChatsSection struct {
	Contacts      []Contact            `json:"contacts"`
	Conversations map[string][]Message `json:"conversations"`
}

// --- Achievements & preferences ---

type AchievementsSection struct {
	Unlocked []string       `json:"unlocked"`
	Progress map[string]int `json:"progress"`
}

func (a *AchievementsSection) IsUnlocked(id string) bool {
	for _, u := range a.Unlocked {
		if u == id {
			return true
		}
	}
	return false
}

func (a *AchievementsSection) Unlock(id string) bool {
	if a.IsUnlocked(id) {
		return false
	}
	a.Unlocked = append(a.Unlocked, id)
	return true
}

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

type Preferences struct {
	Language             string   `json:"language"`
	Theme                string   `json:"theme"`
	NotificationsEnabled bool     `json:"notificationsEnabled"`
	PushTokens           []string `json:"pushTokens,omitempty"`
}

// NewRecord returns the record a user gets on first access.
func NewRecord() *UserRecord {
	rec := &UserRecord{
		Preferences: Preferences{
			Language:             "ca",
			Theme:                ThemeAuto,
			NotificationsEnabled: true,
		},
	}
	Upgrade(rec)
	return rec
}

// Upgrade fills every structure a stored record may lack and stamps the current version.
func Upgrade(rec *UserRecord) {
	if rec.SchemaVersion < 2 {
		// v1 records kept the donation counters only under donations.
		if rec.Profile.DonationCount == 0 {
			rec.Profile.DonationCount = rec.Donations.TotalCount
		}
		if rec.Profile.LastDonationDate == nil {
			rec.Profile.LastDonationDate = rec.Donations.LastDonationDate
		}
		if rec.Preferences.Language == "" && rec.Preferences.Theme == "" {
			rec.Preferences.NotificationsEnabled = true
		}
	}

	if rec.Profile.Groups == nil {
		rec.Profile.Groups = []Group{}
	}
	if rec.Donations.List == nil {
		rec.Donations.List = []Donation{}
	}
	if rec.Notifications.List == nil {
		rec.Notifications.List = []Notification{}
	}
	if rec.Notifications.Trash == nil {
		rec.Notifications.Trash = []Notification{}
	}
	if rec.Notifications.Preferences == nil {
		rec.Notifications.Preferences = map[string]bool{}
	}
	for _, c := range NotificationCategories {
		if _, ok := rec.Notifications.Preferences[c]; !ok {
			rec.Notifications.Preferences[c] = true
		}
	}
	if rec.Calendar.Appointments == nil {
		rec.Calendar.Appointments = []CalendarEvent{}
	}
	if rec.Chats.Contacts == nil {
		rec.Chats.Contacts = []Contact{}
	}
	if rec.Chats.Conversations == nil {
		rec.Chats.Conversations = map[string][]Message{}
	}
	if rec.Achievements.Unlocked == nil {
		rec.Achievements.Unlocked = []string{}
	}
	if rec.Achievements.Progress == nil {
		rec.Achievements.Progress = map[string]int{}
	}
	if rec.Preferences.Language == "" {
		rec.Preferences.Language = "ca"
	}
	switch rec.Preferences.Theme {
	case ThemeLight, ThemeDark, ThemeAuto:
	default:
		rec.Preferences.Theme = ThemeAuto
	}

	rec.SchemaVersion = CurrentSchemaVersion
}

// --- Interfaces ---

// Publisher is the side of the event bus the store writes to.
type Publisher interface {
	Dispatch(ctx context.Context, event dispatcher.Event)
}

// SessionResolver yields the authenticated user of a request context.
type SessionResolver interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

type UseCase interface {
	GetRecord(ctx context.Context, userID string) (*UserRecord, error)
	SaveRecord(ctx context.Context, userID string, rec *UserRecord) error
	DeleteRecord(ctx context.Context, userID string) error
	UpdateSection(ctx context.Context, userID string, section string, partial map[string]any) error
	Update(ctx context.Context, userID string, fn func(rec *UserRecord) error) (*UserRecord, error)
	GetCurrentUserRecord(ctx context.Context) (*UserRecord, error)
	SaveCurrentUserRecord(ctx context.Context, rec *UserRecord) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Repo persists the whole userID -> record mapping as one entry.
type Repo interface {
	LoadAll(ctx context.Context) (map[string]*UserRecord, error)
	SaveAll(ctx context.Context, records map[string]*UserRecord) error
}

type Controller interface {
	GetRecord(w http.ResponseWriter, r *http.Request)
	SaveRecord(w http.ResponseWriter, r *http.Request)
	UpdateSection(w http.ResponseWriter, r *http.Request)
}
