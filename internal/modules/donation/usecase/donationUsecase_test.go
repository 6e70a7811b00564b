package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"bloodlink/internal/kvstore"
	"bloodlink/internal/kvstore/kvtest"
	calendarusecase "bloodlink/internal/modules/calendar/usecase"
	"bloodlink/internal/modules/donation"
	"bloodlink/internal/modules/donation/repo"
	"bloodlink/internal/modules/notification/dispatcher"
	notificationusecase "bloodlink/internal/modules/notification/usecase"
	"bloodlink/internal/modules/userdata"
	userdatarepo "bloodlink/internal/modules/userdata/repo"
	userdatausecase "bloodlink/internal/modules/userdata/usecase"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/datecalc"
	jwtmw "bloodlink/pkg/middleware/jwt"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	uc    *DonationUseCase
	store *userdatausecase.UserDataUseCase
	clock *clock.Frozen
	bus   *dispatcher.Bus
	mr    *miniredis.Miniredis
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	kv, mr := kvtest.NewStore(t)
	log := kvtest.Logger()

	clk := clock.NewFrozen(now)
	bus := dispatcher.New(log)
	cooldown := datecalc.NewCooldown(3, datecalc.OverflowRollover, time.UTC)

	store := userdatausecase.NewUserDataUseCase(userdatarepo.NewRepo(kv, log), bus, jwtmw.Session{}, log)
	cal := calendarusecase.NewCalendarUseCase(store, cooldown, clk, log)
	notif := notificationusecase.NewNotificationUseCase(store, bus, cooldown, clk, log)
	uc := NewDonationUseCase(store, cal, notif, repo.NewCodeLedger(kv, log), cooldown, clk, log)

	return &harness{uc: uc, store: store, clock: clk, bus: bus, mr: mr}
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func sang(date string) userdata.Donation {
	return userdata.Donation{Date: date, Center: "X", Type: "Sang"}
}

func eventsOfType(rec *userdata.UserRecord, typ string) []userdata.CalendarEvent {
	var out []userdata.CalendarEvent
	for _, e := range rec.Calendar.Appointments {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func notificationsOfType(rec *userdata.UserRecord, typ string) []userdata.Notification {
	var out []userdata.Notification
	for _, n := range rec.Notifications.List {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func TestRecordDonation_ExampleScenario(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	acc, err := h.uc.RecordDonation(ctx, "u1", sang("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, 1, acc.Donations.TotalCount)
	require.NotNil(t, acc.NextAvailableDate)
	assert.Equal(t, "2024-04-10", *acc.NextAvailableDate)

	rec, err := h.store.GetRecord(ctx, "u1")
	require.NoError(t, err)

	info := notificationsOfType(rec, userdata.NotificationInfo)
	require.Len(t, info, 1)
	assert.Contains(t, info[0].Description, "2024-04-10")

	// The thank-you note plus the first-donation milestone.
	achievements := notificationsOfType(rec, userdata.NotificationAchievements)
	require.Len(t, achievements, 2)
	assert.Contains(t, achievements[len(achievements)-1].Description, "2024-01-10")
	assert.Contains(t, achievements[len(achievements)-1].Description, "X")

	available := eventsOfType(rec, userdata.EventAvailable)
	require.Len(t, available, 1)
	assert.Equal(t, "2024-04-10", available[0].Date)
	donations := eventsOfType(rec, userdata.EventDonation)
	require.Len(t, donations, 1)
	assert.Equal(t, "2024-01-10", donations[0].Date)

	require.NotNil(t, rec.Profile.LastDonationDate)
	assert.Equal(t, "2024-01-10", *rec.Profile.LastDonationDate)
	assert.Equal(t, 1, rec.Profile.DonationCount)

	_, err = h.uc.RecordDonation(ctx, "u1", sang("2024-02-01"))
	var elig *donation.EligibilityError
	require.True(t, errors.As(err, &elig))
	assert.ErrorIs(t, err, donation.ErrEligibilityViolation)
	assert.Equal(t, donation.ReasonCooldown, elig.Reason)
	assert.Equal(t, "2024-01-10", elig.LastDonationDate)
	assert.Equal(t, "2024-04-10", elig.NextAvailableDate)

	after, err := h.store.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, rec, after)
}

func TestRecordDonation_FirstAlwaysSucceeds(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	for _, d := range []userdata.Donation{sang("1999-12-31"), sang("2030-06-01"), {Center: "X", Type: "Plasma"}} {
		user := "u-" + d.Date
		_, err := h.uc.RecordDonation(ctx, user, d)
		assert.NoError(t, err, d.Date)
	}
}

func TestRecordDonation_PastDonationHasNoAvailableEvent(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	_, err := h.uc.RecordDonation(ctx, "u1", sang("2023-01-01"))
	require.NoError(t, err)

	rec, err := h.store.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, eventsOfType(rec, userdata.EventAvailable))
	assert.Empty(t, notificationsOfType(rec, userdata.NotificationInfo))
}

func TestRecordDonation_SequenceKeepsInvariants(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	dates := []string{"2023-01-01", "2023-04-01", "2023-07-01", "2023-10-01", "2024-01-01"}
	for i, date := range dates {
		acc, err := h.uc.RecordDonation(ctx, "u1", sang(date))
		require.NoError(t, err, date)
		assert.Equal(t, i+1, acc.Donations.TotalCount)

		rec, err := h.store.GetRecord(ctx, "u1")
		require.NoError(t, err)
		for j := 1; j < len(rec.Donations.List); j++ {
			prev, _ := rec.Donations.List[j-1].EffectiveDate(time.UTC)
			cur, _ := rec.Donations.List[j].EffectiveDate(time.UTC)
			assert.False(t, prev.Before(cur), "list must stay sorted descending")
		}
		assert.LessOrEqual(t, len(eventsOfType(rec, userdata.EventAvailable)), 1)
	}

	rec, err := h.store.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", rec.Donations.List[0].Date)
	assert.Len(t, eventsOfType(rec, userdata.EventDonation), len(dates))

	available := eventsOfType(rec, userdata.EventAvailable)
	require.Len(t, available, 1)
	assert.Equal(t, "2024-04-01", available[0].Date)

	assert.ElementsMatch(t, []string{"donations_1", "donations_3", "donations_5"}, rec.Achievements.Unlocked)
	assert.Equal(t, 5, rec.Achievements.Progress["donations"])
	assert.Equal(t, 15, rec.Achievements.Progress["livesSaved"])

	milestones := 0
	for _, n := range rec.Notifications.List {
		if n.Category == "milestone" {
			milestones++
		}
	}
	assert.Equal(t, 3, milestones)
}

func TestRecordDonation_TimestampOnlyCountsToday(t *testing.T) {
	now := at(2024, time.January, 10)
	h := newHarness(t, now)
	ctx := context.Background()

	acc, err := h.uc.RecordDonation(ctx, "u1", userdata.Donation{Center: "X", Type: "Plaquetes"})
	require.NoError(t, err)
	assert.Equal(t, 1, acc.Donations.TodayCount)
	require.NotNil(t, acc.Donations.List[0].Timestamp)
	assert.True(t, now.Equal(*acc.Donations.List[0].Timestamp))
	assert.Equal(t, userdata.MethodForm, acc.Donations.List[0].Method)

	h.clock.Set(at(2024, time.May, 1))
	acc, err = h.uc.RecordDonation(ctx, "u1", sang("2024-04-20"))
	require.NoError(t, err)
	assert.Equal(t, 0, acc.Donations.TodayCount)
}

func TestRecordDonation_TimestampOnlyCooldownCountsWholeDays(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	acc, err := h.uc.RecordDonation(ctx, "u1", userdata.Donation{Center: "X", Type: "Sang"})
	require.NoError(t, err)
	require.NotNil(t, acc.NextAvailableDate)
	assert.Equal(t, "2024-04-10", *acc.NextAvailableDate)

	h.clock.Set(time.Date(2024, time.April, 9, 23, 0, 0, 0, time.UTC))
	_, err = h.uc.RecordDonation(ctx, "u1", userdata.Donation{Center: "X", Type: "Sang"})
	var elig *donation.EligibilityError
	require.True(t, errors.As(err, &elig))
	assert.Equal(t, "2024-04-10", elig.NextAvailableDate)

	h.clock.Set(time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC))
	res, err := h.uc.Eligibility(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Eligible, "eligible from the start of the announced day")

	h.clock.Set(at(2024, time.April, 10))
	acc, err = h.uc.RecordDonation(ctx, "u1", sang("2024-04-10"))
	require.NoError(t, err)
	assert.Equal(t, 2, acc.Donations.TotalCount)
}

func TestRecordDonation_RejectsWhenLatestDateUnusable(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	// Written around the store checks, as an old blob could be.
	_, err := h.store.Update(ctx, "u1", func(rec *userdata.UserRecord) error {
		rec.Donations.List = []userdata.Donation{{Date: "bogus", Center: "X", Type: "Sang"}}
		rec.Donations.TotalCount = 1
		return nil
	})
	require.NoError(t, err)

	_, err = h.uc.RecordDonation(ctx, "u1", sang("2024-01-10"))
	assert.ErrorIs(t, err, donation.ErrInvalidDonation)
}

func TestRecordDonation_MilestoneUsesAcceptedCount(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	// Another request lands between the first donation's write and anything that follows it.
	fired := false
	h.bus.Subscribe(dispatcher.EventUserDataUpdated, func(ctx context.Context, e dispatcher.Event) {
		if fired {
			return
		}
		fired = true
		_, err := h.uc.RecordDonation(ctx, "u1", sang("2024-05-01"))
		assert.NoError(t, err)
	})

	_, err := h.uc.RecordDonation(ctx, "u1", sang("2024-01-10"))
	require.NoError(t, err)

	rec, err := h.store.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Donations.TotalCount)
	assert.Equal(t, []string{"donations_1"}, rec.Achievements.Unlocked)
	assert.Equal(t, 2, rec.Achievements.Progress["donations"])

	milestones := 0
	for _, n := range rec.Notifications.List {
		if n.Category == "milestone" {
			milestones++
		}
	}
	assert.Equal(t, 1, milestones)
}

func TestRecordDonation_InvalidDate(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))

	_, err := h.uc.RecordDonation(context.Background(), "u1", sang("10/01/2024"))
	assert.ErrorIs(t, err, donation.ErrInvalidDonation)
}

func TestRecordDonation_CooldownUsesOverflowRule(t *testing.T) {
	h := newHarness(t, at(2024, time.June, 1))
	ctx := context.Background()

	_, err := h.uc.RecordDonation(ctx, "u1", sang("2023-11-30"))
	require.NoError(t, err)

	// Nov 30 + 3 months rolls over to Mar 1 in a leap year.
	_, err = h.uc.RecordDonation(ctx, "u1", sang("2024-02-29"))
	var elig *donation.EligibilityError
	require.True(t, errors.As(err, &elig))
	assert.Equal(t, "2024-03-01", elig.NextAvailableDate)

	_, err = h.uc.RecordDonation(ctx, "u1", sang("2024-03-01"))
	assert.NoError(t, err)
}

func TestRecordDonation_PublishesEvents(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	var got []dispatcher.EventType
	h.bus.Subscribe(dispatcher.EventNewNotification, func(ctx context.Context, e dispatcher.Event) {
		got = append(got, e.Type)
		_, ok := e.Payload.(userdata.Notification)
		assert.True(t, ok)
	})

	_, err := h.uc.RecordDonation(context.Background(), "u1", sang("2024-01-10"))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRedeemCode(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	_, err := h.uc.RedeemCode(ctx, "u1", "bad", sang("2024-01-10"))
	assert.ErrorIs(t, err, donation.ErrInvalidCode)

	acc, err := h.uc.RedeemCode(ctx, "u1", " abc123 ", sang("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, userdata.MethodCode, acc.Donations.List[0].Method)
	assert.Equal(t, "ABC123", acc.Donations.List[0].Code)

	raw, err := h.mr.Get("test:" + kvstore.KeyDonationCodes)
	require.NoError(t, err)
	assert.Contains(t, raw, "ABC123")

	_, err = h.uc.RedeemCode(ctx, "u2", "ABC123", sang("2024-01-10"))
	assert.ErrorIs(t, err, donation.ErrCodeAlreadyUsed)

	// A rejected donation leaves the code unused.
	_, err = h.uc.RedeemCode(ctx, "u1", "XYZ789", sang("2024-02-01"))
	assert.ErrorIs(t, err, donation.ErrEligibilityViolation)
	raw, err = h.mr.Get("test:" + kvstore.KeyDonationCodes)
	require.NoError(t, err)
	assert.NotContains(t, raw, "XYZ789")
}

func TestEligibility(t *testing.T) {
	h := newHarness(t, at(2024, time.January, 10))
	ctx := context.Background()

	res, err := h.uc.Eligibility(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Eligible)
	assert.Nil(t, res.NextAvailableDate)

	_, err = h.uc.RecordDonation(ctx, "u1", sang("2024-01-10"))
	require.NoError(t, err)

	res, err = h.uc.Eligibility(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, "2024-04-10", *res.NextAvailableDate)

	h.clock.Set(time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC))
	res, err = h.uc.Eligibility(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Eligible)
}
