package usecase

import (
	"context"
	"testing"
	"time"

	"bloodlink/internal/kvstore/kvtest"
	"bloodlink/internal/modules/notification"
	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
	userdatarepo "bloodlink/internal/modules/userdata/repo"
	userdatausecase "bloodlink/internal/modules/userdata/usecase"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/datecalc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	uc    *NotificationUseCase
	store *userdatausecase.UserDataUseCase
	clock *clock.Frozen
	bus   *dispatcher.Bus
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	kv, _ := kvtest.NewStore(t)
	log := kvtest.Logger()
	bus := dispatcher.New(log)
	clk := clock.NewFrozen(now)
	store := userdatausecase.NewUserDataUseCase(userdatarepo.NewRepo(kv, log), bus, nil, log)
	cooldown := datecalc.NewCooldown(3, datecalc.OverflowRollover, time.UTC)
	return &fixture{
		uc:    NewNotificationUseCase(store, bus, cooldown, clk, log),
		store: store,
		clock: clk,
		bus:   bus,
	}
}

func info(title string) userdata.Notification {
	return userdata.Notification{Type: userdata.NotificationInfo, Title: title, Unread: false}
}

func TestAddNotification(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	var published []userdata.Notification
	f.bus.Subscribe(dispatcher.EventNewNotification, func(ctx context.Context, e dispatcher.Event) {
		published = append(published, e.Payload.(userdata.Notification))
	})

	first, err := f.uc.AddNotification(ctx, "u1", info("a"))
	require.NoError(t, err)
	second, err := f.uc.AddNotification(ctx, "u1", info("b"))
	require.NoError(t, err)

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.True(t, second.Unread)
	assert.True(t, now.Equal(second.Timestamp))
	assert.Equal(t, userdata.PriorityMedium, second.Priority)

	list, err := f.uc.GetNotifications(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Title, "newest first")

	limited, err := f.uc.GetNotifications(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.Len(t, published, 2)
	assert.Equal(t, 2, published[1].ID)
}

func TestAddNotification_IDsSkipTrashedOnes(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := f.uc.AddNotification(ctx, "u1", info("a"))
	require.NoError(t, err)
	_, err = f.uc.AddNotification(ctx, "u1", info("b"))
	require.NoError(t, err)
	require.NoError(t, f.uc.Remove(ctx, "u1", 2))

	third, err := f.uc.AddNotification(ctx, "u1", info("c"))
	require.NoError(t, err)
	assert.Equal(t, 3, third.ID)
}

func TestAddNotification_MutedCategory(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	prefs, err := f.uc.UpdatePreferences(ctx, "u1", map[string]bool{userdata.NotificationInfo: false})
	require.NoError(t, err)
	assert.False(t, prefs[userdata.NotificationInfo])
	assert.True(t, prefs[userdata.NotificationReminders])

	n, err := f.uc.AddNotification(ctx, "u1", info("muted"))
	require.NoError(t, err)
	assert.Nil(t, n)

	count, err := f.uc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.uc.UpdatePreferences(ctx, "u1", map[string]bool{"spam": true})
	assert.ErrorIs(t, err, notification.ErrUnknownCategory)
}

func TestMarkAllAsRead_Idempotent(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := f.uc.AddNotification(ctx, "u1", info(title))
		require.NoError(t, err)
	}
	require.NoError(t, f.uc.MarkAsRead(ctx, "u1", 2))
	count, err := f.uc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.uc.MarkAllAsRead(ctx, "u1"))
		count, err := f.uc.UnreadCount(ctx, "u1")
		require.NoError(t, err)
		assert.Zero(t, count)
	}

	assert.ErrorIs(t, f.uc.MarkAsRead(ctx, "u1", 42), notification.ErrNotificationNotFound)
}

func TestTrashAndRestore(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := f.uc.AddNotification(ctx, "u1", info("old"))
	require.NoError(t, err)
	f.clock.Set(time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC))
	_, err = f.uc.AddNotification(ctx, "u1", info("new"))
	require.NoError(t, err)

	require.NoError(t, f.uc.Remove(ctx, "u1", 1))
	assert.ErrorIs(t, f.uc.Remove(ctx, "u1", 1), notification.ErrNotificationNotFound)

	trash, err := f.uc.Trash(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, "old", trash[0].Title)

	require.NoError(t, f.uc.Restore(ctx, "u1", 1))
	list, err := f.uc.GetNotifications(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Title)
	assert.Equal(t, "old", list[1].Title)

	require.NoError(t, f.uc.Remove(ctx, "u1", 2))
	require.NoError(t, f.uc.EmptyTrash(ctx, "u1"))
	trash, err = f.uc.Trash(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, trash)
	assert.ErrorIs(t, f.uc.Restore(ctx, "u1", 2), notification.ErrNotificationNotFound)
}

func TestOnAvailableAgain(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	emitted, err := f.uc.OnAvailableAgain(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, emitted, "no donations yet")

	_, err = f.store.Update(ctx, "u1", func(rec *userdata.UserRecord) error {
		rec.Donations.List = []userdata.Donation{{Date: "2024-01-10", Center: "X", Type: "Sang"}}
		rec.Donations.TotalCount = 1
		return nil
	})
	require.NoError(t, err)

	emitted, err = f.uc.OnAvailableAgain(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, emitted, "cooldown still running")

	f.clock.Set(time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC))
	emitted, err = f.uc.OnAvailableAgain(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, emitted)

	emitted, err = f.uc.OnAvailableAgain(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, emitted, "an unread reminder already exists")

	require.NoError(t, f.uc.MarkAllAsRead(ctx, "u1"))
	emitted, err = f.uc.OnAvailableAgain(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, emitted)

	list, err := f.uc.GetNotifications(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, notification.ReminderTitle, list[0].Title)
	assert.Equal(t, userdata.NotificationReminders, list[0].Type)
}

func TestOnDonationRecorded_MilestoneOnlyOnce(t *testing.T) {
	f := newFixture(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := f.store.Update(ctx, "u1", func(rec *userdata.UserRecord) error {
		rec.Donations.TotalCount = 3
		return nil
	})
	require.NoError(t, err)

	d := userdata.Donation{Date: "2023-01-01", Center: "X", Type: "Sang"}
	require.NoError(t, f.uc.OnDonationRecorded(ctx, "u1", d))
	require.NoError(t, f.uc.OnDonationRecorded(ctx, "u1", d))

	rec, err := f.store.GetRecord(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"donations_3"}, rec.Achievements.Unlocked)

	milestones, thanks := 0, 0
	for _, n := range rec.Notifications.List {
		switch n.Category {
		case "milestone":
			milestones++
			assert.Contains(t, n.Description, "9 vides")
		case "donation":
			thanks++
		}
	}
	assert.Equal(t, 1, milestones)
	assert.Equal(t, 2, thanks)
}

func TestMilestoneFor(t *testing.T) {
	levels := map[int]string{1: "Bronze", 3: "Bronze", 5: "Silver", 10: "Gold", 25: "Platinum", 50: "Diamond"}
	for n := 0; n <= 60; n++ {
		m, ok := notification.MilestoneFor(n)
		level, want := levels[n]
		assert.Equal(t, want, ok, n)
		if ok {
			assert.Equal(t, level, m.Level)
		}
	}
}
