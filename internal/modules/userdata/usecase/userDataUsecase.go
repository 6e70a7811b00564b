package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"bloodlink/internal/modules/notification/dispatcher"
	"bloodlink/internal/modules/userdata"
)

// UserDataUseCase serializes every read-modify-write of the shared root mapping
// behind one mutex. Events are dispatched after the lock is released so
// subscribers may read the store again.
type UserDataUseCase struct {
	mu        sync.Mutex
	repo      userdata.Repo
	publisher userdata.Publisher
	session   userdata.SessionResolver
	log       *slog.Logger
}

func NewUserDataUseCase(repo userdata.Repo, publisher userdata.Publisher, session userdata.SessionResolver, log *slog.Logger) *UserDataUseCase {
	return &UserDataUseCase{
		repo:      repo,
		publisher: publisher,
		session:   session,
		log:       log,
	}
}

func (uc *UserDataUseCase) GetRecord(ctx context.Context, userID string) (*userdata.UserRecord, error) {
	op := "UserDataUseCase.GetRecord"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	uc.mu.Lock()
	defer uc.mu.Unlock()

	records, err := uc.repo.LoadAll(ctx)
	if err != nil {
		log.Error("failed to load user data", "error", err)
		return nil, err
	}
	if rec, ok := records[userID]; ok {
		return rec, nil
	}

	rec := userdata.NewRecord()
	records[userID] = rec
	if err := uc.repo.SaveAll(ctx, records); err != nil {
		log.Error("failed to persist default record", "error", err)
		return nil, err
	}
	log.Info("default user record created")
	return rec, nil
}

func (uc *UserDataUseCase) SaveRecord(ctx context.Context, userID string, rec *userdata.UserRecord) error {
	op := "UserDataUseCase.SaveRecord"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	if rec == nil {
		return userdata.ErrNilRecord
	}
	if err := rec.Donations.CheckDates(); err != nil {
		log.Warn("record rejected", "error", err)
		return err
	}
	userdata.Upgrade(rec)

	uc.mu.Lock()
	records, err := uc.repo.LoadAll(ctx)
	if err == nil {
		records[userID] = rec
		err = uc.repo.SaveAll(ctx, records)
	}
	uc.mu.Unlock()

	if err != nil {
		log.Error("failed to save user record", "error", err)
		return err
	}
	uc.publish(ctx, dispatcher.EventUserDataUpdated, userID, rec)
	return nil
}

func (uc *UserDataUseCase) DeleteRecord(ctx context.Context, userID string) error {
	op := "UserDataUseCase.DeleteRecord"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	uc.mu.Lock()
	records, err := uc.repo.LoadAll(ctx)
	if err == nil {
		delete(records, userID)
		err = uc.repo.SaveAll(ctx, records)
	}
	uc.mu.Unlock()

	if err != nil {
		log.Error("failed to delete user record", "error", err)
		return err
	}
	log.Info("user record deleted")
	uc.publish(ctx, dispatcher.EventUserDataDeleted, userID, nil)
	return nil
}

// Update loads the record of userID (creating it when missing), applies fn and saves
// the result in one critical section. Nothing is written when fn returns an error.
func (uc *UserDataUseCase) Update(ctx context.Context, userID string, fn func(rec *userdata.UserRecord) error) (*userdata.UserRecord, error) {
	op := "UserDataUseCase.Update"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	uc.mu.Lock()
	records, err := uc.repo.LoadAll(ctx)
	if err != nil {
		uc.mu.Unlock()
		log.Error("failed to load user data", "error", err)
		return nil, err
	}
	rec, ok := records[userID]
	if !ok {
		rec = userdata.NewRecord()
		records[userID] = rec
	}
	if err := fn(rec); err != nil {
		uc.mu.Unlock()
		return nil, err
	}
	userdata.Upgrade(rec)
	err = uc.repo.SaveAll(ctx, records)
	uc.mu.Unlock()

	if err != nil {
		log.Error("failed to save user data", "error", err)
		return nil, err
	}
	uc.publish(ctx, dispatcher.EventUserDataUpdated, userID, rec)
	return rec, nil
}

func (uc *UserDataUseCase) UpdateSection(ctx context.Context, userID string, section string, partial map[string]any) error {
	op := "UserDataUseCase.UpdateSection"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID), slog.String("section", section))

	_, err := uc.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		switch section {
		case userdata.SectionProfile:
			return mergeSection(&rec.Profile, partial)
		case userdata.SectionDonations:
			if err := mergeSection(&rec.Donations, partial); err != nil {
				return err
			}
			return rec.Donations.CheckDates()
		case userdata.SectionNotifications:
			return mergeSection(&rec.Notifications, partial)
		case userdata.SectionCalendar:
			return mergeSection(&rec.Calendar, partial)
		case userdata.SectionChats:
			return mergeSection(&rec.Chats, partial)
		case userdata.SectionAchievements:
			return mergeSection(&rec.Achievements, partial)
		case userdata.SectionPreferences:
			return mergeSection(&rec.Preferences, partial)
		default:
			return userdata.ErrUnknownSection
		}
	})
	if err != nil {
		log.Warn("section update rejected", "error", err)
		return err
	}
	return nil
}

// mergeSection overwrites the top-level fields of dst named in partial and keeps the rest.
func mergeSection[T any](dst *T, partial map[string]any) error {
	current, err := json.Marshal(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", userdata.ErrInternal, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(current, &fields); err != nil {
		return fmt.Errorf("%w: %v", userdata.ErrInternal, err)
	}
	for k, v := range partial {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", userdata.ErrInvalidSection, err)
	}
	var next T
	if err := json.Unmarshal(merged, &next); err != nil {
		return fmt.Errorf("%w: %v", userdata.ErrInvalidSection, err)
	}
	*dst = next
	return nil
}

func (uc *UserDataUseCase) GetCurrentUserRecord(ctx context.Context) (*userdata.UserRecord, error) {
	userID, err := uc.currentUser(ctx, "UserDataUseCase.GetCurrentUserRecord")
	if err != nil {
		return nil, err
	}
	return uc.GetRecord(ctx, userID)
}

func (uc *UserDataUseCase) SaveCurrentUserRecord(ctx context.Context, rec *userdata.UserRecord) error {
	userID, err := uc.currentUser(ctx, "UserDataUseCase.SaveCurrentUserRecord")
	if err != nil {
		return err
	}
	return uc.SaveRecord(ctx, userID, rec)
}

func (uc *UserDataUseCase) currentUser(ctx context.Context, op string) (string, error) {
	if uc.session != nil {
		if userID, ok := uc.session.CurrentUserID(ctx); ok && userID != "" {
			return userID, nil
		}
	}
	uc.log.Warn("no authenticated user in context", slog.String("op", op))
	return "", userdata.ErrNotAuthenticated
}

func (uc *UserDataUseCase) ListUserIDs(ctx context.Context) ([]string, error) {
	uc.mu.Lock()
	records, err := uc.repo.LoadAll(ctx)
	uc.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (uc *UserDataUseCase) publish(ctx context.Context, eventType dispatcher.EventType, userID string, payload interface{}) {
	if uc.publisher == nil {
		return
	}
	uc.publisher.Dispatch(ctx, dispatcher.Event{Type: eventType, UserID: userID, Payload: payload})
}
