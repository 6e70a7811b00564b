package usecase

import (
	"context"
	"log/slog"
	"strings"

	gouser "bloodlink/internal/modules/user"
	"bloodlink/internal/modules/user/profile"
	"bloodlink/internal/modules/userdata"
)

type ProfileUseCase struct {
	log   *slog.Logger
	store userdata.UseCase
}

func NewProfileUseCase(log *slog.Logger, store userdata.UseCase) *ProfileUseCase {
	return &ProfileUseCase{
		log:   log,
		store: store,
	}
}

// UpdateProfile changes the display fields of the profile. The sign-in email lives in the
// credential list and is not touched.
func (uc *ProfileUseCase) UpdateProfile(ctx context.Context, userID string, req *profile.UpdateProfileRequest) (*userdata.Profile, error) {
	op := "ProfileUseCase.UpdateProfile"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	partial := map[string]any{}
	if req.Name != nil {
		partial["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		partial["email"] = gouser.NormalizeEmail(*req.Email)
	}
	if req.Groups != nil {
		partial["groups"] = *req.Groups
	}

	if len(partial) > 0 {
		if err := uc.store.UpdateSection(ctx, userID, userdata.SectionProfile, partial); err != nil {
			log.Error("failed to update profile", "error", err)
			return nil, err
		}
	}

	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	log.Info("profile updated", slog.Int("fields", len(partial)))
	return &rec.Profile, nil
}

func (uc *ProfileUseCase) UpdatePreferences(ctx context.Context, userID string, req *profile.UpdatePreferencesRequest) (*userdata.Preferences, error) {
	op := "ProfileUseCase.UpdatePreferences"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	partial := map[string]any{}
	if req.Language != nil {
		partial["language"] = *req.Language
	}
	if req.Theme != nil {
		partial["theme"] = *req.Theme
	}
	if req.NotificationsEnabled != nil {
		partial["notificationsEnabled"] = *req.NotificationsEnabled
	}

	if len(partial) > 0 {
		if err := uc.store.UpdateSection(ctx, userID, userdata.SectionPreferences, partial); err != nil {
			log.Error("failed to update preferences", "error", err)
			return nil, err
		}
	}

	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &rec.Preferences, nil
}

func (uc *ProfileUseCase) RegisterDeviceToken(ctx context.Context, userID string, token string) error {
	op := "ProfileUseCase.RegisterDeviceToken"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		for _, t := range rec.Preferences.PushTokens {
			if t == token {
				return nil
			}
		}
		rec.Preferences.PushTokens = append(rec.Preferences.PushTokens, token)
		return nil
	})
	if err != nil {
		log.Error("failed to register device token", "error", err)
		return err
	}
	log.Info("device token registered")
	return nil
}

func (uc *ProfileUseCase) UnregisterDeviceToken(ctx context.Context, userID string, token string) error {
	op := "ProfileUseCase.UnregisterDeviceToken"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	_, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		kept := rec.Preferences.PushTokens[:0]
		for _, t := range rec.Preferences.PushTokens {
			if t != token {
				kept = append(kept, t)
			}
		}
		rec.Preferences.PushTokens = kept
		return nil
	})
	if err != nil {
		log.Error("failed to unregister device token", "error", err)
		return err
	}
	log.Info("device token unregistered")
	return nil
}
