package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	gouser "bloodlink/internal/modules/user"
	"bloodlink/internal/modules/user/auth"
	"bloodlink/internal/modules/userdata"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/jwt"
)

type AuthUseCase struct {
	log   *slog.Logger
	rp    auth.Repo
	store userdata.UseCase
	jwt   *jwt.Manager
	clock clock.Clock

	// mu serializes credential list read-modify-write so emails stay unique.
	mu sync.Mutex
}

func NewAuthUseCase(log *slog.Logger, rp auth.Repo, store userdata.UseCase, manager *jwt.Manager, clk clock.Clock) *AuthUseCase {
	return &AuthUseCase{
		log:   log,
		rp:    rp,
		store: store,
		jwt:   manager,
		clock: clk,
	}
}

func (uc *AuthUseCase) SignUp(ctx context.Context, email, name, password string) (string, error) {
	op := "AuthUseCase.SignUp"
	log := uc.log.With(slog.String("op", op))

	email = gouser.NormalizeEmail(email)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash password", "error", err)
		return "", gouser.ErrInternal
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	creds, err := uc.rp.LoadCredentials(ctx)
	if err != nil {
		log.Error("failed to load credentials", "error", err)
		return "", err
	}
	for _, c := range creds {
		if c.Email == email {
			return "", gouser.ErrEmailExists
		}
	}

	userID := uuid.NewString()
	creds = append(creds, gouser.Credential{
		UserID:       userID,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    uc.clock.Now(),
	})
	if err := uc.rp.SaveCredentials(ctx, creds); err != nil {
		log.Error("failed to save credentials", "error", err)
		return "", err
	}

	_, err = uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		rec.Profile.Email = email
		rec.Profile.Name = strings.TrimSpace(name)
		return nil
	})
	if err != nil {
		log.Error("account created but profile not seeded", "userID", userID, "error", err)
		return "", err
	}

	log.Info("user signed up", slog.String("userID", userID))
	return userID, nil
}

func (uc *AuthUseCase) SignIn(ctx context.Context, email, password string) (*auth.Tokens, error) {
	op := "AuthUseCase.SignIn"
	log := uc.log.With(slog.String("op", op))

	cred, err := uc.findByEmail(ctx, gouser.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gouser.ErrUserNotFound) {
			return nil, gouser.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, gouser.ErrInvalidCredentials
	}

	tokens, err := uc.issue(cred.UserID)
	if err != nil {
		log.Error("failed to issue tokens", "error", err)
		return nil, gouser.ErrInternal
	}
	log.Info("user signed in", slog.String("userID", cred.UserID))
	return tokens, nil
}

// Refresh exchanges a valid refresh token for a new pair. The old refresh token is not revoked.
func (uc *AuthUseCase) Refresh(ctx context.Context, refreshToken string) (*auth.Tokens, error) {
	op := "AuthUseCase.Refresh"
	log := uc.log.With(slog.String("op", op))

	if refreshToken == "" {
		return nil, gouser.ErrNoRefreshToken
	}

	claims, err := uc.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, gouser.ErrExpiredToken
		}
		return nil, gouser.ErrInvalidToken
	}

	if _, err := uc.findByID(ctx, claims.UserID); err != nil {
		return nil, err
	}

	tokens, err := uc.issue(claims.UserID)
	if err != nil {
		log.Error("failed to issue tokens", "error", err)
		return nil, gouser.ErrInternal
	}
	return tokens, nil
}

func (uc *AuthUseCase) DeleteAccount(ctx context.Context, userID string) error {
	op := "AuthUseCase.DeleteAccount"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	uc.mu.Lock()
	creds, err := uc.rp.LoadCredentials(ctx)
	if err != nil {
		uc.mu.Unlock()
		return err
	}
	kept := creds[:0]
	found := false
	for _, c := range creds {
		if c.UserID == userID {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if found {
		err = uc.rp.SaveCredentials(ctx, kept)
	}
	uc.mu.Unlock()

	if !found {
		return gouser.ErrUserNotFound
	}
	if err != nil {
		log.Error("failed to save credentials", "error", err)
		return err
	}

	if err := uc.store.DeleteRecord(ctx, userID); err != nil {
		log.Error("credentials removed but record not deleted", "error", err)
		return err
	}
	log.Info("account deleted")
	return nil
}

// AccountExists reports whether userID still has credentials. Tokens outlive DeleteAccount.
func (uc *AuthUseCase) AccountExists(ctx context.Context, userID string) (bool, error) {
	_, err := uc.findByID(ctx, userID)
	if errors.Is(err, gouser.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (uc *AuthUseCase) issue(userID string) (*auth.Tokens, error) {
	access, err := uc.jwt.GenerateAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := uc.jwt.GenerateRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &auth.Tokens{UserID: userID, AccessToken: access, RefreshToken: refresh}, nil
}

func (uc *AuthUseCase) findByEmail(ctx context.Context, email string) (*gouser.Credential, error) {
	return uc.find(ctx, func(c gouser.Credential) bool { return c.Email == email })
}

func (uc *AuthUseCase) findByID(ctx context.Context, userID string) (*gouser.Credential, error) {
	return uc.find(ctx, func(c gouser.Credential) bool { return c.UserID == userID })
}

func (uc *AuthUseCase) find(ctx context.Context, match func(gouser.Credential) bool) (*gouser.Credential, error) {
	creds, err := uc.rp.LoadCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	for i := range creds {
		if match(creds[i]) {
			return &creds[i], nil
		}
	}
	return nil, gouser.ErrUserNotFound
}
