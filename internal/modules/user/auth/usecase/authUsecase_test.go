package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"bloodlink/internal/kvstore/kvtest"
	gouser "bloodlink/internal/modules/user"
	"bloodlink/internal/modules/user/auth/repo"
	userdatarepo "bloodlink/internal/modules/userdata/repo"
	userdatausecase "bloodlink/internal/modules/userdata/usecase"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(t *testing.T) (*AuthUseCase, *userdatausecase.UserDataUseCase, *clock.Frozen) {
	t.Helper()
	kv, _ := kvtest.NewStore(t)
	log := kvtest.Logger()
	clk := clock.NewFrozen(time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC))

	manager, err := jwt.NewManager("test-secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	manager.WithClock(clk.Now)

	store := userdatausecase.NewUserDataUseCase(userdatarepo.NewRepo(kv, log), nil, nil, log)
	return NewAuthUseCase(log, repo.NewRepo(kv, log), store, manager, clk), store, clk
}

func TestSignUpSeedsProfile(t *testing.T) {
	uc, store, _ := newAuth(t)
	ctx := context.Background()

	userID, err := uc.SignUp(ctx, "  Marta@Example.com ", "Marta", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, userID)

	rec, err := store.GetRecord(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "marta@example.com", rec.Profile.Email)
	assert.Equal(t, "Marta", rec.Profile.Name)
	assert.Equal(t, 0, rec.Donations.TotalCount)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	uc, _, _ := newAuth(t)
	ctx := context.Background()

	_, err := uc.SignUp(ctx, "a@example.com", "A", "password123")
	require.NoError(t, err)

	_, err = uc.SignUp(ctx, "A@EXAMPLE.COM", "B", "password456")
	assert.ErrorIs(t, err, gouser.ErrEmailExists)
}

func TestSignUpConcurrentSameEmail(t *testing.T) {
	uc, _, _ := newAuth(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.SignUp(ctx, "same@example.com", "X", "password123")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, gouser.ErrEmailExists)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestSignInAndRefresh(t *testing.T) {
	uc, _, _ := newAuth(t)
	ctx := context.Background()

	userID, err := uc.SignUp(ctx, "a@example.com", "A", "password123")
	require.NoError(t, err)

	tokens, err := uc.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, userID, tokens.UserID)

	claims, err := uc.jwt.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	refreshed, err := uc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, refreshed.UserID)
	assert.NotEmpty(t, refreshed.RefreshToken)
}

func TestSignInWrongPassword(t *testing.T) {
	uc, _, _ := newAuth(t)
	ctx := context.Background()

	_, err := uc.SignUp(ctx, "a@example.com", "A", "password123")
	require.NoError(t, err)

	_, err = uc.SignIn(ctx, "a@example.com", "nope-nope")
	assert.ErrorIs(t, err, gouser.ErrInvalidCredentials)

	_, err = uc.SignIn(ctx, "ghost@example.com", "password123")
	assert.ErrorIs(t, err, gouser.ErrInvalidCredentials)
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	uc, _, clk := newAuth(t)
	ctx := context.Background()

	_, err := uc.Refresh(ctx, "")
	assert.ErrorIs(t, err, gouser.ErrNoRefreshToken)

	_, err = uc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, gouser.ErrInvalidToken)

	_, err = uc.SignUp(ctx, "a@example.com", "A", "password123")
	require.NoError(t, err)
	tokens, err := uc.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)

	_, err = uc.Refresh(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, gouser.ErrInvalidToken)

	clk.Set(clk.Now().Add(48 * time.Hour))
	_, err = uc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, gouser.ErrExpiredToken)
}

func TestDeleteAccount(t *testing.T) {
	uc, store, _ := newAuth(t)
	ctx := context.Background()

	userID, err := uc.SignUp(ctx, "a@example.com", "A", "password123")
	require.NoError(t, err)
	tokens, err := uc.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, uc.DeleteAccount(ctx, userID))

	ids, err := store.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, userID)

	_, err = uc.SignIn(ctx, "a@example.com", "password123")
	assert.ErrorIs(t, err, gouser.ErrInvalidCredentials)

	_, err = uc.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, gouser.ErrUserNotFound)

	assert.ErrorIs(t, uc.DeleteAccount(ctx, userID), gouser.ErrUserNotFound)
}
