package jwt_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bloodlink/internal/kvstore/kvtest"
	authrepo "bloodlink/internal/modules/user/auth/repo"
	authusecase "bloodlink/internal/modules/user/auth/usecase"
	userdatacontroller "bloodlink/internal/modules/userdata/controller"
	userdatarepo "bloodlink/internal/modules/userdata/repo"
	userdatausecase "bloodlink/internal/modules/userdata/usecase"
	"bloodlink/pkg/lib/clock"
	libjwt "bloodlink/pkg/lib/jwt"
	appmiddleware "bloodlink/pkg/middleware/jwt"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router http.Handler
	auth   *authusecase.AuthUseCase
	store  *userdatausecase.UserDataUseCase
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	kv, _ := kvtest.NewStore(t)
	log := kvtest.Logger()
	clk := clock.NewFrozen(time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC))

	manager, err := libjwt.NewManager("test-secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	manager.WithClock(clk.Now)

	store := userdatausecase.NewUserDataUseCase(userdatarepo.NewRepo(kv, log), nil, appmiddleware.Session{}, log)
	auth := authusecase.NewAuthUseCase(log, authrepo.NewRepo(kv, log), store, manager, clk)

	r := chi.NewRouter()
	r.With(appmiddleware.NewUserAuth(manager, auth, log)).
		Get("/me/record", userdatacontroller.NewUserDataController(log, store).GetRecord)

	return fixture{router: r, auth: auth, store: store}
}

func (f fixture) get(t *testing.T, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me/record", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec.Code
}

func TestUserAuth_RequiresToken(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.get(t, ""))
	assert.Equal(t, http.StatusUnauthorized, f.get(t, "not-a-token"))
}

func TestUserAuth_RejectsDeletedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, err := f.auth.SignUp(ctx, "anna@example.com", "Anna", "password123")
	require.NoError(t, err)
	tokens, err := f.auth.SignIn(ctx, "anna@example.com", "password123")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, f.get(t, tokens.AccessToken))

	require.NoError(t, f.auth.DeleteAccount(ctx, userID))

	assert.Equal(t, http.StatusUnauthorized, f.get(t, tokens.AccessToken))

	ids, err := f.store.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, userID, "a rejected request must not recreate the record")
}
