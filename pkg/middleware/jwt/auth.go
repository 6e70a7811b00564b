package jwt

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"bloodlink/pkg/lib/jwt"
	resp "bloodlink/pkg/lib/response"
)

type ctxKey string

const userIDKey ctxKey = "userId"

var ErrAccountGone = errors.New("account no longer exists")

// AccountChecker tells whether the subject of a still valid token has an account.
type AccountChecker interface {
	AccountExists(ctx context.Context, userID string) (bool, error)
}

// NewUserAuth rejects requests without a valid access token or whose account was deleted.
// accounts may be nil, then only the token is checked.
func NewUserAuth(manager *jwt.Manager, accounts AccountChecker, log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log = log.With(
			slog.String("op", "middlewareAuth"),
		)

		log.Info("auth middleware enabled")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := jwt.ExtractJWT(r)
			if err != nil {
				handleAuthError(w, r, log, err)
				return
			}

			claims, err := manager.ValidateAccessToken(tokenStr)
			if err != nil {
				handleAuthError(w, r, log, err)
				return
			}

			if accounts != nil {
				exists, err := accounts.AccountExists(r.Context(), claims.UserID)
				if err != nil {
					log.Error("failed to check account", slog.String("userID", claims.UserID), slog.String("error", err.Error()))
					resp.SendError(w, r, http.StatusInternalServerError, "internal error")
					return
				}
				if !exists {
					handleAuthError(w, r, log, ErrAccountGone)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// Session resolves the current user from a request context populated by NewUserAuth.
type Session struct{}

func (Session) CurrentUserID(ctx context.Context) (string, bool) {
	return UserIDFromContext(ctx)
}

func handleAuthError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Warn("auth error", slog.String("error", err.Error()))
	resp.SendError(w, r, http.StatusUnauthorized, err.Error())
}
