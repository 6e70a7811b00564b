package auth

import (
	"context"
	"net/http"

	gouser "bloodlink/internal/modules/user"
)

// Tokens is what a successful sign-in or refresh hands to the client.
type Tokens struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

type Controller interface {
	SignUp(w http.ResponseWriter, r *http.Request)
	SignIn(w http.ResponseWriter, r *http.Request)
	RefreshToken(w http.ResponseWriter, r *http.Request)
	DeleteAccount(w http.ResponseWriter, r *http.Request)
}

type UseCase interface {
	SignUp(ctx context.Context, email, name, password string) (userID string, err error)
	SignIn(ctx context.Context, email, password string) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	DeleteAccount(ctx context.Context, userID string) error
	AccountExists(ctx context.Context, userID string) (bool, error)
}

// Repo persists the credential list.
type Repo interface {
	LoadCredentials(ctx context.Context) ([]gouser.Credential, error)
	SaveCredentials(ctx context.Context, creds []gouser.Credential) error
}
