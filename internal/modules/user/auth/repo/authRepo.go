package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"bloodlink/internal/kvstore"
	gouser "bloodlink/internal/modules/user"
	"bloodlink/internal/modules/user/auth"
)

type repo struct {
	store kvstore.Store
	log   *slog.Logger
}

func NewRepo(store kvstore.Store, log *slog.Logger) auth.Repo {
	return &repo{
		store: store,
		log:   log,
	}
}

func (r *repo) LoadCredentials(ctx context.Context) ([]gouser.Credential, error) {
	op := "AuthRepo.LoadCredentials"
	log := r.log.With(slog.String("op", op))

	raw, err := r.store.Get(ctx, kvstore.KeyCredentials)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return []gouser.Credential{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var creds []gouser.Credential
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		log.Warn("stored credentials are malformed, starting from an empty list", "error", err)
		return []gouser.Credential{}, nil
	}
	return creds, nil
}

func (r *repo) SaveCredentials(ctx context.Context, creds []gouser.Credential) error {
	op := "AuthRepo.SaveCredentials"

	val, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("%s: %w", op, gouser.ErrInternal)
	}
	if err := r.store.Set(ctx, kvstore.KeyCredentials, string(val)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
