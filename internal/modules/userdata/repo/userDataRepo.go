package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"bloodlink/internal/kvstore"
	"bloodlink/internal/modules/userdata"
)

// repo keeps every user under the single userData key.
type repo struct {
	store kvstore.Store
	log   *slog.Logger
}

func NewRepo(store kvstore.Store, log *slog.Logger) userdata.Repo {
	return &repo{
		store: store,
		log:   log,
	}
}

func (r *repo) LoadAll(ctx context.Context) (map[string]*userdata.UserRecord, error) {
	op := "UserDataRepo.LoadAll"
	log := r.log.With(slog.String("op", op))

	raw, err := r.store.Get(ctx, kvstore.KeyUserData)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return map[string]*userdata.UserRecord{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	records := map[string]*userdata.UserRecord{}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		// The corrupt blob stays until the next save overwrites it.
		log.Warn("stored user data is malformed, starting from an empty mapping", "error", err)
		return map[string]*userdata.UserRecord{}, nil
	}

	for id, rec := range records {
		if rec == nil {
			delete(records, id)
			continue
		}
		userdata.Upgrade(rec)
	}
	return records, nil
}

func (r *repo) SaveAll(ctx context.Context, records map[string]*userdata.UserRecord) error {
	op := "UserDataRepo.SaveAll"
	log := r.log.With(slog.String("op", op))

	val, err := json.Marshal(records)
	if err != nil {
		log.Error("failed to marshal user data", "error", err)
		return fmt.Errorf("%s: %w", op, userdata.ErrInternal)
	}

	if err := r.store.Set(ctx, kvstore.KeyUserData, string(val)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Debug("user data saved", slog.Int("users", len(records)))
	return nil
}
