package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"bloodlink/internal/kvstore"
	"bloodlink/internal/modules/donation"
)

// codeLedger keeps the redeemed codes under the donationCodes key.
type codeLedger struct {
	store kvstore.Store
	log   *slog.Logger
}

func NewCodeLedger(store kvstore.Store, log *slog.Logger) donation.CodeLedger {
	return &codeLedger{
		store: store,
		log:   log,
	}
}

func (r *codeLedger) Load(ctx context.Context) (map[string]donation.CodeUse, error) {
	op := "CodeLedger.Load"
	log := r.log.With(slog.String("op", op))

	raw, err := r.store.Get(ctx, kvstore.KeyDonationCodes)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return map[string]donation.CodeUse{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ledger := map[string]donation.CodeUse{}
	if err := json.Unmarshal([]byte(raw), &ledger); err != nil {
		log.Warn("stored code ledger is malformed, starting from an empty ledger", "error", err)
		return map[string]donation.CodeUse{}, nil
	}
	return ledger, nil
}

func (r *codeLedger) Save(ctx context.Context, ledger map[string]donation.CodeUse) error {
	op := "CodeLedger.Save"

	val, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.store.Set(ctx, kvstore.KeyDonationCodes, string(val)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
