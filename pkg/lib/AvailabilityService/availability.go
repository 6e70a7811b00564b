package AvailabilityService

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"bloodlink/internal/kvstore"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/datecalc"
)

// UserLister yields every user id that has a record.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Reminder emits the "you can donate again" notification when due.
type Reminder interface {
	OnAvailableAgain(ctx context.Context, userID string) (bool, error)
}

// Result summarizes one sweep.
type Result struct {
	Checked int
	Skipped int
	Emitted int
	Failed  int
}

type AvailabilityService struct {
	users    UserLister
	reminder Reminder
	store    kvstore.Store
	cooldown datecalc.Cooldown
	clock    clock.Clock
	log      *slog.Logger

	mu sync.Mutex
}

func NewAvailabilityService(users UserLister, reminder Reminder, store kvstore.Store, cooldown datecalc.Cooldown, clk clock.Clock, log *slog.Logger) *AvailabilityService {
	return &AvailabilityService{
		users:    users,
		reminder: reminder,
		store:    store,
		cooldown: cooldown,
		clock:    clk,
		log:      log,
	}
}

// CheckAvailability runs the reminder for every user not yet checked today.
// A user is marked as checked only when the reminder ran without error.
func (s *AvailabilityService) CheckAvailability(ctx context.Context) (Result, error) {
	op := "AvailabilityService.CheckAvailability"
	log := s.log.With(slog.String("op", op))

	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	today := s.cooldown.Format(s.clock.Now())

	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		log.Error("failed to list users", "error", err)
		return res, err
	}

	checks, err := s.loadChecks(ctx)
	if err != nil {
		log.Error("failed to load availability checks", "error", err)
		return res, err
	}

	next := make(map[string]string, len(ids))
	for _, id := range ids {
		if checks[id] == today {
			next[id] = today
			res.Skipped++
			continue
		}
		if prev, ok := checks[id]; ok {
			next[id] = prev
		}

		emitted, err := s.reminder.OnAvailableAgain(ctx, id)
		if err != nil {
			log.Warn("availability check failed", slog.String("userID", id), "error", err)
			res.Failed++
			continue
		}
		next[id] = today
		res.Checked++
		if emitted {
			res.Emitted++
		}
	}

	if err := s.saveChecks(ctx, next); err != nil {
		log.Error("failed to save availability checks", "error", err)
		return res, err
	}

	log.Info("availability sweep finished",
		slog.Int("checked", res.Checked),
		slog.Int("skipped", res.Skipped),
		slog.Int("emitted", res.Emitted),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// Run is the cron entry point.
func (s *AvailabilityService) Run() {
	if _, err := s.CheckAvailability(context.Background()); err != nil {
		s.log.Error("availability sweep aborted", "error", err)
	}
}

func (s *AvailabilityService) loadChecks(ctx context.Context) (map[string]string, error) {
	raw, err := s.store.Get(ctx, kvstore.KeyAvailabilityChecks)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("load checks: %w", err)
	}
	checks := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &checks); err != nil {
		s.log.Warn("availability checks are malformed, starting over", "error", err)
		return map[string]string{}, nil
	}
	return checks, nil
}

func (s *AvailabilityService) saveChecks(ctx context.Context, checks map[string]string) error {
	val, err := json.Marshal(checks)
	if err != nil {
		return fmt.Errorf("save checks: %w", err)
	}
	return s.store.Set(ctx, kvstore.KeyAvailabilityChecks, string(val))
}
