package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"bloodlink/internal/modules/donation"
	"bloodlink/internal/modules/userdata"
	"bloodlink/pkg/lib/clock"
	"bloodlink/pkg/lib/datecalc"
)

type DonationUseCase struct {
	store    userdata.UseCase
	calendar donation.CalendarSync
	notifier donation.Notifier
	ledger   donation.CodeLedger
	cooldown datecalc.Cooldown
	clock    clock.Clock
	log      *slog.Logger

	// codeMu makes check-then-mark of a code atomic. It is always taken before the store lock.
	codeMu sync.Mutex
}

func NewDonationUseCase(
	store userdata.UseCase,
	calendar donation.CalendarSync,
	notifier donation.Notifier,
	ledger donation.CodeLedger,
	cooldown datecalc.Cooldown,
	clk clock.Clock,
	log *slog.Logger,
) *DonationUseCase {
	return &DonationUseCase{
		store:    store,
		calendar: calendar,
		notifier: notifier,
		ledger:   ledger,
		cooldown: cooldown,
		clock:    clk,
		log:      log,
	}
}

func (uc *DonationUseCase) RecordDonation(ctx context.Context, userID string, d userdata.Donation) (*donation.Acceptance, error) {
	op := "DonationUseCase.RecordDonation"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	loc := uc.cooldown.Location
	if d.Date != "" {
		if _, err := datecalc.ParseDate(d.Date, loc); err != nil {
			return nil, fmt.Errorf("%w: date %q", donation.ErrInvalidDonation, d.Date)
		}
	}
	if d.Method == "" {
		d.Method = userdata.MethodForm
	}

	now := uc.clock.Now()
	candidate, ok := d.EffectiveDate(loc)
	if !ok {
		candidate = datecalc.StartOfDay(now, loc)
	}

	var added []userdata.Notification
	rec, err := uc.store.Update(ctx, userID, func(rec *userdata.UserRecord) error {
		section := &rec.Donations

		if len(section.List) > 0 {
			last, ok := section.List[0].EffectiveDate(loc)
			if !ok {
				return fmt.Errorf("%w: latest stored donation has no usable date", donation.ErrInvalidDonation)
			}
			next := uc.cooldown.NextAvailable(last)
			if candidate.Before(next) {
				return &donation.EligibilityError{
					Reason:            donation.ReasonCooldown,
					LastDonationDate:  uc.cooldown.Format(last),
					NextAvailableDate: uc.cooldown.Format(next),
				}
			}
		}

		if d.Timestamp == nil {
			ts := now
			d.Timestamp = &ts
		}
		section.List = append(section.List, d)
		section.TotalCount++
		uc.sortDescending(section.List)
		uc.recompute(rec, now)

		uc.calendar.ApplyDonation(rec, d, candidate, now)
		added = uc.notifier.ApplyDonation(rec, d, candidate, now)
		return nil
	})
	if err != nil {
		var elig *donation.EligibilityError
		if errors.As(err, &elig) {
			log.Info("donation rejected", "lastDonationDate", elig.LastDonationDate, "nextAvailableDate", elig.NextAvailableDate)
		} else {
			log.Error("failed to record donation", "error", err)
		}
		return nil, err
	}
	log.Info("donation recorded", slog.Int("totalCount", rec.Donations.TotalCount), slog.String("method", d.Method))

	uc.notifier.Announce(ctx, userID, added)

	next := uc.cooldown.Format(uc.cooldown.NextAvailable(candidate))
	return &donation.Acceptance{
		Donations:         rec.Donations,
		NextAvailableDate: &next,
	}, nil
}

// sortDescending orders by effective date, newest first. Equal dates keep their order.
func (uc *DonationUseCase) sortDescending(list []userdata.Donation) {
	sort.SliceStable(list, func(i, j int) bool {
		a, _ := list[i].EffectiveDate(uc.cooldown.Location)
		b, _ := list[j].EffectiveDate(uc.cooldown.Location)
		return a.After(b)
	})
}

// recompute refreshes the derived counters of the donations section and mirrors them into the profile.
func (uc *DonationUseCase) recompute(rec *userdata.UserRecord, now time.Time) {
	loc := uc.cooldown.Location
	section := &rec.Donations

	section.LastDonationDate = nil
	if len(section.List) > 0 {
		if last, ok := section.List[0].EffectiveDate(loc); ok {
			s := uc.cooldown.Format(last)
			section.LastDonationDate = &s
		}
	}

	section.TodayCount = 0
	for _, d := range section.List {
		if t, ok := d.EffectiveDate(loc); ok && datecalc.SameDay(t, now, loc) {
			section.TodayCount++
		}
	}

	rec.Profile.DonationCount = section.TotalCount
	rec.Profile.LastDonationDate = section.LastDonationDate
}

// RedeemCode records a donation registered with a one-time code from the donation center.
func (uc *DonationUseCase) RedeemCode(ctx context.Context, userID string, code string, d userdata.Donation) (*donation.Acceptance, error) {
	op := "DonationUseCase.RedeemCode"
	log := uc.log.With(slog.String("op", op), slog.String("userID", userID))

	code = strings.ToUpper(strings.TrimSpace(code))
	if !donation.CodePattern.MatchString(code) {
		return nil, donation.ErrInvalidCode
	}

	uc.codeMu.Lock()
	defer uc.codeMu.Unlock()

	ledger, err := uc.ledger.Load(ctx)
	if err != nil {
		log.Error("failed to load code ledger", "error", err)
		return nil, err
	}
	if _, used := ledger[code]; used {
		log.Info("code already redeemed")
		return nil, donation.ErrCodeAlreadyUsed
	}

	d.Method = userdata.MethodCode
	d.Code = code
	acc, err := uc.RecordDonation(ctx, userID, d)
	if err != nil {
		return nil, err
	}

	ledger[code] = donation.CodeUse{UserID: userID, UsedAt: uc.clock.Now()}
	if err := uc.ledger.Save(ctx, ledger); err != nil {
		log.Error("donation recorded but code ledger not saved", "error", err)
		return nil, err
	}
	log.Info("code redeemed")
	return acc, nil
}

func (uc *DonationUseCase) Eligibility(ctx context.Context, userID string) (*donation.Eligibility, error) {
	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &donation.Eligibility{Eligible: true}
	if len(rec.Donations.List) == 0 {
		return res, nil
	}
	last, ok := rec.Donations.List[0].EffectiveDate(uc.cooldown.Location)
	if !ok {
		return res, nil
	}

	next := uc.cooldown.NextAvailable(last)
	lastStr, nextStr := uc.cooldown.Format(last), uc.cooldown.Format(next)
	res.LastDonationDate = &lastStr
	res.NextAvailableDate = &nextStr
	res.Eligible = !uc.clock.Now().Before(next)
	return res, nil
}

func (uc *DonationUseCase) List(ctx context.Context, userID string) (*userdata.DonationsSection, error) {
	rec, err := uc.store.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &rec.Donations, nil
}
