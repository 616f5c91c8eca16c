package services

import (
	"errors"
	"fmt"
	"time"

	"instant-win-system/models"
	"instant-win-system/store"

	"github.com/google/uuid"
)

// Allocator turns draw outcomes into allocated inventory and persisted
// records. It only runs inside a store transaction.
type Allocator struct{}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate locks the prize row, re-checks its stock and records one more
// winner. It returns ErrOutOfStock when the unit is no longer available.
func (a *Allocator) Allocate(tx store.Tx, prizeID, userID string, now time.Time) (*models.Prize, string, error) {
	prize, err := tx.LockPrize(prizeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrOutOfStock
	}
	if err != nil {
		return nil, "", err
	}
	if !prize.HasStock() {
		return nil, "", ErrOutOfStock
	}

	variant, err := prize.Variant()
	if err != nil {
		return nil, "", err
	}

	var assignedURL string
	switch variant.(type) {
	case *models.URLDetails:
		u, err := tx.TakePrizeURL(prize.ID, userID, now)
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrOutOfStock
		}
		if err != nil {
			return nil, "", err
		}
		assignedURL = u.URL
	case *models.ECouponDetails, *models.MailDeliveryDetails:
	default:
		return nil, "", fmt.Errorf("prize %s: %w", prize.ID, models.ErrUnknownPrizeType)
	}

	if !prize.UnlimitedStock {
		prize.Stock--
	}
	prize.WinnersCount++
	if err := tx.UpdatePrizeCounters(prize.ID, prize.Stock, prize.WinnersCount); err != nil {
		return nil, "", err
	}
	return prize, assignedURL, nil
}

// Settle allocates the prize of outcome and writes the participation record.
// A selected prize that sold out since the snapshot is replaced by a new
// weighted pick among the remaining eligible prizes; when none is left the
// out-of-stock behavior applies. The returned count is the number of picks
// lost that way.
func (a *Allocator) Settle(tx store.Tx, rules *models.CampaignRules, userID string, outcome DrawOutcome, eligible []models.Prize, rng RandomSource, now time.Time) (*models.ParticipationRecord, int, error) {
	rec := &models.ParticipationRecord{
		ID:             uuid.NewString(),
		CampaignID:     rules.CampaignID,
		UserID:         userID,
		PrizeID:        models.LossPrizeID,
		ParticipatedAt: now,
	}

	lost := 0
	if outcome.IsWin && outcome.Prize != nil {
		remaining := append([]models.Prize(nil), eligible...)
		candidate := outcome.Prize
		won := false
		for candidate != nil {
			prize, url, err := a.Allocate(tx, candidate.ID, userID, now)
			if err == nil {
				rec.PrizeID = prize.ID
				rec.IsWin = true
				rec.PrizeSnapshot = prize
				rec.AssignedURL = url
				won = true
				break
			}
			if !errors.Is(err, ErrOutOfStock) {
				return nil, 0, err
			}

			lost++
			remaining = withoutPrize(remaining, candidate.ID)
			candidate, _ = SelectWeighted(remaining, rng)
		}
		if !won {
			outcome = exhaustedOutcome(rules, now)
		}
	}

	if outcome.IsConsolation && outcome.Prize != nil {
		prize, url, err := a.Allocate(tx, outcome.Prize.ID, userID, now)
		switch {
		case err == nil:
			rec.PrizeID = prize.ID
			rec.IsConsolationPrize = true
			rec.PrizeSnapshot = prize
			rec.AssignedURL = url
		case !errors.Is(err, ErrOutOfStock):
			return nil, 0, err
		}
	}

	if err := tx.CreateRecord(rec); err != nil {
		return nil, 0, err
	}
	return rec, lost, nil
}

func withoutPrize(prizes []models.Prize, id string) []models.Prize {
	out := prizes[:0]
	for _, p := range prizes {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
