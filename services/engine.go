package services

import (
	"math/rand"
	"time"

	"instant-win-system/models"
)

// RandomSource yields uniform floats in [0, 1).
type RandomSource interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// DefaultRandom returns a goroutine-safe source backed by math/rand.
func DefaultRandom() RandomSource { return globalRandom{} }

// DrawOutcome is the pure result of a draw, before allocation.
// IsWin is true only when a regular prize was selected.
type DrawOutcome struct {
	IsWin         bool
	Prize         *models.Prize
	IsConsolation bool
}

// EligiblePrizes filters prizes down to the ones a draw may select at now:
// inside their validity window, with stock left, and not already held when
// duplicates are prevented.
func EligiblePrizes(prizes []models.Prize, heldPrizeIDs []string, preventDuplicates bool, now time.Time) []models.Prize {
	held := make(map[string]struct{}, len(heldPrizeIDs))
	if preventDuplicates {
		for _, id := range heldPrizeIDs {
			held[id] = struct{}{}
		}
	}

	eligible := make([]models.Prize, 0, len(prizes))
	for _, p := range prizes {
		if p.IsConsolation || !p.ValidAt(now) || !p.HasStock() {
			continue
		}
		if _, ok := held[p.ID]; ok {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

// Draw runs the two-stage draw: a win/loss roll against the overall win
// probability, then a weighted pick among eligible prizes.
func Draw(rules *models.CampaignRules, eligible []models.Prize, rng RandomSource, now time.Time) DrawOutcome {
	won := rng.Float64()*100 < rules.OverallWinProbability
	if !won {
		if rules.ConsolationOnLoss {
			return consolationOutcome(rules, now)
		}
		return DrawOutcome{}
	}

	if len(eligible) == 0 {
		return exhaustedOutcome(rules, now)
	}

	prize, ok := SelectWeighted(eligible, rng)
	if !ok {
		return DrawOutcome{}
	}
	return DrawOutcome{IsWin: true, Prize: prize}
}

// SelectWeighted picks one prize with probability proportional to its
// weight. Non-positive weights are never picked; ok is false when the total
// weight is zero.
func SelectWeighted(prizes []models.Prize, rng RandomSource) (*models.Prize, bool) {
	var total float64
	for _, p := range prizes {
		if p.Probability > 0 {
			total += p.Probability
		}
	}
	if total <= 0 {
		return nil, false
	}

	target := rng.Float64() * total
	var cumulative float64
	last := -1
	for i := range prizes {
		if prizes[i].Probability <= 0 {
			continue
		}
		last = i
		cumulative += prizes[i].Probability
		if target < cumulative {
			p := prizes[i]
			return &p, true
		}
	}

	// float rounding can leave target == total
	p := prizes[last]
	return &p, true
}

// exhaustedOutcome resolves a won draw that found no regular prize.
func exhaustedOutcome(rules *models.CampaignRules, now time.Time) DrawOutcome {
	if rules.OutOfStockBehavior == models.OutOfStockLose {
		return DrawOutcome{}
	}
	return consolationOutcome(rules, now)
}

func consolationOutcome(rules *models.CampaignRules, now time.Time) DrawOutcome {
	cp := rules.ConsolationPrize
	if cp == nil || !cp.ValidAt(now) || !cp.HasStock() {
		return DrawOutcome{}
	}
	p := *cp
	return DrawOutcome{Prize: &p, IsConsolation: true}
}
