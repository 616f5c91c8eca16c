package services

import (
	"context"
	"sort"
	"time"

	"instant-win-system/models"
	"instant-win-system/store"

	"github.com/rs/zerolog/log"
)

// DrawService runs participations: it consumes chances from the ledger,
// draws and allocates prizes, one transaction per consumed chance.
type DrawService struct {
	base
	allocator *Allocator
	rng       RandomSource
	maxBatch  int
}

func NewDrawService(st store.Store, opts Options) *DrawService {
	opts = opts.withDefaults()
	return &DrawService{
		base:      newBase(st, opts),
		allocator: NewAllocator(),
		rng:       opts.Random,
		maxBatch:  opts.MaxBatchDraws,
	}
}

// ChanceStatus reports the user's ledger for the campaign.
func (s *DrawService) ChanceStatus(ctx context.Context, rules *models.CampaignRules, userID string) (*ChanceStatus, error) {
	if rules == nil {
		return nil, ErrCampaignMissing
	}
	if userID == "" {
		return nil, ErrInvalidIdentity
	}

	var status *ChanceStatus
	err := s.tx.run(ctx, "chances.status", func(tx store.Tx) error {
		l, err := readLedger(tx, rules, userID)
		if err != nil {
			return err
		}
		status = l.status(rules)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Participate consumes one chance, or every available chance up to the batch
// cap when useMultiple is set, and returns one record per consumed chance.
//
// Each chance is its own transaction. If a later chance of a batch is refused
// by the ledger (a concurrent call spent it) the records committed so far are
// returned without error. On context cancellation the committed records are
// returned together with the context error.
func (s *DrawService) Participate(ctx context.Context, rules *models.CampaignRules, userID string, useMultiple bool) ([]models.ParticipationRecord, error) {
	if rules == nil {
		return nil, ErrCampaignMissing
	}
	if userID == "" {
		return nil, ErrInvalidIdentity
	}

	now := s.now()
	if !rules.OpenAt(now) {
		return nil, ErrCampaignClosed
	}

	count, err := s.precheck(ctx, rules, userID, now)
	if err != nil {
		return nil, err
	}
	if !useMultiple {
		count = 1
	}
	if count > s.maxBatch {
		count = s.maxBatch
	}

	records := make([]models.ParticipationRecord, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		rec, err := s.drawOnce(ctx, rules, userID, i == 0)
		if err != nil {
			if i > 0 && KindOf(err) == KindBusinessRule {
				log.Info().Str("campaign_id", rules.CampaignID).Str("user_id", userID).Err(err).
					Int("drawn", i).Msg("[Draw] batch stopped early")
				break
			}
			return records, err
		}
		s.metrics.recordDraw(rec)
		records = append(records, *rec)
	}

	log.Info().Str("campaign_id", rules.CampaignID).Str("user_id", userID).
		Int("draws", len(records)).Msg("🎰 [Draw] participation completed")
	return records, nil
}

// precheck validates the ledger and inventory gates and returns how many
// chances are available. It writes nothing but the override row seed.
func (s *DrawService) precheck(ctx context.Context, rules *models.CampaignRules, userID string, now time.Time) (int, error) {
	var available int
	err := s.tx.run(ctx, "participate.check", func(tx store.Tx) error {
		l, err := readLedger(tx, rules, userID)
		if err != nil {
			return err
		}
		if err := l.admit(rules, now, true); err != nil {
			return err
		}
		available = l.available

		if rules.OutOfStockBehavior == models.OutOfStockPreventParticipation {
			live, err := tx.ListPrizes(rules.CampaignID)
			if err != nil {
				return err
			}
			if !anyInStock(live, now) {
				return ErrOutOfStock
			}
		}
		return nil
	})
	return available, err
}

func (s *DrawService) drawOnce(ctx context.Context, rules *models.CampaignRules, userID string, enforceCooldown bool) (*models.ParticipationRecord, error) {
	var rec *models.ParticipationRecord
	var lost int
	err := s.tx.run(ctx, "participate.draw", func(tx store.Tx) error {
		rec, lost = nil, 0
		now := s.now()

		l, err := readLedger(tx, rules, userID)
		if err != nil {
			return err
		}
		if err := l.admit(rules, now, enforceCooldown); err != nil {
			return err
		}

		live, err := tx.ListPrizes(rules.CampaignID)
		if err != nil {
			return err
		}
		var held []string
		if rules.PreventDuplicatePrizes {
			if held, err = tx.HeldPrizeIDs(rules.CampaignID, userID); err != nil {
				return err
			}
		}

		eligible := EligiblePrizes(withLiveStock(rules.Prizes, live), held, rules.PreventDuplicatePrizes, now)
		outcome := Draw(rules, eligible, s.rng, now)
		rec, lost, err = s.allocator.Settle(tx, rules, userID, outcome, eligible, s.rng, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.lostRaces(rules.CampaignID, lost)
	return rec, nil
}

// withLiveStock overlays the live inventory counters on the snapshot's prize
// definitions. Prizes missing from the live list are dropped.
func withLiveStock(defs, live []models.Prize) []models.Prize {
	byID := make(map[string]models.Prize, len(live))
	for _, p := range live {
		byID[p.ID] = p
	}
	out := make([]models.Prize, 0, len(defs))
	for _, p := range defs {
		l, ok := byID[p.ID]
		if !ok {
			continue
		}
		p.Stock = l.Stock
		p.UnlimitedStock = l.UnlimitedStock
		p.WinnersCount = l.WinnersCount
		out = append(out, p)
	}
	return out
}

func anyInStock(prizes []models.Prize, now time.Time) bool {
	for _, p := range prizes {
		if !p.IsConsolation && p.ValidAt(now) && p.HasStock() {
			return true
		}
	}
	return false
}

// DrawSummary groups the records of one participation call for display.
type DrawSummary struct {
	Wins         []models.ParticipationRecord `json:"wins"`
	Consolations []models.ParticipationRecord `json:"consolations"`
	Losses       int                          `json:"losses"`
}

// SummarizeResults groups records into wins (ordered by prize rank),
// consolation prizes and a loss count.
func SummarizeResults(records []models.ParticipationRecord) DrawSummary {
	summary := DrawSummary{
		Wins:         []models.ParticipationRecord{},
		Consolations: []models.ParticipationRecord{},
	}
	for _, r := range records {
		switch {
		case r.IsConsolationPrize:
			summary.Consolations = append(summary.Consolations, r)
		case r.IsWin && r.PrizeSnapshot != nil:
			summary.Wins = append(summary.Wins, r)
		default:
			summary.Losses++
		}
	}
	sort.SliceStable(summary.Wins, func(i, j int) bool {
		return summary.Wins[i].PrizeSnapshot.Rank < summary.Wins[j].PrizeSnapshot.Rank
	})
	return summary
}
