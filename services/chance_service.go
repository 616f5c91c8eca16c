package services

import (
	"context"

	"instant-win-system/models"
	"instant-win-system/store"

	"github.com/rs/zerolog/log"
)

// ChanceService holds the admin-side adjustments of a user's extra chances.
type ChanceService struct {
	base
}

func NewChanceService(st store.Store, opts Options) *ChanceService {
	opts = opts.withDefaults()
	return &ChanceService{base: newBase(st, opts)}
}

// GrantChances adds n extra chances to the user's ledger.
func (s *ChanceService) GrantChances(ctx context.Context, campaignID, userID string, n int) (*models.ChanceOverride, error) {
	if userID == "" {
		return nil, ErrInvalidIdentity
	}
	if campaignID == "" || n <= 0 {
		return nil, ErrInvalidInput
	}

	o, err := s.adjust(ctx, "chances.grant", campaignID, userID, func(o *models.ChanceOverride) {
		o.ExtraChances += n
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("campaign_id", campaignID).Str("user_id", userID).Int("granted", n).
		Int("extra_chances", o.ExtraChances).Msg("➕ [Chances] extra chances granted")
	return o, nil
}

// ResetChances drops every extra chance of the user. Consumed chances and
// claimed markers are kept, so claimed sources cannot be redeemed again.
func (s *ChanceService) ResetChances(ctx context.Context, campaignID, userID string) (*models.ChanceOverride, error) {
	if userID == "" {
		return nil, ErrInvalidIdentity
	}
	if campaignID == "" {
		return nil, ErrInvalidInput
	}

	o, err := s.adjust(ctx, "chances.reset", campaignID, userID, func(o *models.ChanceOverride) {
		o.ExtraChances = 0
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("campaign_id", campaignID).Str("user_id", userID).Msg("♻️ [Chances] extra chances reset")
	return o, nil
}

func (s *ChanceService) adjust(ctx context.Context, op, campaignID, userID string, mutate func(o *models.ChanceOverride)) (*models.ChanceOverride, error) {
	var out *models.ChanceOverride
	err := s.tx.run(ctx, op, func(tx store.Tx) error {
		o, err := tx.LockChanceOverride(campaignID, userID)
		if err != nil {
			return err
		}
		mutate(o)
		out = o
		return tx.SaveChanceOverride(o)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
