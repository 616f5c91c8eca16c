package services

import (
	"context"
	"errors"
	"fmt"

	"instant-win-system/models"
	"instant-win-system/store"
	"instant-win-system/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CampaignService loads campaign snapshots and applies configuration
// changes coming from the admin API or the config sync worker.
type CampaignService struct {
	base
}

func NewCampaignService(st store.Store, opts Options) *CampaignService {
	opts = opts.withDefaults()
	return &CampaignService{base: newBase(st, opts)}
}

// Rules loads the campaign and its prizes as one snapshot.
func (s *CampaignService) Rules(ctx context.Context, campaignID string) (*models.CampaignRules, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCampaignMissing
	}
	if err != nil {
		return nil, err
	}
	prizes, err := s.store.ListPrizes(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return c.Rules(prizes), nil
}

// ValidateCampaign checks a campaign definition and its prizes.
func ValidateCampaign(c *models.Campaign, prizes []models.Prize) error {
	if c.ID == "" || c.Name == "" {
		return fmt.Errorf("%w: campaign id and name are required", ErrInvalidInput)
	}
	if len(c.ID) > models.MaxConfigIDLength {
		return fmt.Errorf("%w: campaign id longer than %d", ErrInvalidInput, models.MaxConfigIDLength)
	}
	if c.OverallWinProbability < 0 || c.OverallWinProbability > 100 {
		return fmt.Errorf("%w: overall_win_probability must be within [0, 100]", ErrInvalidInput)
	}
	if c.ParticipationLimitPerUser < 0 || c.ParticipationIntervalSeconds < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidInput)
	}
	if c.StartsAt != nil && c.EndsAt != nil && c.EndsAt.Before(*c.StartsAt) {
		return fmt.Errorf("%w: ends_at is before starts_at", ErrInvalidInput)
	}
	switch c.OutOfStockBehavior {
	case "", models.OutOfStockConsolation, models.OutOfStockLose, models.OutOfStockPreventParticipation:
	default:
		return fmt.Errorf("%w: unknown out_of_stock_behavior %q", ErrInvalidInput, c.OutOfStockBehavior)
	}

	tickets := make(map[string]struct{}, len(c.Tickets))
	for _, t := range c.Tickets {
		if t.ID == "" || t.Token == "" {
			return fmt.Errorf("%w: ticket id and token are required", ErrInvalidInput)
		}
		if _, dup := tickets[t.ID]; dup {
			return fmt.Errorf("%w: duplicate ticket %s", ErrInvalidInput, t.ID)
		}
		if t.ChancesToGrant != nil && *t.ChancesToGrant <= 0 {
			return fmt.Errorf("%w: ticket %s grants no chances", ErrInvalidInput, t.ID)
		}
		tickets[t.ID] = struct{}{}
	}

	ids := make(map[string]struct{}, len(prizes))
	consolations := 0
	for i := range prizes {
		p := &prizes[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if len(p.ID) > models.MaxConfigIDLength {
			return fmt.Errorf("%w: prize id longer than %d", ErrInvalidInput, models.MaxConfigIDLength)
		}
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("%w: duplicate prize %s", ErrInvalidInput, p.ID)
		}
		ids[p.ID] = struct{}{}
		if p.IsConsolation {
			consolations++
		}
	}
	if consolations > 1 {
		return fmt.Errorf("%w: at most one consolation prize is allowed", ErrInvalidInput)
	}
	return nil
}

// Save validates and upserts a campaign with its prize definitions. Live
// inventory of existing prizes is left as is.
func (s *CampaignService) Save(ctx context.Context, c *models.Campaign, prizes []models.Prize) (*models.CampaignRules, error) {
	if err := ValidateCampaign(c, prizes); err != nil {
		return nil, err
	}
	if c.OutOfStockBehavior == "" {
		c.OutOfStockBehavior = models.OutOfStockConsolation
	}

	err := s.tx.run(ctx, "campaign.save", func(tx store.Tx) error {
		return tx.SaveCampaign(c, prizes)
	})
	if errors.Is(err, store.ErrPrizeOwnedElsewhere) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("campaign_id", c.ID).Int("prizes", len(prizes)).Msg("🗂️ [Campaign] configuration saved")
	return s.Rules(ctx, c.ID)
}

// AddPrizeURLs appends URLs to the pool of a URL-type prize and returns how
// many were added.
func (s *CampaignService) AddPrizeURLs(ctx context.Context, campaignID, prizeID string, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, ErrInvalidInput
	}
	for _, u := range urls {
		if err := utils.ValidatePrizeURL(u); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	rules, err := s.Rules(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	prize, ok := rules.Prize(prizeID)
	if !ok {
		return 0, ErrPrizeNotFound
	}
	if prize.Type != models.PrizeTypeURL {
		return 0, ErrUnsupportedPrizeType
	}

	err = s.tx.run(ctx, "campaign.urls", func(tx store.Tx) error {
		pool := make([]models.PrizeURL, 0, len(urls))
		for _, u := range urls {
			pool = append(pool, models.PrizeURL{ID: uuid.NewString(), PrizeID: prizeID, URL: u})
		}
		return tx.AddPrizeURLs(pool)
	})
	if err != nil {
		return 0, err
	}

	log.Info().Str("campaign_id", campaignID).Str("prize_id", prizeID).Int("added", len(urls)).
		Msg("🔗 [Campaign] prize URLs added")
	return len(urls), nil
}

// PrizeStats is the reporting view of one prize.
type PrizeStats struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Rank           int    `json:"rank"`
	Stock          int    `json:"stock"`
	UnlimitedStock bool   `json:"unlimited_stock"`
	WinnersCount   int    `json:"winners_count"`
	IsConsolation  bool   `json:"is_consolation"`
}

// CampaignStats aggregates the counters read by reporting.
type CampaignStats struct {
	CampaignID  string              `json:"campaign_id"`
	Prizes      []PrizeStats        `json:"prizes"`
	GrantUsages []models.GrantUsage `json:"grant_usages"`
}

// Stats returns per-prize winner counts and per-source grant usage.
func (s *CampaignService) Stats(ctx context.Context, campaignID string) (*CampaignStats, error) {
	if _, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCampaignMissing
		}
		return nil, err
	}
	prizes, err := s.store.ListPrizes(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	usages, err := s.store.ListGrantUsages(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stats := &CampaignStats{CampaignID: campaignID, Prizes: make([]PrizeStats, 0, len(prizes)), GrantUsages: usages}
	for _, p := range prizes {
		stats.Prizes = append(stats.Prizes, PrizeStats{
			ID:             p.ID,
			Name:           p.Name,
			Rank:           p.Rank,
			Stock:          p.Stock,
			UnlimitedStock: p.UnlimitedStock,
			WinnersCount:   p.WinnersCount,
			IsConsolation:  p.IsConsolation,
		})
	}
	if stats.GrantUsages == nil {
		stats.GrantUsages = []models.GrantUsage{}
	}
	return stats, nil
}
