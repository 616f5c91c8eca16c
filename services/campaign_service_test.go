package services

import (
	"context"
	"strings"
	"testing"

	"instant-win-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCampaign(t *testing.T) {
	valid := models.Campaign{ID: "c1", Name: "Spring", OverallWinProbability: 30}

	tests := []struct {
		name   string
		mutate func(c *models.Campaign, prizes *[]models.Prize)
	}{
		{"probability above 100", func(c *models.Campaign, _ *[]models.Prize) { c.OverallWinProbability = 101 }},
		{"negative limit", func(c *models.Campaign, _ *[]models.Prize) { c.ParticipationLimitPerUser = -1 }},
		{"unknown behavior", func(c *models.Campaign, _ *[]models.Prize) { c.OutOfStockBehavior = "explode" }},
		{"duplicate ticket", func(c *models.Campaign, _ *[]models.Prize) {
			c.Tickets = []models.Ticket{{ID: "t", Token: "a"}, {ID: "t", Token: "b"}}
		}},
		{"ticket without token", func(c *models.Campaign, _ *[]models.Prize) { c.Tickets = []models.Ticket{{ID: "t"}} }},
		{"duplicate prize", func(_ *models.Campaign, p *[]models.Prize) {
			*p = append(*p, mailPrize("p1", 2, 1, 1))
		}},
		{"two consolations", func(_ *models.Campaign, p *[]models.Prize) {
			*p = append(*p, consolationPrize("x", 1), consolationPrize("y", 1))
		}},
		{"variant mismatch", func(_ *models.Campaign, p *[]models.Prize) {
			(*p)[0].Type = models.PrizeTypeURL
		}},
		{"campaign id too long", func(c *models.Campaign, _ *[]models.Prize) {
			c.ID = strings.Repeat("c", models.MaxConfigIDLength+1)
		}},
		{"prize id too long", func(_ *models.Campaign, p *[]models.Prize) {
			(*p)[0].ID = strings.Repeat("p", models.MaxConfigIDLength+1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			prizes := []models.Prize{mailPrize("p1", 1, 1, 1)}
			tt.mutate(&c, &prizes)
			assert.ErrorIs(t, ValidateCampaign(&c, prizes), ErrInvalidInput)
		})
	}

	c := valid
	assert.NoError(t, ValidateCampaign(&c, []models.Prize{mailPrize("p1", 1, 1, 1), consolationPrize("x", 1)}))
}

func TestCampaign_SaveAndRules(t *testing.T) {
	f := newFixture(t, fixedRandom(0))
	ctx := context.Background()

	rules := f.save(t, models.Campaign{ID: "c1", Name: "Spring", OverallWinProbability: 100},
		mailPrize("b", 2, 1, 1), mailPrize("a", 1, 1, 1), consolationPrize("thanks", 10))
	assert.Equal(t, models.OutOfStockConsolation, rules.OutOfStockBehavior)
	require.Len(t, rules.Prizes, 2)
	assert.Equal(t, "a", rules.Prizes[0].ID)
	require.NotNil(t, rules.ConsolationPrize)
	assert.Equal(t, "thanks", rules.ConsolationPrize.ID)

	_, err := f.campaigns.Rules(ctx, "missing")
	assert.ErrorIs(t, err, ErrCampaignMissing)

	_, err = f.draws.Participate(ctx, rules, "u1", false)
	require.NoError(t, err)

	// re-saving the definition keeps the live counters
	f.save(t, models.Campaign{ID: "c1", Name: "Spring v2", OverallWinProbability: 100},
		mailPrize("b", 2, 1, 1), mailPrize("a", 1, 1, 1), consolationPrize("thanks", 10))

	stats, err := f.campaigns.Stats(ctx, "c1")
	require.NoError(t, err)
	winners := 0
	for _, p := range stats.Prizes {
		winners += p.WinnersCount
	}
	assert.Equal(t, 1, winners)
	assert.NotNil(t, stats.GrantUsages)
}

func TestCampaign_ResaveRetiresDroppedPrizes(t *testing.T) {
	f := newFixture(t, fixedRandom(0))
	ctx := context.Background()

	stale := f.save(t, models.Campaign{ID: "c1", Name: "Spring", OverallWinProbability: 100},
		mailPrize("old", 1, 1, 5), mailPrize("new", 2, 1, 5), consolationPrize("thanks-old", 5))

	rules := f.save(t, models.Campaign{ID: "c1", Name: "Spring v2", OverallWinProbability: 100},
		mailPrize("new", 2, 1, 5), consolationPrize("thanks-new", 5))
	require.Len(t, rules.Prizes, 1)
	assert.Equal(t, "new", rules.Prizes[0].ID)
	require.NotNil(t, rules.ConsolationPrize)
	assert.Equal(t, "thanks-new", rules.ConsolationPrize.ID)

	recs, err := f.draws.Participate(ctx, rules, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, "new", recs[0].PrizeID)

	// a snapshot taken before the re-save still cannot award the dropped prize
	recs, err = f.draws.Participate(ctx, stale, "u2", false)
	require.NoError(t, err)
	assert.Equal(t, "new", recs[0].PrizeID)

	stats, err := f.campaigns.Stats(ctx, "c1")
	require.NoError(t, err)
	ids := make([]string, 0, len(stats.Prizes))
	for _, p := range stats.Prizes {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"new", "thanks-new"}, ids)

	// configuring it again brings it back with its old counters
	rules = f.save(t, models.Campaign{ID: "c1", Name: "Spring v3", OverallWinProbability: 100},
		mailPrize("old", 1, 1, 99), mailPrize("new", 2, 1, 5))
	require.Len(t, rules.Prizes, 2)
	assert.Equal(t, "old", rules.Prizes[0].ID)
	assert.Equal(t, 5, rules.Prizes[0].Stock)
	assert.Equal(t, 0, rules.Prizes[0].WinnersCount)
}

func TestCampaign_SaveRejectsPrizeOfAnotherCampaign(t *testing.T) {
	f := newFixture(t, fixedRandom(0))
	ctx := context.Background()
	f.save(t, models.Campaign{ID: "a", Name: "Spring"}, mailPrize("p1", 1, 1, 5))

	_, err := f.campaigns.Save(ctx, &models.Campaign{ID: "b", Name: "Summer"}, []models.Prize{mailPrize("p1", 1, 1, 999)})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, KindValidation, KindOf(err))

	rules, err := f.campaigns.Rules(ctx, "a")
	require.NoError(t, err)
	require.Len(t, rules.Prizes, 1)
	assert.Equal(t, "a", rules.Prizes[0].CampaignID)
	assert.Equal(t, 5, rules.Prizes[0].Stock)

	_, err = f.campaigns.Rules(ctx, "b")
	assert.ErrorIs(t, err, ErrCampaignMissing)
}

func TestCampaign_AddPrizeURLs(t *testing.T) {
	f := newFixture(t, fixedRandom(0))
	ctx := context.Background()
	f.save(t, models.Campaign{ID: "c1", Name: "Spring"},
		mailPrize("mug", 1, 1, 1),
		models.Prize{ID: "gift", Name: "Gift", Probability: 1, UnlimitedStock: true, Type: models.PrizeTypeURL, URL: &models.URLDetails{}})

	_, err := f.campaigns.AddPrizeURLs(ctx, "c1", "gift", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.campaigns.AddPrizeURLs(ctx, "c1", "gift", []string{"not a url"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.campaigns.AddPrizeURLs(ctx, "c1", "mug", []string{"https://example.com/x"})
	assert.ErrorIs(t, err, ErrUnsupportedPrizeType)

	_, err = f.campaigns.AddPrizeURLs(ctx, "c1", "nope", []string{"https://example.com/x"})
	assert.ErrorIs(t, err, ErrPrizeNotFound)

	n, err := f.campaigns.AddPrizeURLs(ctx, "c1", "gift", []string{"https://example.com/x", "https://example.com/y"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
