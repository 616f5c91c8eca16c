package services

import (
	"testing"
	"time"

	"instant-win-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligiblePrizes(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	prizes := []models.Prize{
		mailPrize("in-stock", 1, 1, 2),
		mailPrize("sold-out", 1, 1, 0),
		{ID: "unlimited", Probability: 1, UnlimitedStock: true},
		{ID: "not-yet", Probability: 1, Stock: 1, ValidFrom: &future},
		{ID: "expired", Probability: 1, Stock: 1, ValidTo: &past},
		{ID: "held", Probability: 1, Stock: 1},
		consolationPrize("consolation", 5),
	}

	ids := func(ps []models.Prize) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}

	assert.Equal(t, []string{"in-stock", "unlimited", "held"}, ids(EligiblePrizes(prizes, []string{"held"}, false, now)))
	assert.Equal(t, []string{"in-stock", "unlimited"}, ids(EligiblePrizes(prizes, []string{"held"}, true, now)))
}

func TestSelectWeighted(t *testing.T) {
	prizes := []models.Prize{
		{ID: "a", Probability: 1},
		{ID: "zero", Probability: 0},
		{ID: "b", Probability: 3},
	}

	p, ok := SelectWeighted(prizes, fixedRandom(0.1)) // 0.4 of 4
	require.True(t, ok)
	assert.Equal(t, "a", p.ID)

	p, ok = SelectWeighted(prizes, fixedRandom(0.5)) // 2.0 of 4
	require.True(t, ok)
	assert.Equal(t, "b", p.ID)

	p, ok = SelectWeighted(prizes, fixedRandom(0.999999))
	require.True(t, ok)
	assert.Equal(t, "b", p.ID)

	_, ok = SelectWeighted([]models.Prize{{ID: "zero"}}, fixedRandom(0.5))
	assert.False(t, ok)
	_, ok = SelectWeighted(nil, fixedRandom(0.5))
	assert.False(t, ok)
}

func TestDraw_ZeroProbabilityNeverWins(t *testing.T) {
	now := time.Now()
	rules := &models.CampaignRules{OverallWinProbability: 0}
	eligible := []models.Prize{{ID: "a", Probability: 1, UnlimitedStock: true}}
	rng := DefaultRandom()

	for i := 0; i < 2000; i++ {
		out := Draw(rules, eligible, rng, now)
		require.False(t, out.IsWin)
		require.Nil(t, out.Prize)
	}
}

func TestDraw_FullProbabilityAlwaysWins(t *testing.T) {
	now := time.Now()
	rules := &models.CampaignRules{OverallWinProbability: 100}
	eligible := []models.Prize{{ID: "a", Probability: 1, UnlimitedStock: true}, {ID: "b", Probability: 2, UnlimitedStock: true}}
	rng := DefaultRandom()

	for i := 0; i < 2000; i++ {
		out := Draw(rules, eligible, rng, now)
		require.True(t, out.IsWin)
		require.NotNil(t, out.Prize)
	}
}

func TestDraw_ZeroTotalWeightIsLoss(t *testing.T) {
	cp := consolationPrize("c", 10)
	rules := &models.CampaignRules{OverallWinProbability: 100, ConsolationPrize: &cp, OutOfStockBehavior: models.OutOfStockConsolation}

	out := Draw(rules, []models.Prize{{ID: "a", Probability: 0, UnlimitedStock: true}}, fixedRandom(0), time.Now())
	assert.Equal(t, DrawOutcome{}, out)
}

func TestDraw_Consolation(t *testing.T) {
	now := time.Now()
	cp := consolationPrize("c", 10)

	t.Run("on loss", func(t *testing.T) {
		rules := &models.CampaignRules{OverallWinProbability: 0, ConsolationPrize: &cp, ConsolationOnLoss: true}
		out := Draw(rules, nil, fixedRandom(0.5), now)
		assert.False(t, out.IsWin)
		assert.True(t, out.IsConsolation)
		assert.Equal(t, "c", out.Prize.ID)
	})

	t.Run("loss without consolation on loss", func(t *testing.T) {
		rules := &models.CampaignRules{OverallWinProbability: 0, ConsolationPrize: &cp}
		assert.Equal(t, DrawOutcome{}, Draw(rules, nil, fixedRandom(0.5), now))
	})

	t.Run("exhausted falls back to consolation", func(t *testing.T) {
		rules := &models.CampaignRules{OverallWinProbability: 100, ConsolationPrize: &cp, OutOfStockBehavior: models.OutOfStockConsolation}
		out := Draw(rules, nil, fixedRandom(0), now)
		assert.True(t, out.IsConsolation)
	})

	t.Run("exhausted with lose behavior", func(t *testing.T) {
		rules := &models.CampaignRules{OverallWinProbability: 100, ConsolationPrize: &cp, OutOfStockBehavior: models.OutOfStockLose}
		assert.Equal(t, DrawOutcome{}, Draw(rules, nil, fixedRandom(0), now))
	})

	t.Run("consolation out of stock", func(t *testing.T) {
		empty := consolationPrize("c", 0)
		rules := &models.CampaignRules{OverallWinProbability: 0, ConsolationPrize: &empty, ConsolationOnLoss: true}
		assert.Equal(t, DrawOutcome{}, Draw(rules, nil, fixedRandom(0.5), now))
	})
}
