package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"instant-win-system/models"
	"instant-win-system/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// fixedRandom always returns the same value.
type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

// seqRandom replays vals in order, cycling at the end.
type seqRandom struct {
	mu   sync.Mutex
	vals []float64
	i    int
}

func (r *seqRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store     *store.MemoryStore
	clock     *testClock
	opts      Options
	campaigns *CampaignService
	draws     *DrawService
	claims    *ClaimService
	requests  *RequestService
	coupons   *CouponService
	records   *RecordService
	chances   *ChanceService
}

func newFixture(t *testing.T, rng RandomSource) *fixture {
	t.Helper()
	clock := newTestClock()
	st := store.NewMemoryStore()
	opts := Options{
		MaxTxAttempts:  3,
		TxRetryBackoff: -1,
		MaxBatchDraws:  10,
		Random:         rng,
		Now:            clock.Now,
		Metrics:        NewMetrics(prometheus.NewRegistry()),
	}
	return &fixture{
		store:     st,
		clock:     clock,
		opts:      opts,
		campaigns: NewCampaignService(st, opts),
		draws:     NewDrawService(st, opts),
		claims:    NewClaimService(st, opts),
		requests:  NewRequestService(st, opts),
		coupons:   NewCouponService(st, opts),
		records:   NewRecordService(st, opts),
		chances:   NewChanceService(st, opts),
	}
}

func (f *fixture) save(t *testing.T, c models.Campaign, prizes ...models.Prize) *models.CampaignRules {
	t.Helper()
	rules, err := f.campaigns.Save(context.Background(), &c, prizes)
	require.NoError(t, err)
	return rules
}

func intPtr(v int) *int { return &v }

func mailPrize(id string, rank int, weight float64, stock int) models.Prize {
	return models.Prize{
		ID: id, Name: "Prize " + id, Rank: rank, Probability: weight, Stock: stock,
		Type: models.PrizeTypeMailDelivery, MailDelivery: &models.MailDeliveryDetails{ShippingFields: []string{"recipient_name", "postal_code"}},
	}
}

func couponPrize(id string, limit int, preventSameStore bool) models.Prize {
	return models.Prize{
		ID: id, Name: "Coupon " + id, Rank: 1, Probability: 1, UnlimitedStock: true,
		Type:    models.PrizeTypeECoupon,
		ECoupon: &models.ECouponDetails{CouponCode: "SPRING", UsageLimit: limit, PreventReusingAtSameStore: preventSameStore},
	}
}

func consolationPrize(id string, stock int) models.Prize {
	return models.Prize{
		ID: id, Name: "Thanks " + id, Rank: 99, Stock: stock, IsConsolation: true,
		Type: models.PrizeTypeECoupon, ECoupon: &models.ECouponDetails{UsageLimit: 1},
	}
}
