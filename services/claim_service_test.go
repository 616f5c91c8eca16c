package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"instant-win-system/models"
	"instant-win-system/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketCampaign(t *testing.T, f *fixture) *models.CampaignRules {
	t.Helper()
	until := f.clock.Now().Add(-time.Hour)
	return f.save(t, models.Campaign{
		ID: "c1", Name: "Spring", RequireTicket: true, ParticipationLimitPerUser: 2,
		Tickets: []models.Ticket{
			{ID: "t1", Token: "secret", ChancesToGrant: intPtr(3), Active: true},
			{ID: "t-default", Token: "open", Active: true},
			{ID: "t-off", Token: "off", Active: false},
			{ID: "t-old", Token: "old", Active: true, ValidTo: &until},
		},
	})
}

func extraChances(t *testing.T, f *fixture, userID string) int {
	t.Helper()
	var extra int
	require.NoError(t, f.store.WithinTx(context.Background(), func(tx store.Tx) error {
		o, err := tx.LockChanceOverride("c1", userID)
		if err != nil {
			return err
		}
		extra = o.ExtraChances
		return nil
	}))
	return extra
}

func TestClaim_SequentialReplay(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := ticketCampaign(t, f)
	ctx := context.Background()
	src := GrantSource{Kind: GrantSourceTicket, ID: "t1", Token: "secret"}

	res, err := f.claims.Claim(ctx, rules, "u1", src)
	require.NoError(t, err)
	assert.Equal(t, "ticket:t1", res.SourceID)
	assert.Equal(t, 3, res.ExtraChances)

	_, err = f.claims.Claim(ctx, rules, "u1", src)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.True(t, IsAlreadyDone(err))
	assert.Equal(t, 3, extraChances(t, f, "u1"))

	// another user may still redeem the same ticket
	_, err = f.claims.Claim(ctx, rules, "u2", src)
	assert.NoError(t, err)

	usages, err := f.store.ListGrantUsages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, int64(2), usages[0].UsedCount)
}

func TestClaim_ConcurrentReplay(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := ticketCampaign(t, f)
	src := GrantSource{Kind: GrantSourceTicket, ID: "t1", Token: "secret"}

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, replays := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.claims.Claim(context.Background(), rules, "u1", src)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case IsAlreadyDone(err):
				replays++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, replays)
	assert.Equal(t, 3, extraChances(t, f, "u1"))
}

func TestClaim_InvalidSources(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := ticketCampaign(t, f)
	ctx := context.Background()

	tests := []struct {
		name string
		src  GrantSource
	}{
		{"wrong token", GrantSource{Kind: GrantSourceTicket, ID: "t1", Token: "nope"}},
		{"unknown ticket", GrantSource{Kind: GrantSourceTicket, ID: "t9", Token: "secret"}},
		{"inactive", GrantSource{Kind: GrantSourceTicket, ID: "t-off", Token: "off"}},
		{"expired", GrantSource{Kind: GrantSourceTicket, ID: "t-old", Token: "old"}},
		{"unknown kind", GrantSource{Kind: "coupon", ID: "t1"}},
		{"unknown request", GrantSource{Kind: GrantSourceRequest, ID: "r1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.claims.Claim(ctx, rules, "u1", tt.src)
			assert.ErrorIs(t, err, ErrSourceInvalid)
		})
	}
	assert.Equal(t, 0, extraChances(t, f, "u1"))

	_, err := f.claims.Claim(ctx, rules, "", GrantSource{Kind: GrantSourceTicket, ID: "t1", Token: "secret"})
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestClaim_DefaultsToParticipationLimit(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := ticketCampaign(t, f)

	res, err := f.claims.Claim(context.Background(), rules, "u1", GrantSource{Kind: GrantSourceTicket, ID: "t-default", Token: "open"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Granted)
}
