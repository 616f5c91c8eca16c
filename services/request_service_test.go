package services

import (
	"context"
	"testing"
	"time"

	"instant-win-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvalCampaign(t *testing.T, f *fixture) *models.CampaignRules {
	t.Helper()
	return f.save(t, models.Campaign{ID: "c1", Name: "Spring", RequireFormApproval: true, ParticipationLimitPerUser: 1})
}

func TestRequest_SubmitIsIdempotentWhilePending(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := approvalCampaign(t, f)
	ctx := context.Background()

	first, err := f.requests.Submit(ctx, rules, "u1", map[string]string{"name": "Aki"})
	require.NoError(t, err)
	second, err := f.requests.Submit(ctx, rules, "u1", map[string]string{"name": "Aki K."})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.RequestPending, second.Status)
}

func TestRequest_NotAcceptedWithoutApprovalGate(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := f.save(t, models.Campaign{ID: "c1", Name: "Spring"})

	_, err := f.requests.Submit(context.Background(), rules, "u1", nil)
	assert.ErrorIs(t, err, ErrApprovalNotRequired)
}

func TestRequest_ApproveGrantsOnce(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := approvalCampaign(t, f)
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, rules, "u1", map[string]string{"name": "Aki"})
	require.NoError(t, err)

	approved, res, err := f.requests.Approve(ctx, rules, req.ID, "admin", intPtr(4))
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)
	assert.Equal(t, "admin", approved.ReviewedBy)
	assert.Equal(t, 4, res.Granted)

	_, _, err = f.requests.Approve(ctx, rules, req.ID, "admin", nil)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, 4, extraChances(t, f, "u1"))

	// the approved request cannot be claimed a second time as a grant source
	_, err = f.claims.Claim(ctx, rules, "u1", GrantSource{Kind: GrantSourceRequest, ID: req.ID})
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	_, err = f.requests.Reject(ctx, "c1", req.ID, "admin", "late")
	assert.ErrorIs(t, err, ErrRequestNotPending)
}

func TestRequest_RejectAndExpire(t *testing.T) {
	f := newFixture(t, fixedRandom(0.5))
	rules := approvalCampaign(t, f)
	ctx := context.Background()

	r1, err := f.requests.Submit(ctx, rules, "u1", map[string]string{"name": "Aki"})
	require.NoError(t, err)
	_, err = f.requests.Submit(ctx, rules, "u2", map[string]string{"name": "Ren"})
	require.NoError(t, err)

	rejected, err := f.requests.Reject(ctx, "c1", r1.ID, "admin", "incomplete form")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
	assert.Equal(t, "incomplete form", rejected.RejectReason)

	_, err = f.requests.Reject(ctx, "c1", r1.ID, "admin", "again")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	_, _, err = f.requests.Approve(ctx, rules, r1.ID, "admin", nil)
	assert.ErrorIs(t, err, ErrRequestNotPending)

	n, err := f.requests.ExpireStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.draws.Participate(ctx, rules, "u2", false)
	assert.ErrorIs(t, err, ErrApprovalRequired, "expired request no longer counts as pending")

	_, err = f.requests.Reject(ctx, "c1", "missing", "admin", "")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}
