package services

import (
	"context"
	"errors"
	"time"

	"instant-win-system/models"
	"instant-win-system/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ExpiredRejectReason is recorded on requests closed by ExpireStale.
const ExpiredRejectReason = "expired"

// RequestService manages the form-approval flow of gated campaigns.
type RequestService struct {
	base
}

func NewRequestService(st store.Store, opts Options) *RequestService {
	opts = opts.withDefaults()
	return &RequestService{base: newBase(st, opts)}
}

// Submit files a participation request. A user with a pending request gets
// that request back instead of a new one.
func (s *RequestService) Submit(ctx context.Context, rules *models.CampaignRules, userID string, formData map[string]string) (*models.ParticipationRequest, error) {
	if rules == nil {
		return nil, ErrCampaignMissing
	}
	if userID == "" {
		return nil, ErrInvalidIdentity
	}
	if !rules.RequireFormApproval {
		return nil, ErrApprovalNotRequired
	}
	if !rules.OpenAt(s.now()) {
		return nil, ErrCampaignClosed
	}

	var req *models.ParticipationRequest
	err := s.tx.run(ctx, "request.submit", func(tx store.Tx) error {
		req = nil
		if _, err := tx.LockChanceOverride(rules.CampaignID, userID); err != nil {
			return err
		}

		pending, err := tx.FindPendingRequest(rules.CampaignID, userID)
		if err == nil {
			req = pending
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		req = &models.ParticipationRequest{
			ID:         uuid.NewString(),
			CampaignID: rules.CampaignID,
			UserID:     userID,
			FormData:   formData,
			Status:     models.RequestPending,
		}
		return tx.CreateRequest(req)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("campaign_id", rules.CampaignID).Str("user_id", userID).Str("request_id", req.ID).
		Msg("📝 [Request] participation request submitted")
	return req, nil
}

// Approve marks the request approved and grants its chances in the same
// transaction.
func (s *RequestService) Approve(ctx context.Context, rules *models.CampaignRules, requestID, reviewer string, chances *int) (*models.ParticipationRequest, *ClaimResult, error) {
	if rules == nil {
		return nil, nil, ErrCampaignMissing
	}
	if chances != nil && *chances <= 0 {
		return nil, nil, ErrInvalidInput
	}

	var (
		req *models.ParticipationRequest
		res *ClaimResult
	)
	err := s.tx.run(ctx, "request.approve", func(tx store.Tx) error {
		now := s.now()
		r, err := s.review(tx, rules.CampaignID, requestID, models.RequestApproved)
		if err != nil {
			return err
		}
		r.Status = models.RequestApproved
		r.ReviewedBy = reviewer
		r.ReviewedAt = &now
		if err := tx.UpdateRequest(r); err != nil {
			return err
		}

		res, err = claimInTx(tx, rules, r.UserID, GrantSource{Kind: GrantSourceRequest, ID: r.ID, ChancesToGrant: chances}, now)
		req = r
		return err
	})
	s.metrics.recordClaim(GrantSourceRequest, err)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("campaign_id", rules.CampaignID).Str("request_id", requestID).Str("reviewer", reviewer).
		Int("granted", res.Granted).Msg("✅ [Request] participation request approved")
	return req, res, nil
}

// Reject closes a pending request without granting chances.
func (s *RequestService) Reject(ctx context.Context, campaignID, requestID, reviewer, reason string) (*models.ParticipationRequest, error) {
	var req *models.ParticipationRequest
	err := s.tx.run(ctx, "request.reject", func(tx store.Tx) error {
		now := s.now()
		r, err := s.review(tx, campaignID, requestID, models.RequestRejected)
		if err != nil {
			return err
		}
		r.Status = models.RequestRejected
		r.ReviewedBy = reviewer
		r.ReviewedAt = &now
		r.RejectReason = reason
		req = r
		return tx.UpdateRequest(r)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("campaign_id", campaignID).Str("request_id", requestID).Str("reason", reason).
		Msg("🚫 [Request] participation request rejected")
	return req, nil
}

// review locks a request that is about to move to target.
func (s *RequestService) review(tx store.Tx, campaignID, requestID string, target models.RequestStatus) (*models.ParticipationRequest, error) {
	r, err := tx.LockRequest(requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if campaignID != "" && r.CampaignID != campaignID {
		return nil, ErrRequestNotFound
	}

	switch r.Status {
	case models.RequestPending:
		return r, nil
	case target:
		return nil, ErrAlreadyReviewed
	default:
		return nil, ErrRequestNotPending
	}
}

// ExpireStale rejects requests still pending at cutoff and returns how many
// were closed.
func (s *RequestService) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.store.ListStaleRequests(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, r := range stale {
		_, err := s.Reject(ctx, r.CampaignID, r.ID, "system", ExpiredRejectReason)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrAlreadyReviewed), errors.Is(err, ErrRequestNotPending):
		default:
			return expired, err
		}
	}
	return expired, nil
}
