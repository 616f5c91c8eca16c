package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"instant-win-system/models"
	"instant-win-system/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GrantSourceKind names where extra chances come from.
type GrantSourceKind string

const (
	GrantSourceTicket  GrantSourceKind = "ticket"
	GrantSourceRequest GrantSourceKind = "request"
)

// GrantSource identifies one redeemable grant. Token is the ticket secret
// presented by the user. ChancesToGrant overrides the configured amount and
// is only set by trusted callers.
type GrantSource struct {
	Kind           GrantSourceKind
	ID             string
	Token          string
	ChancesToGrant *int
}

// Key is the identifier stored on the claimed marker.
func (g GrantSource) Key() string {
	return string(g.Kind) + ":" + g.ID
}

// ClaimResult reports what a successful claim changed.
type ClaimResult struct {
	SourceID     string `json:"source_id"`
	Granted      int    `json:"granted"`
	ExtraChances int    `json:"extra_chances"`
}

type ClaimService struct {
	base
}

func NewClaimService(st store.Store, opts Options) *ClaimService {
	opts = opts.withDefaults()
	return &ClaimService{base: newBase(st, opts)}
}

// Claim redeems src for userID at most once. A replay fails with
// ErrAlreadyClaimed and leaves the ledger untouched.
func (s *ClaimService) Claim(ctx context.Context, rules *models.CampaignRules, userID string, src GrantSource) (*ClaimResult, error) {
	if rules == nil {
		return nil, ErrCampaignMissing
	}
	if userID == "" {
		return nil, ErrInvalidIdentity
	}
	if src.ID == "" || (src.Kind != GrantSourceTicket && src.Kind != GrantSourceRequest) {
		return nil, ErrSourceInvalid
	}

	var res *ClaimResult
	err := s.tx.run(ctx, "claim", func(tx store.Tx) error {
		var err error
		res, err = claimInTx(tx, rules, userID, src, s.now())
		return err
	})
	s.metrics.recordClaim(src.Kind, err)
	if err != nil {
		return nil, err
	}

	log.Info().Str("campaign_id", rules.CampaignID).Str("user_id", userID).Str("source_id", res.SourceID).
		Int("granted", res.Granted).Msg("🎟️ [Claim] chances granted")
	return res, nil
}

// claimInTx is shared with request approval so that approving and granting
// commit together.
func claimInTx(tx store.Tx, rules *models.CampaignRules, userID string, src GrantSource, now time.Time) (*ClaimResult, error) {
	sourceID := src.Key()

	// the override lock serializes claims of the same user
	o, err := tx.LockChanceOverride(rules.CampaignID, userID)
	if err != nil {
		return nil, err
	}

	claimed, err := tx.HasClaimedGrant(rules.CampaignID, userID, sourceID)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrAlreadyClaimed
	}

	chances, err := chancesForSource(tx, rules, userID, src, now)
	if err != nil {
		return nil, err
	}

	err = tx.CreateClaimedGrant(&models.ClaimedGrant{
		ID:             uuid.NewString(),
		CampaignID:     rules.CampaignID,
		UserID:         userID,
		SourceID:       sourceID,
		ChancesGranted: chances,
		ClaimedAt:      now,
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyClaimed
	}
	if err != nil {
		return nil, err
	}

	o.ExtraChances += chances
	if err := tx.SaveChanceOverride(o); err != nil {
		return nil, err
	}
	if err := tx.IncrementGrantUsage(rules.CampaignID, sourceID); err != nil {
		return nil, err
	}

	return &ClaimResult{SourceID: sourceID, Granted: chances, ExtraChances: o.ExtraChances}, nil
}

// chancesForSource validates src and resolves how many chances it grants:
// the explicit amount, else the source's configured amount, else the
// campaign's per-user limit, else one.
func chancesForSource(tx store.Tx, rules *models.CampaignRules, userID string, src GrantSource, now time.Time) (int, error) {
	var configured *int

	switch src.Kind {
	case GrantSourceTicket:
		t, ok := rules.Ticket(src.ID)
		if !ok || !t.Active || !ticketValidAt(t, now) {
			return 0, ErrSourceInvalid
		}
		if subtle.ConstantTimeCompare([]byte(t.Token), []byte(src.Token)) != 1 {
			return 0, ErrSourceInvalid
		}
		configured = t.ChancesToGrant

	case GrantSourceRequest:
		r, err := tx.LockRequest(src.ID)
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrSourceInvalid
		}
		if err != nil {
			return 0, err
		}
		if r.CampaignID != rules.CampaignID || r.UserID != userID || r.Status != models.RequestApproved {
			return 0, ErrSourceInvalid
		}

	default:
		return 0, ErrSourceInvalid
	}

	chances := 1
	switch {
	case src.ChancesToGrant != nil:
		chances = *src.ChancesToGrant
	case configured != nil:
		chances = *configured
	case rules.ParticipationLimitPerUser > 0:
		chances = rules.ParticipationLimitPerUser
	}
	if chances <= 0 {
		return 0, ErrSourceInvalid
	}
	return chances, nil
}

func ticketValidAt(t models.Ticket, now time.Time) bool {
	if t.ValidFrom != nil && now.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidTo != nil && now.After(*t.ValidTo) {
		return false
	}
	return true
}
