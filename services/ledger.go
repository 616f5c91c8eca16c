package services

import (
	"errors"
	"math"
	"time"

	"instant-win-system/models"
	"instant-win-system/store"
)

// UnlimitedChances is reported as the available count of campaigns without a
// per-user limit and without an access gate.
const UnlimitedChances = math.MaxInt32

// AvailableChances derives the chances a user may still spend.
// Gated campaigns have no base allowance; every chance comes from a grant.
func AvailableChances(rules *models.CampaignRules, extra int, consumed int64) int {
	limit := rules.ParticipationLimitPerUser
	if rules.RequireTicket || rules.RequireFormApproval {
		limit = 0
	} else if limit == 0 {
		return UnlimitedChances
	}

	available := int64(limit) + int64(extra) - consumed
	if available < 0 {
		return 0
	}
	if available > UnlimitedChances {
		return UnlimitedChances
	}
	return int(available)
}

// NextAvailableTime returns when the participation interval elapses after
// last, or nil when no interval applies.
func NextAvailableTime(rules *models.CampaignRules, last *time.Time) *time.Time {
	if last == nil || rules.ParticipationInterval <= 0 {
		return nil
	}
	next := last.Add(rules.ParticipationInterval)
	return &next
}

// Access gates reported by ChanceStatus.
const (
	GateNone             = ""
	GateTicketRequired   = "ticket_required"
	GateApprovalRequired = "approval_required"
	GateApprovalPending  = "approval_pending"
	GateLimitReached     = "limit_reached"
)

// ChanceStatus is the per-user ledger view returned to clients.
type ChanceStatus struct {
	CampaignID         string     `json:"campaign_id"`
	Available          int        `json:"available"`
	Unlimited          bool       `json:"unlimited"`
	Consumed           int64      `json:"consumed"`
	ExtraChances       int        `json:"extra_chances"`
	LastParticipatedAt *time.Time `json:"last_participated_at,omitempty"`
	NextAvailableAt    *time.Time `json:"next_available_at,omitempty"`
	Gate               string     `json:"gate,omitempty"`
}

// ledger is the locked view of one user's chances inside a transaction.
type ledger struct {
	override   *models.ChanceOverride
	consumed   int64
	last       *time.Time
	hasPending bool
	available  int
}

// readLedger locks the user's override row and reads the consumed count.
// The lock serializes every ledger mutation of the same (campaign, user).
func readLedger(tx store.Tx, rules *models.CampaignRules, userID string) (*ledger, error) {
	o, err := tx.LockChanceOverride(rules.CampaignID, userID)
	if err != nil {
		return nil, err
	}
	consumed, err := tx.CountRecords(rules.CampaignID, userID)
	if err != nil {
		return nil, err
	}
	last, err := tx.LastParticipation(rules.CampaignID, userID)
	if err != nil {
		return nil, err
	}

	l := &ledger{
		override:  o,
		consumed:  consumed,
		last:      last,
		available: AvailableChances(rules, o.ExtraChances, consumed),
	}

	if rules.RequireFormApproval {
		_, err := tx.FindPendingRequest(rules.CampaignID, userID)
		switch {
		case err == nil:
			l.hasPending = true
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	return l, nil
}

// gate returns the access gate that blocks a user with no chances left.
func (l *ledger) gate(rules *models.CampaignRules) string {
	if l.available > 0 {
		return GateNone
	}
	if rules.RequireFormApproval && l.override.ExtraChances == 0 {
		if l.hasPending {
			return GateApprovalPending
		}
		return GateApprovalRequired
	}
	if rules.RequireTicket && l.override.ExtraChances == 0 {
		return GateTicketRequired
	}
	return GateLimitReached
}

// admit checks that one more chance may be consumed at now.
func (l *ledger) admit(rules *models.CampaignRules, now time.Time, enforceCooldown bool) error {
	switch l.gate(rules) {
	case GateApprovalPending:
		return ErrApprovalPending
	case GateApprovalRequired:
		return ErrApprovalRequired
	case GateTicketRequired:
		return ErrTicketRequired
	case GateLimitReached:
		return ErrLimitReached
	}

	if enforceCooldown {
		if next := NextAvailableTime(rules, l.last); next != nil && now.Before(*next) {
			return &CooldownError{RetryAfter: *next}
		}
	}
	return nil
}

func (l *ledger) status(rules *models.CampaignRules) *ChanceStatus {
	return &ChanceStatus{
		CampaignID:         rules.CampaignID,
		Available:          l.available,
		Unlimited:          l.available == UnlimitedChances,
		Consumed:           l.consumed,
		ExtraChances:       l.override.ExtraChances,
		LastParticipatedAt: l.last,
		NextAvailableAt:    NextAvailableTime(rules, l.last),
		Gate:               l.gate(rules),
	}
}
