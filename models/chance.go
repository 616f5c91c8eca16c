package models

import "time"

// ChanceOverride holds the extra chances granted to one user in one campaign.
// Draws lock this row, so it doubles as the per-user ledger lock.
type ChanceOverride struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	CampaignID   string `gorm:"uniqueIndex:idx_override_campaign_user;not null" json:"campaign_id"`
	UserID       string `gorm:"uniqueIndex:idx_override_campaign_user;not null" json:"user_id"`
	ExtraChances int    `gorm:"default:0" json:"extra_chances"`

	Timestamps
}

// ClaimedGrant marks that a user already redeemed a grant source.
type ClaimedGrant struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	CampaignID     string    `gorm:"uniqueIndex:idx_grant_campaign_user_source;not null" json:"campaign_id"`
	UserID         string    `gorm:"uniqueIndex:idx_grant_campaign_user_source;not null" json:"user_id"`
	SourceID       string    `gorm:"uniqueIndex:idx_grant_campaign_user_source;not null" json:"source_id"`
	ChancesGranted int       `json:"chances_granted"`
	ClaimedAt      time.Time `json:"claimed_at" gorm:"autoCreateTime"`
}

// GrantUsage counts redemptions per grant source, for reporting.
type GrantUsage struct {
	CampaignID string    `gorm:"primaryKey" json:"campaign_id"`
	SourceID   string    `gorm:"primaryKey" json:"source_id"`
	UsedCount  int64     `gorm:"default:0" json:"used_count"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// RequestStatus is the review state of a participation request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ParticipationRequest is a form submission that unlocks chances once approved.
type ParticipationRequest struct {
	ID           string            `gorm:"primaryKey;type:uuid" json:"id"`
	CampaignID   string            `gorm:"index:idx_request_campaign_user;not null" json:"campaign_id"`
	UserID       string            `gorm:"index:idx_request_campaign_user;not null" json:"user_id"`
	FormData     map[string]string `gorm:"type:jsonb;serializer:json" json:"form_data"`
	Status       RequestStatus     `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`
	ReviewedBy   string            `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty"`
	RejectReason string            `json:"reject_reason,omitempty"`

	Timestamps
}
