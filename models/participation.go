package models

import (
	"strings"
	"time"
)

// LossPrizeID is stored as PrizeID on records that won nothing.
const LossPrizeID = "loss"

// CouponState is the post-win lifecycle of an e-coupon.
type CouponState string

const (
	CouponUnused        CouponState = "unused"
	CouponPartiallyUsed CouponState = "partially_used"
	CouponExhausted     CouponState = "exhausted"
)

// CouponUsage is one redemption of a won coupon.
type CouponUsage struct {
	Store     string    `json:"store"`
	StoreKey  string    `json:"store_key"` // normalized store name used for duplicate checks
	RequestID string    `json:"request_id,omitempty"`
	UsedAt    time.Time `json:"used_at"`
}

// ShippingAddress is captured from winners of mail-delivery prizes.
type ShippingAddress struct {
	RecipientName string `json:"recipient_name"`
	PostalCode    string `json:"postal_code"`
	Region        string `json:"region"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2,omitempty"`
	Phone         string `json:"phone"`
}

// Field returns the value of a shipping field by its json name.
func (a *ShippingAddress) Field(name string) string {
	switch name {
	case "recipient_name":
		return a.RecipientName
	case "postal_code":
		return a.PostalCode
	case "region":
		return a.Region
	case "address_line1":
		return a.AddressLine1
	case "address_line2":
		return a.AddressLine2
	case "phone":
		return a.Phone
	}
	return ""
}

// ParticipationRecord is written once per consumed chance.
// Only the coupon usage, shipping and questionnaire fields change afterwards.
type ParticipationRecord struct {
	ID                   string            `gorm:"primaryKey;type:uuid" json:"id"`
	CampaignID           string            `gorm:"index:idx_record_campaign_user;not null" json:"campaign_id"`
	UserID               string            `gorm:"index:idx_record_campaign_user;not null" json:"user_id"`
	PrizeID              string            `gorm:"index;not null" json:"prize_id"`
	IsWin                bool              `gorm:"default:false" json:"is_win"`
	IsConsolationPrize   bool              `gorm:"default:false" json:"is_consolation_prize"`
	PrizeSnapshot        *Prize            `gorm:"type:jsonb;serializer:json" json:"prize,omitempty"`
	AssignedURL          string            `gorm:"type:text" json:"assigned_url,omitempty"`
	CouponUsedCount      int               `gorm:"default:0" json:"coupon_used_count"`
	CouponUsageHistory   []CouponUsage     `gorm:"type:jsonb;serializer:json" json:"coupon_usage_history,omitempty"`
	ShippingAddress      *ShippingAddress  `gorm:"type:jsonb;serializer:json" json:"shipping_address,omitempty"`
	QuestionnaireAnswers map[string]string `gorm:"type:jsonb;serializer:json" json:"questionnaire_answers,omitempty"`
	ParticipatedAt       time.Time         `gorm:"index;not null" json:"participated_at"`

	Timestamps
}

// IsLoss reports whether the record holds no prize at all.
func (r *ParticipationRecord) IsLoss() bool {
	return r.PrizeID == LossPrizeID || r.PrizeSnapshot == nil
}

// CouponState derives the coupon lifecycle state from the usage counters.
func (r *ParticipationRecord) CouponState() CouponState {
	if r.CouponUsedCount == 0 {
		return CouponUnused
	}
	if r.PrizeSnapshot != nil && r.PrizeSnapshot.ECoupon != nil {
		limit := r.PrizeSnapshot.ECoupon.UsageLimit
		if limit > 0 && r.CouponUsedCount >= limit {
			return CouponExhausted
		}
	}
	return CouponPartiallyUsed
}

// UsedAtStore reports whether storeKey already appears in the usage history.
func (r *ParticipationRecord) UsedAtStore(storeKey string) bool {
	for _, u := range r.CouponUsageHistory {
		if strings.EqualFold(u.StoreKey, storeKey) {
			return true
		}
	}
	return false
}

// UsageByRequest returns the history entry written for requestID.
func (r *ParticipationRecord) UsageByRequest(requestID string) (CouponUsage, bool) {
	if requestID == "" {
		return CouponUsage{}, false
	}
	for _, u := range r.CouponUsageHistory {
		if u.RequestID == requestID {
			return u, true
		}
	}
	return CouponUsage{}, false
}

// Clone returns a deep copy of the mutable parts of the record.
func (r *ParticipationRecord) Clone() *ParticipationRecord {
	out := *r
	if r.PrizeSnapshot != nil {
		p := *r.PrizeSnapshot
		out.PrizeSnapshot = &p
	}
	if r.CouponUsageHistory != nil {
		out.CouponUsageHistory = append([]CouponUsage(nil), r.CouponUsageHistory...)
	}
	if r.ShippingAddress != nil {
		a := *r.ShippingAddress
		out.ShippingAddress = &a
	}
	if r.QuestionnaireAnswers != nil {
		out.QuestionnaireAnswers = make(map[string]string, len(r.QuestionnaireAnswers))
		for k, v := range r.QuestionnaireAnswers {
			out.QuestionnaireAnswers[k] = v
		}
	}
	return &out
}
