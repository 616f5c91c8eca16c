package models

import (
	"errors"
	"fmt"
	"time"
)

// PrizeType tags which variant a Prize carries.
type PrizeType string

const (
	PrizeTypeECoupon      PrizeType = "e-coupon"
	PrizeTypeURL          PrizeType = "url"
	PrizeTypeMailDelivery PrizeType = "mail-delivery"
)

var (
	ErrUnknownPrizeType     = errors.New("unknown prize type")
	ErrPrizeVariantMismatch = errors.New("prize details do not match prize type")
)

// PrizeVariant is implemented by the type-specific prize details.
// Exactly one variant is set on a Prize and it must match Prize.Type.
type PrizeVariant interface {
	PrizeType() PrizeType
}

// ECouponDetails describes a coupon redeemed at stores after winning.
type ECouponDetails struct {
	CouponCode                string     `json:"coupon_code,omitempty"`
	UsageLimit                int        `json:"usage_limit"` // 0 = unlimited
	PreventReusingAtSameStore bool       `json:"prevent_reusing_at_same_store"`
	ExpiresAt                 *time.Time `json:"expires_at,omitempty"`
}

func (*ECouponDetails) PrizeType() PrizeType { return PrizeTypeECoupon }

// URLDetails describes a prize delivered as one URL taken from a pool (see PrizeURL).
type URLDetails struct {
	Description string `json:"description,omitempty"`
}

func (*URLDetails) PrizeType() PrizeType { return PrizeTypeURL }

// MailDeliveryDetails describes a physical prize shipped to the winner.
// ShippingFields lists the ShippingAddress fields the winner must fill in.
type MailDeliveryDetails struct {
	ShippingFields []string `json:"shipping_fields,omitempty"`
}

func (*MailDeliveryDetails) PrizeType() PrizeType { return PrizeTypeMailDelivery }

// Prize is one entry of a campaign's prize list.
// Probability is a relative weight inside the "won" branch; the weights of a
// campaign need not sum to 100.
type Prize struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CampaignID     string     `gorm:"index;not null;type:varchar(64)" json:"campaign_id"`
	Name           string     `gorm:"not null" json:"name"`
	Rank           int        `gorm:"default:0" json:"rank"`
	Probability    float64    `gorm:"default:0" json:"probability"`
	Stock          int        `gorm:"default:0" json:"stock"`
	UnlimitedStock bool       `gorm:"default:false" json:"unlimited_stock"`
	WinnersCount   int        `gorm:"default:0" json:"winners_count"` // written only by the allocator
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
	IsConsolation  bool       `gorm:"default:false" json:"is_consolation"`
	Type           PrizeType  `gorm:"type:varchar(32);not null" json:"type"`

	ECoupon      *ECouponDetails      `gorm:"type:jsonb;serializer:json" json:"e_coupon,omitempty"`
	URL          *URLDetails          `gorm:"type:jsonb;serializer:json" json:"url,omitempty"`
	MailDelivery *MailDeliveryDetails `gorm:"type:jsonb;serializer:json" json:"mail_delivery,omitempty"`

	Timestamps
}

// Variant returns the details matching p.Type.
func (p *Prize) Variant() (PrizeVariant, error) {
	set := 0
	if p.ECoupon != nil {
		set++
	}
	if p.URL != nil {
		set++
	}
	if p.MailDelivery != nil {
		set++
	}
	if set > 1 {
		return nil, fmt.Errorf("prize %s: %w", p.ID, ErrPrizeVariantMismatch)
	}

	switch p.Type {
	case PrizeTypeECoupon:
		if p.ECoupon == nil {
			return nil, fmt.Errorf("prize %s: %w", p.ID, ErrPrizeVariantMismatch)
		}
		return p.ECoupon, nil
	case PrizeTypeURL:
		if p.URL == nil {
			return nil, fmt.Errorf("prize %s: %w", p.ID, ErrPrizeVariantMismatch)
		}
		return p.URL, nil
	case PrizeTypeMailDelivery:
		if p.MailDelivery == nil {
			return nil, fmt.Errorf("prize %s: %w", p.ID, ErrPrizeVariantMismatch)
		}
		return p.MailDelivery, nil
	default:
		return nil, fmt.Errorf("prize %s: %w %q", p.ID, ErrUnknownPrizeType, p.Type)
	}
}

// ValidAt reports whether now falls inside the prize's validity window.
func (p *Prize) ValidAt(now time.Time) bool {
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidTo != nil && now.After(*p.ValidTo) {
		return false
	}
	return true
}

// HasStock reports whether at least one unit can still be allocated.
func (p *Prize) HasStock() bool {
	return p.UnlimitedStock || p.Stock > 0
}

// Validate checks the configuration invariants of a prize definition.
func (p *Prize) Validate() error {
	if p.ID == "" {
		return errors.New("prize id is required")
	}
	if p.Probability < 0 {
		return fmt.Errorf("prize %s: probability must not be negative", p.ID)
	}
	if p.Stock < 0 {
		return fmt.Errorf("prize %s: stock must not be negative", p.ID)
	}
	if p.UnlimitedStock && p.Stock != 0 {
		return fmt.Errorf("prize %s: stock and unlimited_stock are exclusive", p.ID)
	}
	if p.ValidFrom != nil && p.ValidTo != nil && p.ValidTo.Before(*p.ValidFrom) {
		return fmt.Errorf("prize %s: valid_to is before valid_from", p.ID)
	}
	if _, err := p.Variant(); err != nil {
		return err
	}
	return nil
}

// PrizeURL is one entry of a URL-type prize's pool.
type PrizeURL struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	PrizeID    string     `gorm:"index;not null" json:"prize_id"`
	URL        string     `gorm:"type:text;not null" json:"url"`
	AssignedTo *string    `gorm:"index" json:"assigned_to,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
}
