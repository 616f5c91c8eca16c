package models

import (
	"sort"
	"time"
)

// OutOfStockBehavior decides what a winning draw turns into when no regular
// prize can be allocated.
type OutOfStockBehavior string

const (
	// OutOfStockConsolation awards the consolation prize when one is configured.
	OutOfStockConsolation OutOfStockBehavior = "consolation"
	// OutOfStockLose turns the draw into a plain loss.
	OutOfStockLose OutOfStockBehavior = "lose"
	// OutOfStockPreventParticipation refuses new draws once every regular prize is sold out.
	OutOfStockPreventParticipation OutOfStockBehavior = "prevent"
)

// Ticket is a redeemable code granting extra chances for a campaign.
type Ticket struct {
	ID             string     `json:"id"`
	Token          string     `json:"token"`
	ChancesToGrant *int       `json:"chances_to_grant,omitempty"`
	Active         bool       `json:"active"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
}

// Campaign is the persisted configuration of an instant-win promotion.
// Prizes live in their own table because their stock is mutated by draws.
type Campaign struct {
	ID                           string             `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name                         string             `gorm:"not null" json:"name"`
	StartsAt                     *time.Time         `json:"starts_at,omitempty"`
	EndsAt                       *time.Time         `json:"ends_at,omitempty"`
	OverallWinProbability        float64            `gorm:"default:0" json:"overall_win_probability"`
	ParticipationLimitPerUser    int                `gorm:"default:0" json:"participation_limit_per_user"` // 0 = unlimited
	ParticipationIntervalSeconds int64              `gorm:"default:0" json:"participation_interval_seconds"`
	PreventDuplicatePrizes       bool               `gorm:"default:false" json:"prevent_duplicate_prizes"`
	OutOfStockBehavior           OutOfStockBehavior `gorm:"type:varchar(16);default:'consolation'" json:"out_of_stock_behavior"`
	ConsolationOnLoss            bool               `gorm:"default:false" json:"consolation_on_loss"`
	RequireTicket                bool               `gorm:"default:false" json:"require_ticket"`
	RequireFormApproval          bool               `gorm:"default:false" json:"require_form_approval"`
	Tickets                      []Ticket           `gorm:"type:jsonb;serializer:json" json:"tickets,omitempty"`

	Timestamps
}

// MaxConfigIDLength bounds campaign and prize ids, which are chosen by the
// configuration side rather than generated here.
const MaxConfigIDLength = 64

// CampaignRules is the read-only snapshot every engine call receives.
// Prize stock inside the snapshot is informational; allocation re-reads it.
type CampaignRules struct {
	CampaignID                string
	StartsAt                  *time.Time
	EndsAt                    *time.Time
	OverallWinProbability     float64
	Prizes                    []Prize
	ConsolationPrize          *Prize
	ConsolationOnLoss         bool
	ParticipationLimitPerUser int
	ParticipationInterval     time.Duration
	PreventDuplicatePrizes    bool
	OutOfStockBehavior        OutOfStockBehavior
	RequireTicket             bool
	RequireFormApproval       bool
	Tickets                   []Ticket
}

// Rules builds the snapshot from the campaign row and its prizes.
func (c *Campaign) Rules(prizes []Prize) *CampaignRules {
	rules := &CampaignRules{
		CampaignID:                c.ID,
		StartsAt:                  c.StartsAt,
		EndsAt:                    c.EndsAt,
		OverallWinProbability:     c.OverallWinProbability,
		ConsolationOnLoss:         c.ConsolationOnLoss,
		ParticipationLimitPerUser: c.ParticipationLimitPerUser,
		ParticipationInterval:     time.Duration(c.ParticipationIntervalSeconds) * time.Second,
		PreventDuplicatePrizes:    c.PreventDuplicatePrizes,
		OutOfStockBehavior:        c.OutOfStockBehavior,
		RequireTicket:             c.RequireTicket,
		RequireFormApproval:       c.RequireFormApproval,
		Tickets:                   append([]Ticket(nil), c.Tickets...),
	}
	if rules.OutOfStockBehavior == "" {
		rules.OutOfStockBehavior = OutOfStockConsolation
	}

	for _, p := range prizes {
		if p.IsConsolation {
			if rules.ConsolationPrize == nil {
				cp := p
				rules.ConsolationPrize = &cp
			}
			continue
		}
		rules.Prizes = append(rules.Prizes, p)
	}
	SortPrizes(rules.Prizes)
	return rules
}

// OpenAt reports whether the campaign accepts draws at now.
func (r *CampaignRules) OpenAt(now time.Time) bool {
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return false
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return false
	}
	return true
}

// Ticket returns the ticket definition with the given id.
func (r *CampaignRules) Ticket(id string) (Ticket, bool) {
	for _, t := range r.Tickets {
		if t.ID == id {
			return t, true
		}
	}
	return Ticket{}, false
}

// Prize returns the regular or consolation prize with the given id.
func (r *CampaignRules) Prize(id string) (*Prize, bool) {
	for i := range r.Prizes {
		if r.Prizes[i].ID == id {
			return &r.Prizes[i], true
		}
	}
	if r.ConsolationPrize != nil && r.ConsolationPrize.ID == id {
		return r.ConsolationPrize, true
	}
	return nil, false
}

// SortPrizes orders prizes by rank, then id.
func SortPrizes(prizes []Prize) {
	sort.SliceStable(prizes, func(i, j int) bool {
		if prizes[i].Rank != prizes[j].Rank {
			return prizes[i].Rank < prizes[j].Rank
		}
		return prizes[i].ID < prizes[j].ID
	})
}
