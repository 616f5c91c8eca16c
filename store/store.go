// Package store persists campaigns, prize inventory, chance ledgers and
// participation records behind one transactional contract.
//
// Every mutation of the draw engine happens inside Store.WithinTx. The
// function passed to WithinTx may be executed more than once by callers that
// retry on ErrConflict, so it must not have effects outside the Tx.
package store

import (
	"context"
	"errors"
	"time"

	"instant-win-system/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a transaction lost a race with a concurrent
	// writer (serialization failure, deadlock, duplicate insert). The whole
	// transaction may be retried.
	ErrConflict = errors.New("store: write conflict")
	// ErrPrizeOwnedElsewhere is returned by SaveCampaign when a prize id
	// already belongs to another campaign.
	ErrPrizeOwnedElsewhere = errors.New("store: prize belongs to another campaign")
)

// Store is the shared backing store used by every service.
type Store interface {
	// WithinTx runs fn as one atomic, serializable unit. Any error returned by
	// fn rolls the unit back and is returned unchanged, except database
	// conflicts which are reported as ErrConflict.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListPrizes(ctx context.Context, campaignID string) ([]models.Prize, error)
	GetRecord(ctx context.Context, id string) (*models.ParticipationRecord, error)
	ListRecords(ctx context.Context, campaignID, userID string) ([]models.ParticipationRecord, error)
	ListStaleRequests(ctx context.Context, cutoff time.Time) ([]models.ParticipationRequest, error)
	ListGrantUsages(ctx context.Context, campaignID string) ([]models.GrantUsage, error)
	Ping(ctx context.Context) error
}

// Tx is the set of reads and writes available inside one transaction.
// Reads made through Tx observe the unit's own writes; Lock* reads hold the
// row until the unit ends.
type Tx interface {
	// LockChanceOverride returns the user's override row, creating an empty one
	// if needed, and locks it for the rest of the transaction.
	LockChanceOverride(campaignID, userID string) (*models.ChanceOverride, error)
	SaveChanceOverride(o *models.ChanceOverride) error
	CountRecords(campaignID, userID string) (int64, error)
	LastParticipation(campaignID, userID string) (*time.Time, error)
	// HeldPrizeIDs lists the regular (non-consolation) prizes the user has won.
	HeldPrizeIDs(campaignID, userID string) ([]string, error)

	ListPrizes(campaignID string) ([]models.Prize, error)
	LockPrize(prizeID string) (*models.Prize, error)
	UpdatePrizeCounters(prizeID string, stock, winnersCount int) error
	// TakePrizeURL assigns the oldest unassigned URL of the pool to userID.
	// It returns ErrNotFound when the pool is empty.
	TakePrizeURL(prizeID, userID string, at time.Time) (*models.PrizeURL, error)
	AddPrizeURLs(urls []models.PrizeURL) error

	CreateRecord(r *models.ParticipationRecord) error
	LockRecord(id string) (*models.ParticipationRecord, error)
	// UpdateRecordUsage writes the user-editable fields of a record: coupon
	// usage, shipping address and questionnaire answers.
	UpdateRecordUsage(r *models.ParticipationRecord) error

	HasClaimedGrant(campaignID, userID, sourceID string) (bool, error)
	// CreateClaimedGrant fails with ErrConflict if the marker already exists.
	CreateClaimedGrant(g *models.ClaimedGrant) error
	IncrementGrantUsage(campaignID, sourceID string) error

	CreateRequest(r *models.ParticipationRequest) error
	LockRequest(id string) (*models.ParticipationRequest, error)
	UpdateRequest(r *models.ParticipationRequest) error
	FindPendingRequest(campaignID, userID string) (*models.ParticipationRequest, error)

	// SaveCampaign upserts the campaign and its prize definitions. Live
	// inventory (stock, winners_count) of prizes that already exist is kept.
	// Prizes of the campaign missing from the list are retired: ListPrizes and
	// LockPrize no longer see them.
	SaveCampaign(c *models.Campaign, prizes []models.Prize) error
}
