package services

import (
	"errors"
	"fmt"
	"time"

	"instant-win-system/store"
)

// ErrorKind groups errors by how callers should react to them.
type ErrorKind int

const (
	KindInternal     ErrorKind = iota
	KindValidation             // bad identity or input; never retried
	KindNotFound               // referenced campaign/record/request does not exist
	KindBusinessRule           // user-actionable rule violation; never auto-retried
	KindAlreadyDone            // idempotent replay; render as success
	KindTransient              // lost a race too many times; the next user action may retry
)

// Validation errors.
var (
	ErrInvalidIdentity = errors.New("user id is required")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSourceInvalid   = errors.New("grant source is not valid for this campaign")
	ErrNotOwner        = errors.New("record belongs to another user")
	ErrNotCoupon       = errors.New("prize is not an e-coupon")
	ErrNotMailDelivery = errors.New("prize is not shipped by mail")
)

// Not-found errors.
var (
	ErrCampaignMissing = errors.New("campaign not found")
	ErrRecordNotFound  = errors.New("participation record not found")
	ErrRequestNotFound = errors.New("participation request not found")
	ErrPrizeNotFound   = errors.New("prize not found")
)

// Business rule violations.
var (
	ErrLimitReached         = errors.New("participation limit reached")
	ErrCooldown             = errors.New("participation interval has not elapsed")
	ErrTicketRequired       = errors.New("a ticket is required to participate")
	ErrApprovalRequired     = errors.New("an approved participation request is required")
	ErrApprovalPending      = errors.New("participation request is awaiting approval")
	ErrApprovalNotRequired  = errors.New("campaign does not accept participation requests")
	ErrOutOfStock           = errors.New("prize is out of stock")
	ErrCampaignClosed       = errors.New("campaign is not open")
	ErrStoreAlreadyUsed     = errors.New("coupon was already used at this store")
	ErrCouponLimitExceeded  = errors.New("coupon usage limit exceeded")
	ErrCouponExpired        = errors.New("coupon has expired")
	ErrRequestNotPending    = errors.New("participation request was already reviewed")
	ErrNotAWin              = errors.New("record holds no prize")
	ErrUnsupportedPrizeType = errors.New("prize type is not supported by this operation")
)

// Idempotent replays.
var (
	ErrAlreadyClaimed       = errors.New("grant source already claimed")
	ErrCouponAlreadyApplied = errors.New("coupon use already applied")
	ErrAlreadyReviewed      = errors.New("participation request already has this status")
)

// ErrTransientFailure is returned once the retry budget of a conflicting
// transaction is spent.
var ErrTransientFailure = errors.New("transient failure, please retry")

// CooldownError carries the instant after which the user may draw again.
type CooldownError struct {
	RetryAfter time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrCooldown, e.RetryAfter.UTC().Format(time.RFC3339))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

var errorKinds = []struct {
	kind ErrorKind
	errs []error
}{
	{KindTransient, []error{ErrTransientFailure, store.ErrConflict}},
	{KindAlreadyDone, []error{ErrAlreadyClaimed, ErrCouponAlreadyApplied, ErrAlreadyReviewed}},
	{KindValidation, []error{ErrInvalidIdentity, ErrInvalidInput, ErrSourceInvalid, ErrNotOwner, ErrNotCoupon, ErrNotMailDelivery}},
	{KindNotFound, []error{ErrCampaignMissing, ErrRecordNotFound, ErrRequestNotFound, ErrPrizeNotFound, store.ErrNotFound}},
	{KindBusinessRule, []error{
		ErrLimitReached, ErrCooldown, ErrTicketRequired, ErrApprovalRequired, ErrApprovalPending,
		ErrApprovalNotRequired, ErrOutOfStock, ErrCampaignClosed, ErrStoreAlreadyUsed,
		ErrCouponLimitExceeded, ErrCouponExpired, ErrRequestNotPending, ErrNotAWin, ErrUnsupportedPrizeType,
	}},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	for _, group := range errorKinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}

// IsAlreadyDone reports whether err is an idempotent replay that callers
// should present as success.
func IsAlreadyDone(err error) bool {
	return KindOf(err) == KindAlreadyDone
}
