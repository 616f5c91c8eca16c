package services

import (
	"context"
	"errors"
	"strings"

	"instant-win-system/models"
	"instant-win-system/store"
	"instant-win-system/utils"

	"github.com/rs/zerolog/log"
)

// CouponUse is one redemption attempt of a won e-coupon. RequestID makes the
// attempt idempotent when the client retries.
type CouponUse struct {
	RecordID  string
	UserID    string
	Store     string
	RequestID string
}

// CouponService tracks post-win usage of e-coupon prizes.
type CouponService struct {
	base
}

func NewCouponService(st store.Store, opts Options) *CouponService {
	opts = opts.withDefaults()
	return &CouponService{base: newBase(st, opts)}
}

// UseCoupon records one use of the coupon held by use.RecordID.
// The usage limit and the same-store rule are checked against the locked
// record, so concurrent uses never exceed the limit.
func (s *CouponService) UseCoupon(ctx context.Context, use CouponUse) (*models.ParticipationRecord, error) {
	if use.UserID == "" {
		return nil, ErrInvalidIdentity
	}
	storeName := strings.TrimSpace(use.Store)
	storeKey := utils.NormalizeStoreName(storeName)
	if use.RecordID == "" || storeKey == "" {
		return nil, ErrInvalidInput
	}

	var rec *models.ParticipationRecord
	err := s.tx.run(ctx, "coupon.use", func(tx store.Tx) error {
		rec = nil
		// 🔒 Re-fetch under lock; the checks below must see the latest usage
		r, err := tx.LockRecord(use.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		if r.UserID != use.UserID {
			return ErrNotOwner
		}
		if r.IsLoss() {
			return ErrNotAWin
		}

		coupon, err := couponDetails(r.PrizeSnapshot)
		if err != nil {
			return err
		}

		if _, ok := r.UsageByRequest(use.RequestID); ok {
			rec = r
			return ErrCouponAlreadyApplied
		}
		now := s.now()
		if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
			return ErrCouponExpired
		}
		if coupon.UsageLimit > 0 && r.CouponUsedCount >= coupon.UsageLimit {
			return ErrCouponLimitExceeded
		}
		if coupon.PreventReusingAtSameStore && r.UsedAtStore(storeKey) {
			return ErrStoreAlreadyUsed
		}

		r.CouponUsedCount++
		r.CouponUsageHistory = append(r.CouponUsageHistory, models.CouponUsage{
			Store:     storeName,
			StoreKey:  storeKey,
			RequestID: use.RequestID,
			UsedAt:    now,
		})
		if err := tx.UpdateRecordUsage(r); err != nil {
			return err
		}
		rec = r
		return nil
	})
	s.metrics.recordCouponUse(err)

	if errors.Is(err, ErrCouponAlreadyApplied) {
		return rec, err
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("record_id", rec.ID).Str("user_id", use.UserID).Str("store", storeKey).
		Int("used", rec.CouponUsedCount).Str("state", string(rec.CouponState())).Msg("🧾 [Coupon] coupon used")
	return rec, nil
}

// couponDetails returns the e-coupon variant of prize.
func couponDetails(prize *models.Prize) (*models.ECouponDetails, error) {
	variant, err := prize.Variant()
	if err != nil {
		return nil, err
	}
	switch v := variant.(type) {
	case *models.ECouponDetails:
		return v, nil
	case *models.URLDetails, *models.MailDeliveryDetails:
		return nil, ErrNotCoupon
	default:
		return nil, ErrNotCoupon
	}
}
