package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"instant-win-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// errorCodes gives clients a stable identifier for each sentinel.
var errorCodes = []struct {
	err  error
	code string
}{
	{services.ErrInvalidIdentity, "invalid_identity"},
	{services.ErrInvalidInput, "invalid_input"},
	{services.ErrSourceInvalid, "source_invalid"},
	{services.ErrNotOwner, "not_owner"},
	{services.ErrNotCoupon, "not_coupon"},
	{services.ErrNotMailDelivery, "not_mail_delivery"},
	{services.ErrCampaignMissing, "campaign_not_found"},
	{services.ErrRecordNotFound, "record_not_found"},
	{services.ErrRequestNotFound, "request_not_found"},
	{services.ErrPrizeNotFound, "prize_not_found"},
	{services.ErrLimitReached, "limit_reached"},
	{services.ErrCooldown, "cooldown"},
	{services.ErrTicketRequired, "ticket_required"},
	{services.ErrApprovalRequired, "approval_required"},
	{services.ErrApprovalPending, "approval_pending"},
	{services.ErrApprovalNotRequired, "approval_not_required"},
	{services.ErrOutOfStock, "out_of_stock"},
	{services.ErrCampaignClosed, "campaign_closed"},
	{services.ErrStoreAlreadyUsed, "store_already_used"},
	{services.ErrCouponLimitExceeded, "coupon_limit_exceeded"},
	{services.ErrCouponExpired, "coupon_expired"},
	{services.ErrRequestNotPending, "request_not_pending"},
	{services.ErrNotAWin, "not_a_win"},
	{services.ErrUnsupportedPrizeType, "unsupported_prize_type"},
	{services.ErrAlreadyClaimed, "already_claimed"},
	{services.ErrCouponAlreadyApplied, "already_applied"},
	{services.ErrAlreadyReviewed, "already_reviewed"},
	{services.ErrTransientFailure, "transient_failure"},
}

func errorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal_error"
}

// respondError writes the JSON error body matching the error kind.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindValidation:
		status = fiber.StatusBadRequest
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindBusinessRule:
		status = fiber.StatusConflict
		var cooldown *services.CooldownError
		if errors.As(err, &cooldown) {
			status = fiber.StatusTooManyRequests
			secs := int(time.Until(cooldown.RetryAfter).Seconds()) + 1
			if secs < 1 {
				secs = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return c.Status(status).JSON(fiber.Map{
				"error":       err.Error(),
				"code":        errorCode(err),
				"retry_after": cooldown.RetryAfter,
			})
		}
	case services.KindAlreadyDone:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"error":        err.Error(),
			"code":         errorCode(err),
			"already_done": true,
		})
	case services.KindTransient:
		status = fiber.StatusServiceUnavailable
	default:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = fiber.StatusServiceUnavailable
		}
	}

	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ [HTTP] unexpected error")
		return c.Status(status).JSON(fiber.Map{"error": "internal error", "code": errorCode(err)})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "code": errorCode(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": "invalid_input"})
}
