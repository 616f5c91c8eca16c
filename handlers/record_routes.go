package handlers

import (
	"errors"

	"instant-win-system/middleware"
	"instant-win-system/models"
	"instant-win-system/services"

	"github.com/gofiber/fiber/v2"
)

type couponUseRequest struct {
	Store     string `json:"store"`
	RequestID string `json:"request_id"`
}

type questionnaireRequest struct {
	Answers map[string]string `json:"answers"`
}

// SetupRecordRoutes registers the post-win endpoints under r.
func SetupRecordRoutes(r fiber.Router, svc *Services) {
	r.Post("/:id/coupon/use", useCouponHandler(svc))
	r.Put("/:id/shipping", shippingHandler(svc))
	r.Put("/:id/questionnaire", questionnaireHandler(svc))
}

func useCouponHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req couponUseRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.RequestID == "" {
			req.RequestID = c.Get("Idempotency-Key")
		}

		rec, err := svc.Coupons.UseCoupon(c.UserContext(), services.CouponUse{
			RecordID:  c.Params("id"),
			UserID:    middleware.UserID(c),
			Store:     req.Store,
			RequestID: req.RequestID,
		})
		if errors.Is(err, services.ErrCouponAlreadyApplied) && rec != nil {
			return c.JSON(fiber.Map{
				"record":          rec,
				"coupon_state":    rec.CouponState(),
				"already_applied": true,
			})
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"record":          rec,
			"coupon_state":    rec.CouponState(),
			"already_applied": false,
		})
	}
}

func shippingHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var addr models.ShippingAddress
		if err := c.BodyParser(&addr); err != nil {
			return badRequest(c, "invalid request body")
		}
		rec, err := svc.Records.SetShippingAddress(c.UserContext(), c.Params("id"), middleware.UserID(c), addr)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	}
}

func questionnaireHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req questionnaireRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		rec, err := svc.Records.SetQuestionnaireAnswers(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Answers)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	}
}
