package handlers

import (
	"context"

	"instant-win-system/middleware"
	"instant-win-system/models"
	"instant-win-system/services"

	"github.com/gofiber/fiber/v2"
)

// URLPoolSource loads a prize URL list stored as an object (R2 in production).
type URLPoolSource interface {
	FetchURLPool(ctx context.Context, key string) ([]string, error)
}

// Services bundles what the HTTP layer calls into.
type Services struct {
	Campaigns *services.CampaignService
	Draws     *services.DrawService
	Claims    *services.ClaimService
	Requests  *services.RequestService
	Coupons   *services.CouponService
	Records   *services.RecordService
	Chances   *services.ChanceService

	// URLPool is optional; object_key imports fail without it.
	URLPool URLPoolSource
}

// SetupRoutes registers the user and admin APIs. Gateway auth is applied
// globally by the caller; every group here also needs a user context.
func SetupRoutes(app *fiber.App, svc *Services, drawLimiter fiber.Handler) {
	SetupCampaignRoutes(app.Group("/campaigns", middleware.UserContextMiddleware()), svc, drawLimiter)
	SetupRecordRoutes(app.Group("/records", middleware.UserContextMiddleware()), svc)
	SetupAdminRoutes(app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRole(middleware.RoleAdmin)), svc)
}

// campaignRules loads the snapshot for the :id param.
func campaignRules(c *fiber.Ctx, svc *Services) (*models.CampaignRules, error) {
	return svc.Campaigns.Rules(c.UserContext(), c.Params("id"))
}
