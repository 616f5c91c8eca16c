package handlers

import (
	"instant-win-system/middleware"
	"instant-win-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type saveCampaignRequest struct {
	Campaign models.Campaign `json:"campaign"`
	Prizes   []models.Prize  `json:"prizes"`
}

type approveRequest struct {
	Chances *int `json:"chances,omitempty"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type grantChancesRequest struct {
	Chances int `json:"chances"`
}

type addURLsRequest struct {
	URLs      []string `json:"urls"`
	ObjectKey string   `json:"object_key"`
}

// SetupAdminRoutes registers campaign management under r. The caller is
// expected to have applied RequireRole(RoleAdmin).
func SetupAdminRoutes(r fiber.Router, svc *Services) {
	r.Put("/campaigns/:id", saveCampaignHandler(svc))
	r.Get("/campaigns/:id/stats", statsHandler(svc))

	r.Post("/campaigns/:id/requests/:request_id/approve", approveHandler(svc))
	r.Post("/campaigns/:id/requests/:request_id/reject", rejectHandler(svc))

	r.Post("/campaigns/:id/users/:user_id/chances", grantChancesHandler(svc))
	r.Delete("/campaigns/:id/users/:user_id/chances", resetChancesHandler(svc))

	r.Post("/campaigns/:id/prizes/:prize_id/urls", addURLsHandler(svc))
}

func saveCampaignHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req saveCampaignRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		id := c.Params("id")
		req.Campaign.ID = id
		for i := range req.Prizes {
			req.Prizes[i].CampaignID = id
		}

		rules, err := svc.Campaigns.Save(c.UserContext(), &req.Campaign, req.Prizes)
		if err != nil {
			return respondError(c, err)
		}
		log.Info().Str("campaign_id", id).Str("admin", middleware.UserID(c)).Msg("🛠️ [Admin] campaign saved")
		return c.JSON(fiber.Map{
			"campaign":          req.Campaign,
			"prizes":            rules.Prizes,
			"consolation_prize": rules.ConsolationPrize,
		})
	}
}

func statsHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.Campaigns.Stats(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	}
}

func approveHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req approveRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body")
			}
		}

		rules, err := campaignRules(c, svc)
		if err != nil {
			return respondError(c, err)
		}
		pr, res, err := svc.Requests.Approve(c.UserContext(), rules, c.Params("request_id"), middleware.UserID(c), req.Chances)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"request": pr, "claim": res})
	}
}

func rejectHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req rejectRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body")
			}
		}

		pr, err := svc.Requests.Reject(c.UserContext(), c.Params("id"), c.Params("request_id"), middleware.UserID(c), req.Reason)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"request": pr})
	}
}

func grantChancesHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req grantChancesRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		o, err := svc.Chances.GrantChances(c.UserContext(), c.Params("id"), c.Params("user_id"), req.Chances)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(o)
	}
}

func resetChancesHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := svc.Chances.ResetChances(c.UserContext(), c.Params("id"), c.Params("user_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(o)
	}
}

func addURLsHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req addURLsRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}

		urls := req.URLs
		if req.ObjectKey != "" {
			if svc.URLPool == nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "object storage is not configured",
					"code":  "storage_unavailable",
				})
			}
			pooled, err := svc.URLPool.FetchURLPool(c.UserContext(), req.ObjectKey)
			if err != nil {
				log.Error().Err(err).Str("object_key", req.ObjectKey).Msg("❌ [Admin] failed to load URL pool")
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
					"error": "failed to load URL pool",
					"code":  "storage_error",
				})
			}
			urls = append(urls, pooled...)
		}

		added, err := svc.Campaigns.AddPrizeURLs(c.UserContext(), c.Params("id"), c.Params("prize_id"), urls)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"added": added})
	}
}
