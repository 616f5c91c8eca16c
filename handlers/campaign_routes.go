package handlers

import (
	"instant-win-system/middleware"
	"instant-win-system/models"
	"instant-win-system/services"

	"github.com/gofiber/fiber/v2"
)

type participateRequest struct {
	UseMultiple bool `json:"use_multiple"`
}

type participateResponse struct {
	Records []models.ParticipationRecord `json:"records"`
	Summary services.DrawSummary         `json:"summary"`
}

type claimRequest struct {
	Kind     services.GrantSourceKind `json:"kind"`
	SourceID string                   `json:"source_id"`
	Token    string                   `json:"token"`
}

type submitRequest struct {
	FormData map[string]string `json:"form_data"`
}

// SetupCampaignRoutes registers the player-facing campaign API under r.
func SetupCampaignRoutes(r fiber.Router, svc *Services, drawLimiter fiber.Handler) {
	participate := []fiber.Handler{}
	if drawLimiter != nil {
		participate = append(participate, drawLimiter)
	}
	participate = append(participate, participateHandler(svc))

	r.Get("/:id/chances", chancesHandler(svc))
	r.Post("/:id/participate", participate...)
	r.Post("/:id/claims", claimHandler(svc))
	r.Post("/:id/requests", submitRequestHandler(svc))
	r.Get("/:id/records", listRecordsHandler(svc))
}

func chancesHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rules, err := campaignRules(c, svc)
		if err != nil {
			return respondError(c, err)
		}
		status, err := svc.Draws.ChanceStatus(c.UserContext(), rules, middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(status)
	}
}

func participateHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req participateRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body")
			}
		}

		rules, err := campaignRules(c, svc)
		if err != nil {
			return respondError(c, err)
		}
		records, err := svc.Draws.Participate(c.UserContext(), rules, middleware.UserID(c), req.UseMultiple)
		if err != nil && len(records) == 0 {
			return respondError(c, err)
		}

		// A batch cut short still reports what was committed.
		return c.Status(fiber.StatusCreated).JSON(participateResponse{
			Records: records,
			Summary: services.SummarizeResults(records),
		})
	}
}

func claimHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req claimRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.Kind == "" {
			req.Kind = services.GrantSourceTicket
		}
		if req.SourceID == "" {
			return badRequest(c, "source_id is required")
		}

		rules, err := campaignRules(c, svc)
		if err != nil {
			return respondError(c, err)
		}
		res, err := svc.Claims.Claim(c.UserContext(), rules, middleware.UserID(c), services.GrantSource{
			Kind:  req.Kind,
			ID:    req.SourceID,
			Token: req.Token,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

func submitRequestHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req submitRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}

		rules, err := campaignRules(c, svc)
		if err != nil {
			return respondError(c, err)
		}
		pr, err := svc.Requests.Submit(c.UserContext(), rules, middleware.UserID(c), req.FormData)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(pr)
	}
}

func listRecordsHandler(svc *Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 0)
		if limit < 0 {
			return badRequest(c, "limit must not be negative")
		}
		records, err := svc.Records.ListUserRecords(c.UserContext(), c.Params("id"), middleware.UserID(c), services.RecordFilter{
			Outcome: services.ParseRecordOutcome(c.Query("outcome")),
			Limit:   limit,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"records": records})
	}
}
