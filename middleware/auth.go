package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Locals keys set by UserContextMiddleware.
const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
)

// RoleAdmin is the gateway role allowed on /admin routes.
const RoleAdmin = "admin"

// UserContextMiddleware extracts the user identity and roles set by the
// Gateway. Requests without X-User-ID are refused.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Warn().Str("path", c.Path()).Msg("❌ [USER_CTX] X-User-ID required but missing")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		// Attach to ctx for handlers
		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)

		log.Debug().Str("user_id", userID).Strs("roles", roles).Str("path", c.Path()).Msg("👤 [USER_CTX] user context attached")
		return c.Next()
	}
}

// RequireRole refuses users that lack role. It must run after
// UserContextMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalUserRoles).([]string)
		for _, r := range roles {
			if strings.EqualFold(r, role) {
				return c.Next()
			}
		}
		log.Warn().Str("user_id", UserID(c)).Str("role", role).Str("path", c.Path()).Msg("🚫 [USER_CTX] role required")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient role"})
	}
}

// UserID returns the identity attached by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
