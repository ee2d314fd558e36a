package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// Role names accepted by RequireRole.
const (
	AuthRoleStudent   = "student"
	AuthRoleProfessor = "professor"
	AuthRoleAdmin     = "admin"
	// AuthRoleStaff accepts professors and admins.
	AuthRoleStaff = "staff"
)

// RequireRole lets the request through when the authenticated user holds one
// of roles. It answers 401 when JWTProtected did not identify a user and 403
// when the role does not match.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles)+1)
	for _, role := range roles {
		switch normalized := strings.ToLower(strings.TrimSpace(role)); normalized {
		case "":
		case AuthRoleStaff:
			allowed[AuthRoleProfessor] = struct{}{}
			allowed[AuthRoleAdmin] = struct{}{}
		default:
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals("user_id").(uint); !ok || id == 0 {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentification requise", nil)
		}

		role, _ := c.Locals("user_role").(string)
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; !ok {
			return utils.Fail(c, fiber.StatusForbidden, "accès refusé", nil)
		}
		return c.Next()
	}
}
