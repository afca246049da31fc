package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-activity-log/internal/utils"
)

// roleGrants lists the roles each role satisfies. Admins pass every staff check.
var roleGrants = map[string][]string{
	AuthRoleAdmin: {AuthRoleAdmin, AuthRoleStaff},
	AuthRoleStaff: {AuthRoleStaff},
}

// RequireRole ensures that the authenticated user holds, directly or through
// roleGrants, one of the allowed roles. Requests without a role get 401.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals(LocalUserRole))
		if role == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if !roleSatisfies(role, allowed) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}
		return c.Next()
	}
}

func roleSatisfies(role string, allowed map[string]struct{}) bool {
	granted, ok := roleGrants[role]
	if !ok {
		granted = []string{role}
	}
	for _, candidate := range granted {
		if _, ok := allowed[candidate]; ok {
			return true
		}
	}
	return false
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
