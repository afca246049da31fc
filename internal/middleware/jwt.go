package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-activity-log/internal/utils"
)

// Locals keys populated from token claims.
const (
	LocalUserID       = "user_id"
	LocalUserRole     = "user_role"
	LocalUserEmail    = "user_email"
	LocalUsername     = "username"
	LocalUserFullName = "user_full_name"
)

// JWTProtected returns a middleware that validates JWT bearer tokens.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		claims, message := parseBearer(authorization, secret)
		if claims == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, message)
		}

		bindClaims(c, claims)
		return c.Next()
	}
}

// OptionalJWT binds the caller identity when a valid bearer token is present
// and lets anonymous or badly-authenticated requests through as guests.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return c.Next()
		}

		if claims, _ := parseBearer(authorization, secret); claims != nil {
			bindClaims(c, claims)
		}
		return c.Next()
	}
}

func parseBearer(authorization, secret string) (jwt.MapClaims, string) {
	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return nil, "invalid authorization header"
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return nil, "invalid token"
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, "invalid token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "invalid token claims"
	}
	return claims, ""
}

func bindClaims(c *fiber.Ctx, claims jwt.MapClaims) {
	if userID := extractUserIDFromClaims(claims); userID != nil {
		c.Locals(LocalUserID, *userID)
	}
	if role := extractUserRoleFromClaims(claims); role != "" {
		c.Locals(LocalUserRole, role)
	}
	if email := stringClaim(claims, "email"); email != "" {
		c.Locals(LocalUserEmail, strings.ToLower(email))
	}
	if username := stringClaim(claims, "username", "preferred_username"); username != "" {
		c.Locals(LocalUsername, username)
	}
	if name := stringClaim(claims, "name", "full_name"); name != "" {
		c.Locals(LocalUserFullName, name)
	}
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if value, ok := claims[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil && normalized != 0 {
				return &normalized
			}
		}
	}

	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				role := strings.ToLower(strings.TrimSpace(str))
				if role != "" {
					return role
				}
			}
		}
	}
	return ""
}
