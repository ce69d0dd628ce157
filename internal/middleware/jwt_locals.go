package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/utils"
)

// AttachJWTLocals exposes the session as Locals("uid") (int) and
// Locals("role"). It must run after JWTFromCookie.
func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := claimsFrom(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		uid, err := claims.AccountUID()
		if err != nil || uid <= 0 {
			return fiber.ErrUnauthorized
		}

		c.Locals("uid", uid)
		c.Locals("role", normalizeRole(claims.Role))
		return c.Next()
	}
}

// SessionUID returns the authenticated uid, or 0 for anonymous requests.
func SessionUID(c *fiber.Ctx) int {
	uid, _ := c.Locals("uid").(int)
	return uid
}

func claimsFrom(c *fiber.Ctx) (*utils.Claims, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	claims, ok := token.Claims.(*utils.Claims)
	return claims, ok
}

func normalizeRole(r string) string {
	return strings.ToLower(strings.TrimSpace(r))
}
