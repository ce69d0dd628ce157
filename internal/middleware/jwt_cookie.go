package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/utils"
)

// JWTFromCookie rejects requests without a valid session cookie and stores
// the parsed token under Locals("user").
func JWTFromCookie(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(utils.SessionCookie)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		token, _, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("user", token)
		return c.Next()
	}
}

// OptionalJWT attaches session locals when a valid cookie is present and
// lets anonymous requests through untouched.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(utils.SessionCookie)
		if tokenStr == "" {
			return c.Next()
		}
		token, claims, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return c.Next()
		}
		uid, err := claims.AccountUID()
		if err != nil {
			return c.Next()
		}
		c.Locals("user", token)
		c.Locals("uid", uid)
		c.Locals("role", normalizeRole(claims.Role))
		return c.Next()
	}
}
