package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/example/paygw/internal/utils"
)

const adminContextKey = "adminUser"

// AdminBasicAuth guards admin routes with HTTP basic auth against a bcrypt hash.
// With no hash configured every request is rejected.
func AdminBasicAuth(user, passwordHash string) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm: "paygw admin",
		Authorizer: func(u, p string) bool {
			if subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 {
				return false
			}
			return utils.CheckPassword(passwordHash, p)
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="paygw admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		},
		ContextUsername: adminContextKey,
	})
}
