package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/paygw/internal/utils"
)

const (
	userContextKey = "currentUserID"

	// SessionCookie carries the host session for browser redirects, which cannot set headers.
	SessionCookie = "paygw_session"
)

// AuthMiddleware validates the host session JWT and loads the user ID into context.
// The Authorization header wins over the session cookie.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := sessionToken(c)
		if err != nil {
			return err
		}

		userID, err := utils.ParseSessionToken(secret, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(userContextKey, userID)
		return c.Next()
	}
}

func sessionToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if cookie := c.Cookies(SessionCookie); cookie != "" {
			return cookie, nil
		}
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(userContextKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
