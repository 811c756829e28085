package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"teamboard/internal/auth"
	"teamboard/internal/models"
	"teamboard/internal/repository"
	"teamboard/pkg/logger"
)

const (
	LocalUserID = "userID"
	LocalUser   = "user"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It returns "" when the header is missing or malformed.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// UseToken verifies the bearer token and loads the user it names. The user id
// and summary are stored in the request locals.
func UseToken(issuer *auth.Issuer, users repository.UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "No token, authorization denied"})
		}
		userID, err := issuer.Verify(token)
		if err != nil {
			logger.SecurityLogger.Warn("Rejected token", zap.String("ip", c.IP()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Token is not valid"})
		}
		u, err := users.GetUserByID(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "User not found"})
			}
			logger.ErrorLogger.Error("Error loading token user", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Server error"})
		}
		c.Locals(LocalUserID, u.ID)
		c.Locals(LocalUser, u.Summary())
		return c.Next()
	}
}

// UserID returns the authenticated user id set by UseToken.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
