package middleware

import (
	"strings"

	"alumninexus/server/internal/models"
	"alumninexus/server/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// tokenFrom reads the access token from the Authorization header, the token
// cookie or, for websocket upgrades, the access_token query parameter.
func tokenFrom(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie := c.Cookies("token"); cookie != "" {
		return cookie
	}
	return c.Query("access_token")
}

// Auth validates the JWT access token signed with secret
func Auth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := tokenFrom(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized - No token provided",
			})
		}

		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized - Invalid token",
			})
		}

		// Store user info in context
		c.Locals("userID", claims.Identity())
		c.Locals("email", claims.Email)

		return c.Next()
	}
}

// GetUserID gets user ID from context
func GetUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals("userID").(string)
	if !ok {
		return ""
	}
	return userID
}

// GetPrincipal returns the authenticated actor of the request
func GetPrincipal(c *fiber.Ctx) models.Principal {
	return models.Principal{UserID: GetUserID(c)}
}

// GetUserEmail gets user email from context
func GetUserEmail(c *fiber.Ctx) string {
	email, ok := c.Locals("email").(string)
	if !ok {
		return ""
	}
	return email
}
