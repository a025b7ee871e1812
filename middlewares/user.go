package middlewares

import (
	"os"

	"timenest/database"
	"timenest/helpers"
	"timenest/models"

	"github.com/gofiber/fiber/v2"
)

func UserAuthMiddleware(c *fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	apiKey := c.Get("X-Api-Key")

	if userID == "" || apiKey == "" {
		return helpers.JSONError(c, "USER_ID_AND_API_KEY_REQUIRED")
	}

	var user models.User
	if err := database.DB.Where("user_id = ? AND api_key = ? AND is_active = true", userID, apiKey).First(&user).Error; err != nil {
		return helpers.JSONError(c, "INVALID_USER_CREDENTIALS")
	}

	c.Locals("user", user)
	return c.Next()
}

func AdminAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminKey := os.Getenv("ADMIN_API_KEY")
		if adminKey == "" || c.Get("X-Admin-Key") != adminKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "INVALID_ADMIN_KEY",
			})
		}
		return c.Next()
	}
}
