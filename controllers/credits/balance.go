package credits

import (
	"timenest/helpers"
	"timenest/models"
	"timenest/services"

	"github.com/gofiber/fiber/v2"
)

// Balance serves the dashboard credit widget.
func Balance(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_USER_SESSION")
	}

	summary, err := services.BalanceSummaryFor(c.Context(), user.UserID)
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	return helpers.JSONSuccess(c, "Balance retrieved successfully", fiber.Map{
		"current_balance": helpers.Amount(summary.CurrentBalance),
		"total_earned":    helpers.Amount(summary.TotalEarned),
		"total_spent":     helpers.Amount(summary.TotalSpent),
		"last_updated":    summary.LastUpdated,
	})
}
