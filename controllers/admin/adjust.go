package admin

import (
	"timenest/helpers"
	"timenest/models"
	"timenest/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AdjustRequest struct {
	UserID      string `json:"user_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// Adjust posts a signed admin adjustment straight onto a user's ledger.
// Positive grants, negative corrects; zero is rejected by the ledger.
func Adjust(c *fiber.Ctx) error {
	var req AdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	if req.UserID == "" || req.Amount == "" {
		return helpers.JSONError(c, "USER_ID_AND_AMOUNT_REQUIRED")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return helpers.JSONError(c, "AMOUNT_MUST_BE_DECIMAL")
	}

	description := req.Description
	if description == "" {
		description = "Admin adjustment"
	}

	entry, err := services.AppendWithLock(c.Context(), req.UserID,
		models.TxAdjustment, models.RefAdmin, uuid.New().String(), amount, description)
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	return helpers.JSONSuccess(c, "Adjustment applied successfully", fiber.Map{
		"transaction_id": entry.ID,
		"user_id":        entry.UserID,
		"amount":         helpers.Amount(entry.Amount),
		"balance_after":  helpers.Amount(entry.BalanceAfter),
		"created_at":     entry.CreatedAt,
	})
}
