package credits

import (
	"time"

	"timenest/helpers"
	"timenest/models"
	"timenest/services"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// History serves the transaction-history report: newest first, paged by
// skip/limit, optionally bounded by a date range, together with the live
// balance and the unpaged total the UI uses for "load more".
func History(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_USER_SESSION")
	}

	skip := c.QueryInt("skip", 0)
	if skip < 0 {
		skip = 0
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return helpers.JSONError(c, "FROM_MUST_BE_RFC3339")
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return helpers.JSONError(c, "TO_MUST_BE_RFC3339")
		}
		to = &t
	}

	transactions, total, err := services.History(user.UserID, skip, limit, from, to)
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	balance, err := services.Balance(user.UserID)
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	out := make([]fiber.Map, 0, len(transactions))
	for i := range transactions {
		out = append(out, transactionMap(&transactions[i]))
	}

	return helpers.JSONSuccess(c, "Transactions retrieved successfully", fiber.Map{
		"transactions":    out,
		"current_balance": helpers.Amount(balance),
		"total_count":     total,
	})
}

func transactionMap(t *models.Transaction) fiber.Map {
	return fiber.Map{
		"transaction_id":   t.ID,
		"transaction_type": t.Type,
		"reference_type":   t.ReferenceType,
		"reference_id":     t.ReferenceID,
		"amount":           helpers.Amount(t.Amount),
		"balance_after":    helpers.Amount(t.BalanceAfter),
		"description":      t.Description,
		"created_at":       t.CreatedAt,
	}
}
