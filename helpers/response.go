package helpers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"timenest/models"
	"timenest/services"
)

func JSONSuccess(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func JSONError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
		"data":    nil,
	})
}

// JSONServiceError renders the core's typed failures with enough detail for
// the caller to act without re-querying: the shortfall on an insufficient
// balance, current vs attempted state on a bad transition.
func JSONServiceError(c *fiber.Ctx, err error) error {
	var insufficient *services.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"success": false,
			"message": "INSUFFICIENT_CREDITS",
			"data": fiber.Map{
				"available": Amount(insufficient.Available),
				"required":  Amount(insufficient.Required),
				"shortfall": Amount(insufficient.Shortfall),
			},
		})
	}

	var transition *services.InvalidStatusTransitionError
	if errors.As(err, &transition) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "INVALID_STATUS_TRANSITION",
			"data": fiber.Map{
				"current_status":   transition.Current,
				"requested_status": transition.Requested,
			},
		})
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false, "message": "NOT_FOUND", "data": nil,
		})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false, "message": "FORBIDDEN", "data": nil,
		})
	case errors.Is(err, services.ErrInvalidAmount):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false, "message": "INVALID_AMOUNT", "data": nil,
		})
	case errors.Is(err, services.ErrInvalidDuration):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false, "message": "INVALID_DURATION", "data": nil,
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false, "message": "INTERNAL_ERROR", "data": nil,
	})
}

// Amount renders a credit value at the ledger's fixed precision, so running
// balances in responses never pick up floating-point drift.
func Amount(d decimal.Decimal) string {
	return d.StringFixed(models.CreditPrecision)
}
