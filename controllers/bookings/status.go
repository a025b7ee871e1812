package bookings

import (
	"timenest/helpers"
	"timenest/models"
	"timenest/services"

	"github.com/gofiber/fiber/v2"
)

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus drives every lifecycle action the bookings UI performs:
// confirm, reject, cancel, complete. The state machine decides whether the
// caller may make the move; repeated submissions of the same target fail
// with the current status attached instead of double-applying.
func UpdateStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	if req.Status == "" {
		return helpers.JSONError(c, "STATUS_REQUIRED")
	}

	actor, ok := c.Locals("user").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_USER_SESSION")
	}

	booking, err := services.TransitionBooking(
		c.Context(), c.Params("id"), models.BookingStatus(req.Status), actor.UserID)
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	return helpers.JSONSuccess(c, "Booking status updated successfully", bookingMap(booking))
}
