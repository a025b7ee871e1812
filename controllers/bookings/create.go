package bookings

import (
	"time"

	"timenest/helpers"
	"timenest/models"
	"timenest/services"

	"github.com/gofiber/fiber/v2"
)

type CreateBookingRequest struct {
	ServiceID       string `json:"service_id"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes"`
	Message         string `json:"message"`
}

func Create(c *fiber.Ctx) error {
	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	if req.ServiceID == "" || req.ScheduledAt == "" {
		return helpers.JSONError(c, "SERVICE_ID_AND_SCHEDULED_AT_REQUIRED")
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return helpers.JSONError(c, "SCHEDULED_AT_MUST_BE_RFC3339")
	}

	booker, ok := c.Locals("user").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_USER_SESSION")
	}

	booking, err := services.CreateBooking(c.Context(), services.CreateBookingInput{
		BookerID:        booker.UserID,
		ServiceID:       req.ServiceID,
		ScheduledAt:     scheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Message:         req.Message,
	})
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	return helpers.JSONSuccess(c, "Booking created successfully", bookingMap(booking))
}

func bookingMap(b *models.Booking) fiber.Map {
	return fiber.Map{
		"booking_id":        b.BookingID,
		"service_id":        b.ServiceID,
		"provider_id":       b.ProviderID,
		"booker_id":         b.BookerID,
		"scheduled_at":      b.ScheduledAt,
		"duration_minutes":  b.DurationMinutes,
		"credits_committed": helpers.Amount(b.CreditsCommitted),
		"status":            b.Status,
		"message":           b.Message,
		"created_at":        b.CreatedAt,
	}
}
