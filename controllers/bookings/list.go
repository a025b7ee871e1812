package bookings

import (
	"timenest/helpers"
	"timenest/models"
	"timenest/services"

	"github.com/gofiber/fiber/v2"
)

func List(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_USER_SESSION")
	}

	status := models.BookingStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		return helpers.JSONError(c, "UNKNOWN_STATUS_FILTER")
	}

	bookings, err := services.ListBookings(user.UserID, c.Query("role"), status)
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	out := make([]fiber.Map, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookingMap(&bookings[i]))
	}

	return helpers.JSONSuccess(c, "Bookings retrieved successfully", fiber.Map{
		"bookings": out,
		"count":    len(out),
	})
}

func Get(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_USER_SESSION")
	}

	booking, err := services.GetBooking(c.Params("id"))
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	// Only the two parties may read a booking.
	if booking.BookerID != user.UserID && booking.ProviderID != user.UserID {
		return helpers.JSONServiceError(c, services.ErrForbidden)
	}

	return helpers.JSONSuccess(c, "Booking retrieved successfully", bookingMap(booking))
}
