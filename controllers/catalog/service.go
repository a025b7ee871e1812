package catalog

import (
	"errors"

	"timenest/database"
	"timenest/helpers"
	"timenest/models"
	"timenest/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RegisterServiceRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	CreditsPerHour string `json:"credits_per_hour"`
}

// Register lists a service under the calling provider. The hourly rate must
// be positive; later rate changes never retouch credits already committed
// on existing bookings.
func Register(c *fiber.Ctx) error {
	var req RegisterServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	if req.Title == "" || req.CreditsPerHour == "" {
		return helpers.JSONError(c, "TITLE_AND_CREDITS_PER_HOUR_REQUIRED")
	}

	rate, err := decimal.NewFromString(req.CreditsPerHour)
	if err != nil || !rate.IsPositive() {
		return helpers.JSONError(c, "CREDITS_PER_HOUR_MUST_BE_POSITIVE")
	}

	provider, ok := c.Locals("user").(models.User)
	if !ok {
		return helpers.JSONError(c, "INVALID_USER_SESSION")
	}

	service := models.Service{
		ServiceID:      uuid.New().String(),
		ProviderID:     provider.UserID,
		Title:          req.Title,
		Description:    req.Description,
		CreditsPerHour: rate.Round(models.CreditPrecision),
		IsActive:       true,
	}
	if err := database.DB.Create(&service).Error; err != nil {
		return helpers.JSONError(c, "FAILED_TO_CREATE_SERVICE")
	}

	return helpers.JSONSuccess(c, "Service registered successfully", serviceMap(&service))
}

func Get(c *fiber.Ctx) error {
	var service models.Service
	err := database.DB.Where("service_id = ? AND is_active = true", c.Params("id")).First(&service).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return helpers.JSONServiceError(c, services.ErrNotFound)
	}
	if err != nil {
		return helpers.JSONError(c, "FAILED_TO_LOAD_SERVICE")
	}

	return helpers.JSONSuccess(c, "Service retrieved successfully", serviceMap(&service))
}

func serviceMap(s *models.Service) fiber.Map {
	return fiber.Map{
		"service_id":       s.ServiceID,
		"provider_id":      s.ProviderID,
		"title":            s.Title,
		"description":      s.Description,
		"credits_per_hour": helpers.Amount(s.CreditsPerHour),
		"created_at":       s.CreatedAt,
	}
}
