package users

import (
	"errors"
	"os"

	"timenest/database"
	"timenest/helpers"
	"timenest/models"
	"timenest/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

const defaultSignupBonus = "10.00"

func signupBonus() decimal.Decimal {
	raw := os.Getenv("SIGNUP_BONUS")
	if raw == "" {
		raw = defaultSignupBonus
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		amount, _ = decimal.NewFromString(defaultSignupBonus)
	}
	return amount
}

// Register provisions a user and posts the signup bonus as the ledger's
// genesis entry, so the derived balance starts above zero the way every
// timebank account does.
func Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	if req.Name == "" || req.Email == "" {
		return helpers.JSONError(c, "NAME_AND_EMAIL_REQUIRED")
	}

	var existing models.User
	if err := database.DB.Where("email = ?", req.Email).First(&existing).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		return helpers.JSONError(c, "EMAIL_ALREADY_REGISTERED")
	}

	user, balance, err := services.ProvisionUser(c.Context(), req.Name, req.Email, signupBonus())
	if err != nil {
		return helpers.JSONServiceError(c, err)
	}

	return helpers.JSONSuccess(c, "User registered successfully", fiber.Map{
		"user_id": user.UserID,
		"api_key": user.ApiKey,
		"balance": helpers.Amount(balance),
	})
}
