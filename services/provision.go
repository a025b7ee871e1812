package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"timenest/database"
	"timenest/models"
)

// ProvisionUser creates an account and its genesis bonus entry as one
// atomic unit: a failed bonus append rolls the user row back out, so no
// account ever exists with a half-written ledger. Returns the user and the
// opening balance.
func ProvisionUser(ctx context.Context, name, email string, bonus decimal.Decimal) (*models.User, decimal.Decimal, error) {
	user := &models.User{
		UserID:   uuid.New().String(),
		Name:     name,
		Email:    email,
		ApiKey:   uuid.New().String(),
		IsActive: true,
	}

	balance := decimal.Zero
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if bonus.IsPositive() {
			// The insert above already holds the new row's lock for the
			// rest of this transaction.
			entry, err := Append(tx, user.UserID, models.TxBonus, models.RefBonus, user.UserID, bonus, "Welcome bonus")
			if err != nil {
				return err
			}
			balance = entry.BalanceAfter
		}
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return user, balance, nil
}
