package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timenest/database"
	"timenest/models"
)

// The ledger is append-only: entries are created, never updated or deleted,
// and every write for one user happens under that user's row lock so the
// running balance is computed against a stable tail.

// LockUser takes the per-user write lock for the duration of the enclosing
// transaction. Every path that appends to a user's ledger goes through this
// first; appends for different users proceed in parallel.
func LockUser(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND is_active = true", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func tailTransaction(tx *gorm.DB, userID string) (*models.Transaction, error) {
	var last models.Transaction
	err := tx.Where("user_id = ?", userID).Order("id DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &last, nil
}

// TailBalance returns the balance_after of the user's most recent
// transaction, or zero when the ledger is empty.
func TailBalance(tx *gorm.DB, userID string) (decimal.Decimal, error) {
	last, err := tailTransaction(tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if last == nil {
		return decimal.Zero, nil
	}
	return last.BalanceAfter, nil
}

// Append writes one ledger entry. The caller must already hold the user's
// row lock (LockUser) inside tx; balance_after is the previous tail plus
// amount, and the stored tail is cross-checked against the recomputed
// running sum before anything is written. A mismatch is fatal and aborts
// the enclosing transaction.
func Append(tx *gorm.DB, userID string, typ models.TransactionType, refType models.ReferenceType, refID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	// Normalize to ledger precision once, up front: callers hand us
	// unconstrained decimals (admin adjustments, env-sourced bonuses),
	// and rounding the amount and the snapshot separately would let
	// prev + amount drift from balance_after. An amount that vanishes at
	// ledger precision is a zero amount.
	amount = amount.Round(models.CreditPrecision)
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	prev, err := TailBalance(tx, userID)
	if err != nil {
		return nil, err
	}

	var sum decimal.Decimal
	if err := tx.Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		return nil, err
	}
	if !sum.Equal(prev) {
		return nil, &LedgerConsistencyError{UserID: userID, Expected: sum, Got: prev}
	}

	entry := models.Transaction{
		UserID:        userID,
		Type:          typ,
		ReferenceType: refType,
		ReferenceID:   refID,
		Amount:        amount,
		BalanceAfter:  prev.Add(amount),
		Description:   description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// AppendWithLock opens the canonical locked transaction around a single
// append. Used by the bonus and adjustment paths that post entries outside
// a booking transition.
func AppendWithLock(ctx context.Context, userID string, typ models.TransactionType, refType models.ReferenceType, refID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	var entry *models.Transaction
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := LockUser(tx, userID); err != nil {
			return err
		}
		var err error
		entry, err = Append(tx, userID, typ, refType, refID, amount, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	InvalidateBalance(ctx, userID)
	return entry, nil
}

// Balance reads the ledger tail without taking the write lock.
func Balance(userID string) (decimal.Decimal, error) {
	return TailBalance(database.DB, userID)
}

// History pages a user's transactions newest-first, optionally bounded by
// a created_at range, and reports the unpaged total.
func History(userID string, skip, limit int, from, to *time.Time) ([]models.Transaction, int64, error) {
	q := database.DB.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []models.Transaction
	if err := q.Order("id DESC").Offset(skip).Limit(limit).Find(&transactions).Error; err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

// Totals aggregates lifetime earned and spent at read time. Earned is the
// positive earning/bonus/adjustment entries; spent is the debit side of
// payments plus holds that were never released. Never authoritative over
// the ledger itself.
func Totals(userID string) (earned, spent decimal.Decimal, err error) {
	var transactions []models.Transaction
	if err = database.DB.Where("user_id = ?", userID).Order("id ASC").Find(&transactions).Error; err != nil {
		return
	}

	released := make(map[string]bool)
	for _, t := range transactions {
		if t.Type == models.TxReservationRelease {
			released[t.ReferenceID] = true
		}
	}

	for _, t := range transactions {
		switch t.Type {
		case models.TxEarning, models.TxBonus:
			if t.Amount.IsPositive() {
				earned = earned.Add(t.Amount)
			}
		case models.TxAdjustment:
			if t.Amount.IsPositive() {
				earned = earned.Add(t.Amount)
			}
		case models.TxPayment:
			if t.Amount.IsNegative() {
				spent = spent.Add(t.Amount.Abs())
			}
		case models.TxReservationHold:
			if !released[t.ReferenceID] {
				spent = spent.Add(t.Amount.Abs())
			}
		}
	}
	return
}
