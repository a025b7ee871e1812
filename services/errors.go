package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"timenest/models"
)

var (
	ErrNotFound        = errors.New("NOT_FOUND")
	ErrForbidden       = errors.New("FORBIDDEN")
	ErrInvalidAmount   = errors.New("INVALID_AMOUNT")
	ErrInvalidDuration = errors.New("INVALID_DURATION")
)

// InsufficientCreditsError is recoverable and user-facing: the caller gets
// the exact shortfall so it can prompt a top-up or a shorter duration
// without re-querying.
type InsufficientCreditsError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %s, have %s (short %s)",
		e.Required.StringFixed(models.CreditPrecision),
		e.Available.StringFixed(models.CreditPrecision),
		e.Shortfall.StringFixed(models.CreditPrecision))
}

// InvalidStatusTransitionError carries current vs attempted status so a
// retrying caller can tell "already applied" from a real bug.
type InvalidStatusTransitionError struct {
	Current   models.BookingStatus
	Requested models.BookingStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.Current, e.Requested)
}

// LedgerConsistencyError means a stored balance snapshot no longer matches
// the running sum of its ledger. It indicates a concurrency-discipline bug,
// is never swallowed, and aborts the enclosing operation.
type LedgerConsistencyError struct {
	UserID   string
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *LedgerConsistencyError) Error() string {
	return fmt.Sprintf("ledger consistency violation for user %s: running sum %s, stored tail %s",
		e.UserID, e.Expected.StringFixed(models.CreditPrecision), e.Got.StringFixed(models.CreditPrecision))
}
