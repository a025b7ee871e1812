package models

import (
	"github.com/shopspring/decimal"
)

// CreditPrecision is the fixed decimal precision of every ledger amount.
const CreditPrecision = 2

var minutesPerHour = decimal.NewFromInt(60)

// CreditsCommitted prices a booking: hourly rate prorated over the
// requested duration, rounded to the ledger precision. The rounding pins
// 1.5 credits/hour over 45 minutes at 1.13, matching the balances already
// recorded against live data.
func CreditsCommitted(creditsPerHour decimal.Decimal, durationMinutes int) decimal.Decimal {
	mins := decimal.NewFromInt(int64(durationMinutes))
	return creditsPerHour.Mul(mins).Div(minutesPerHour).Round(CreditPrecision)
}
