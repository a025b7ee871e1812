package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TxReservationHold    TransactionType = "reservation_hold"
	TxReservationRelease TransactionType = "reservation_release"
	TxEarning            TransactionType = "earning"
	TxPayment            TransactionType = "payment"
	TxRefund             TransactionType = "refund"
	TxBonus              TransactionType = "bonus"
	TxAdjustment         TransactionType = "adjustment"
)

type ReferenceType string

const (
	RefBooking ReferenceType = "booking"
	RefService ReferenceType = "service"
	RefBonus   ReferenceType = "bonus"
	RefAdmin   ReferenceType = "admin"
)

// Transaction is one append-only ledger entry. Rows are never updated or
// deleted once written; the autoincrement ID is the transaction_id and is
// monotonic within every user's ledger. Amount is signed: positive credits
// the user, negative debits. BalanceAfter snapshots the running sum and is
// verified against it at write time.
type Transaction struct {
	gorm.Model

	UserID        string          `gorm:"index:idx_tx_user;size:36" json:"user_id"`
	Type          TransactionType `gorm:"size:24" json:"transaction_type"`
	ReferenceType ReferenceType   `gorm:"size:16" json:"reference_type"`
	ReferenceID   string          `gorm:"index;size:36" json:"reference_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(12,2)" json:"balance_after"`
	Description   string          `gorm:"size:255" json:"description"`
}
