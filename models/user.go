package models

import (
	"gorm.io/gorm"
)

// User carries identity only. Balance is never stored here: it is always
// derived from the transaction ledger tail, and this row doubles as the
// lock anchor that serializes ledger appends for one user.
type User struct {
	gorm.Model

	UserID   string `gorm:"uniqueIndex;size:36" json:"user_id"`
	Name     string `gorm:"size:128" json:"name"`
	Email    string `gorm:"uniqueIndex;size:128" json:"email"`
	ApiKey   string `gorm:"index;size:64" json:"-"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}
