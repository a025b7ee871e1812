package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	gorm.Model

	ServiceID      string          `gorm:"uniqueIndex;size:36" json:"service_id"`
	ProviderID     string          `gorm:"index;size:36" json:"provider_id"`
	Title          string          `gorm:"size:255" json:"title"`
	Description    string          `gorm:"size:1024" json:"description"`
	CreditsPerHour decimal.Decimal `gorm:"type:numeric(12,2)" json:"credits_per_hour"`
	IsActive       bool            `gorm:"default:true" json:"is_active"`
}
