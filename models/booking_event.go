package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingEvent records every successful status transition for the
// notification layer. Written in the same transaction as the transition,
// so the audit trail survives a broker outage.
type BookingEvent struct {
	gorm.Model

	BookingID string         `gorm:"index;size:36" json:"booking_id"`
	OldStatus BookingStatus  `gorm:"size:16" json:"old_status"`
	NewStatus BookingStatus  `gorm:"size:16" json:"new_status"`
	Payload   datatypes.JSON `json:"payload"`
}
