package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRejected  BookingStatus = "rejected"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480
)

// Booking is created only through the reservation guard, after a successful
// credit hold, and is never deleted: cancelled, rejected and completed rows
// stay behind for audit. CreditsCommitted is fixed at creation time and does
// not follow later rate changes on the service.
type Booking struct {
	gorm.Model

	BookingID        string          `gorm:"uniqueIndex;size:36" json:"booking_id"`
	ServiceID        string          `gorm:"index;size:36" json:"service_id"`
	ProviderID       string          `gorm:"index;size:36" json:"provider_id"`
	BookerID         string          `gorm:"index;size:36" json:"booker_id"`
	ScheduledAt      time.Time       `json:"scheduled_at"`
	DurationMinutes  int             `json:"duration_minutes"`
	CreditsCommitted decimal.Decimal `gorm:"type:numeric(12,2)" json:"credits_committed"`
	Status           BookingStatus   `gorm:"index;size:16" json:"status"`
	Message          string          `gorm:"size:1024" json:"message"`
	CapturedAt       *time.Time      `json:"captured_at,omitempty"`
}

// bookingTransitions is the full lifecycle table. Any (status, target) pair
// absent here is rejected without touching booking or ledger.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingRejected, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
	BookingCompleted: {},
	BookingCancelled: {},
	BookingRejected:  {},
}

func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) Terminal() bool {
	next, ok := bookingTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether the lifecycle table permits moving this
// booking to target. Same-status requests are not transitions and fail.
func (b *Booking) CanTransition(target BookingStatus) bool {
	for _, next := range bookingTransitions[b.Status] {
		if next == target {
			return true
		}
	}
	return false
}

func ValidDuration(minutes int) bool {
	return minutes >= MinDurationMinutes && minutes <= MaxDurationMinutes
}
