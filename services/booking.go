package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timenest/database"
	"timenest/events"
	"timenest/models"
)

// ActorSystem marks transitions issued by the scheduler rather than a
// participant. It may only cancel pending bookings.
const ActorSystem = "system"

type CreateBookingInput struct {
	BookerID        string
	ServiceID       string
	ScheduledAt     time.Time
	DurationMinutes int
	Message         string
}

// CreateBooking is the reservation guard: the only way a booking comes into
// existence. The balance check, the reservation hold and the pending row are
// one atomic unit under the booker's ledger lock, so two simultaneous
// bookings from one user can never overdraw between check and hold.
func CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if !models.ValidDuration(in.DurationMinutes) {
		return nil, ErrInvalidDuration
	}

	var service models.Service
	if err := database.DB.Where("service_id = ? AND is_active = true", in.ServiceID).First(&service).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if service.ProviderID == in.BookerID {
		return nil, ErrForbidden
	}

	cost := models.CreditsCommitted(service.CreditsPerHour, in.DurationMinutes)

	booking := &models.Booking{
		BookingID:        uuid.New().String(),
		ServiceID:        service.ServiceID,
		ProviderID:       service.ProviderID,
		BookerID:         in.BookerID,
		ScheduledAt:      in.ScheduledAt,
		DurationMinutes:  in.DurationMinutes,
		CreditsCommitted: cost,
		Status:           models.BookingPending,
		Message:          in.Message,
	}

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := LockUser(tx, in.BookerID); err != nil {
			return err
		}

		available, err := TailBalance(tx, in.BookerID)
		if err != nil {
			return err
		}
		if cost.GreaterThan(available) {
			return &InsufficientCreditsError{
				Available: available,
				Required:  cost,
				Shortfall: cost.Sub(available),
			}
		}

		if err := tx.Create(booking).Error; err != nil {
			return err
		}

		hold := fmt.Sprintf("Reservation hold for %q", service.Title)
		if _, err := Append(tx, in.BookerID, models.TxReservationHold, models.RefBooking, booking.BookingID, cost.Neg(), hold); err != nil {
			return err
		}

		return recordBookingEvent(tx, booking.BookingID, "", models.BookingPending)
	})
	if err != nil {
		return nil, err
	}

	InvalidateBalance(ctx, in.BookerID)
	events.PublishBookingStatus(ctx, events.BookingStatusChanged{
		BookingID: booking.BookingID,
		NewStatus: string(models.BookingPending),
		At:        time.Now().UTC(),
	})
	return booking, nil
}

// transitionActor enforces the actor column of the lifecycle table.
// cancelConfirmedPolicy narrows who may cancel a confirmed booking:
// "booker", "provider", or empty for either party.
func transitionActor(b *models.Booking, target models.BookingStatus, actorID, cancelConfirmedPolicy string) error {
	isBooker := actorID == b.BookerID
	isProvider := actorID == b.ProviderID

	switch target {
	case models.BookingConfirmed, models.BookingRejected:
		if !isProvider {
			return ErrForbidden
		}
	case models.BookingCompleted:
		if !isBooker && !isProvider {
			return ErrForbidden
		}
	case models.BookingCancelled:
		if b.Status == models.BookingPending {
			if !isBooker && actorID != ActorSystem {
				return ErrForbidden
			}
			return nil
		}
		switch cancelConfirmedPolicy {
		case "booker":
			if !isBooker {
				return ErrForbidden
			}
		case "provider":
			if !isProvider {
				return ErrForbidden
			}
		default:
			if !isBooker && !isProvider {
				return ErrForbidden
			}
		}
	default:
		return ErrForbidden
	}
	return nil
}

// TransitionBooking moves a booking through the lifecycle table and posts
// the matching ledger effects in the same database transaction: no reader
// ever sees the new status without its ledger entries, or the entries
// without the status. Unlisted and repeated transitions fail without
// touching either, which keeps caller-side retries safe.
func TransitionBooking(ctx context.Context, bookingID string, target models.BookingStatus, actorID string) (*models.Booking, error) {
	if !target.Valid() || target == models.BookingPending {
		return nil, &InvalidStatusTransitionError{Requested: target}
	}

	var booking models.Booking
	var oldStatus models.BookingStatus

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ?", bookingID).
			First(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if !booking.CanTransition(target) {
			return &InvalidStatusTransitionError{Current: booking.Status, Requested: target}
		}
		if err := transitionActor(&booking, target, actorID, os.Getenv("CANCEL_CONFIRMED_BY")); err != nil {
			return err
		}

		switch target {
		case models.BookingRejected, models.BookingCancelled:
			if _, err := LockUser(tx, booking.BookerID); err != nil {
				return err
			}
			desc := fmt.Sprintf("Reservation released, booking %s", target)
			if _, err := Append(tx, booking.BookerID, models.TxReservationRelease, models.RefBooking, booking.BookingID, booking.CreditsCommitted, desc); err != nil {
				return err
			}

		case models.BookingCompleted:
			// Both ledgers move here; fixed lock order avoids deadlock with
			// a concurrent transition holding the locks the other way round.
			for _, id := range sortedPair(booking.BookerID, booking.ProviderID) {
				if _, err := LockUser(tx, id); err != nil {
					return err
				}
			}
			// The booker's hold is converted in place, never released and
			// re-debited: there is no window where the hold is absent.
			now := time.Now().UTC()
			booking.CapturedAt = &now

			desc := fmt.Sprintf("Earning for completed booking of service %s", booking.ServiceID)
			if _, err := Append(tx, booking.ProviderID, models.TxEarning, models.RefBooking, booking.BookingID, booking.CreditsCommitted, desc); err != nil {
				return err
			}
		}

		oldStatus = booking.Status
		booking.Status = target
		updates := map[string]any{"status": booking.Status, "captured_at": booking.CapturedAt}
		if err := tx.Model(&booking).Updates(updates).Error; err != nil {
			return err
		}

		return recordBookingEvent(tx, booking.BookingID, oldStatus, target)
	})
	if err != nil {
		return nil, err
	}

	InvalidateBalance(ctx, booking.BookerID)
	if target == models.BookingCompleted {
		InvalidateBalance(ctx, booking.ProviderID)
	}
	events.PublishBookingStatus(ctx, events.BookingStatusChanged{
		BookingID: booking.BookingID,
		OldStatus: string(oldStatus),
		NewStatus: string(target),
		At:        time.Now().UTC(),
	})
	return &booking, nil
}

func sortedPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

func recordBookingEvent(tx *gorm.DB, bookingID string, old, target models.BookingStatus) error {
	payload, _ := json.Marshal(events.BookingStatusChanged{
		BookingID: bookingID,
		OldStatus: string(old),
		NewStatus: string(target),
		At:        time.Now().UTC(),
	})
	return tx.Create(&models.BookingEvent{
		BookingID: bookingID,
		OldStatus: old,
		NewStatus: target,
		Payload:   payload,
	}).Error
}

// GetBooking loads one booking without locking.
func GetBooking(bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := database.DB.Where("booking_id = ?", bookingID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListBookings returns a user's bookings, optionally narrowed to one side
// of the exchange and one status, newest first.
func ListBookings(userID, role string, status models.BookingStatus) ([]models.Booking, error) {
	q := database.DB.Model(&models.Booking{})
	switch role {
	case "booker":
		q = q.Where("booker_id = ?", userID)
	case "provider":
		q = q.Where("provider_id = ?", userID)
	default:
		q = q.Where("booker_id = ? OR provider_id = ?", userID, userID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var bookings []models.Booking
	if err := q.Order("id DESC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// ExpirePendingBookings cancels pending bookings older than the cutoff
// through the normal state machine, one at a time; a failure on one booking
// never blocks the rest.
func ExpirePendingBookings(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	var stale []models.Booking
	if err := database.DB.
		Where("status = ? AND created_at < ?", models.BookingPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	expired := 0
	for _, booking := range stale {
		if _, err := TransitionBooking(ctx, booking.BookingID, models.BookingCancelled, ActorSystem); err != nil {
			log.Printf("⚠️  failed to expire booking %s: %v", booking.BookingID, err)
			continue
		}
		expired++
	}
	return expired, nil
}
