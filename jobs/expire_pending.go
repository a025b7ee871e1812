package jobs

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"timenest/services"
)

// StartBookingExpiryScheduler cancels bookings stuck in pending through the
// normal state machine, subject to the same concurrency rules as any other
// transition. Expiry is policy, not core behavior: with
// BOOKING_PENDING_TTL_HOURS unset, pending bookings live forever.
func StartBookingExpiryScheduler() {
	raw := os.Getenv("BOOKING_PENDING_TTL_HOURS")
	if raw == "" {
		log.Println("⚠️  BOOKING_PENDING_TTL_HOURS not set, booking expiry disabled")
		return
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		log.Printf("⚠️  Invalid value for BOOKING_PENDING_TTL_HOURS: %s\n", raw)
		return
	}

	ttl := time.Duration(hours) * time.Hour
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		for {
			<-ticker.C
			expired, err := services.ExpirePendingBookings(context.Background(), ttl)
			if err != nil {
				log.Printf("❌ error expiring pending bookings: %v", err)
				continue
			}
			if expired > 0 {
				log.Printf("🟡 expired %d stale pending bookings", expired)
			}
		}
	}()
}
