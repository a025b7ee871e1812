package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"timenest/database"
	"timenest/models"
)

// These tests exercise the full ledger/booking core against a real
// database: the row-lock serialization they verify has no meaning on a
// mock. Point TEST_DATABASE_URL at a scratch postgres to run them.
func setupTestDB(t *testing.T) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}
	if database.DB == nil {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			t.Fatalf("connect test database: %v", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			t.Fatalf("migrate test database: %v", err)
		}
		database.DB = db
	}
}

func newTestUser(t *testing.T, balance string) *models.User {
	t.Helper()
	user := &models.User{
		UserID:   uuid.New().String(),
		Name:     "test user",
		Email:    uuid.New().String() + "@example.com",
		ApiKey:   uuid.New().String(),
		IsActive: true,
	}
	if err := database.DB.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	amount := decimal.RequireFromString(balance)
	if amount.IsPositive() {
		if _, err := AppendWithLock(context.Background(), user.UserID,
			models.TxBonus, models.RefBonus, user.UserID, amount, "Welcome bonus"); err != nil {
			t.Fatalf("seed balance: %v", err)
		}
	}
	return user
}

func newTestService(t *testing.T, providerID, creditsPerHour string) *models.Service {
	t.Helper()
	service := &models.Service{
		ServiceID:      uuid.New().String(),
		ProviderID:     providerID,
		Title:          "test service",
		CreditsPerHour: decimal.RequireFromString(creditsPerHour),
		IsActive:       true,
	}
	if err := database.DB.Create(service).Error; err != nil {
		t.Fatalf("create service: %v", err)
	}
	return service
}

func mustBalance(t *testing.T, userID string) string {
	t.Helper()
	balance, err := Balance(userID)
	if err != nil {
		t.Fatalf("balance for %s: %v", userID, err)
	}
	return balance.StringFixed(models.CreditPrecision)
}

func ledgerOf(t *testing.T, userID string) []models.Transaction {
	t.Helper()
	var transactions []models.Transaction
	if err := database.DB.Where("user_id = ?", userID).Order("id ASC").Find(&transactions).Error; err != nil {
		t.Fatalf("load ledger for %s: %v", userID, err)
	}
	return transactions
}

func assertRunningSum(t *testing.T, userID string) {
	t.Helper()
	sum := decimal.Zero
	for i, tx := range ledgerOf(t, userID) {
		sum = sum.Add(tx.Amount)
		if !tx.BalanceAfter.Equal(sum) {
			t.Errorf("entry %d (id %d): balance_after = %s, running sum = %s",
				i, tx.ID, tx.BalanceAfter, sum)
		}
	}
}

func reserve(t *testing.T, bookerID, serviceID string, minutes int) (*models.Booking, error) {
	t.Helper()
	return CreateBooking(context.Background(), CreateBookingInput{
		BookerID:        bookerID,
		ServiceID:       serviceID,
		ScheduledAt:     time.Now().Add(24 * time.Hour).UTC(),
		DurationMinutes: minutes,
	})
}

func TestEndToEndReserveConfirmComplete(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	booker := newTestUser(t, "10.00")
	provider := newTestUser(t, "0")
	service := newTestService(t, provider.UserID, "4.00")

	booking, err := reserve(t, booker.UserID, service.ServiceID, 60)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if booking.CreditsCommitted.StringFixed(2) != "4.00" {
		t.Errorf("credits_committed = %s, want 4.00", booking.CreditsCommitted.StringFixed(2))
	}
	if got := mustBalance(t, booker.UserID); got != "6.00" {
		t.Errorf("balance after hold = %s, want 6.00", got)
	}

	// Holds already sit in the ledger as debits, so available and settled
	// balance are the same number.
	available, err := AvailableToSpend(booker.UserID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available.StringFixed(2) != "6.00" {
		t.Errorf("available after hold = %s, want 6.00", available.StringFixed(2))
	}

	holds := ledgerOf(t, booker.UserID)
	last := holds[len(holds)-1]
	if last.Type != models.TxReservationHold || last.Amount.StringFixed(2) != "-4.00" {
		t.Errorf("tail entry = %s %s, want reservation_hold -4.00", last.Type, last.Amount.StringFixed(2))
	}

	if _, err := TransitionBooking(ctx, booking.BookingID, models.BookingConfirmed, provider.UserID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := mustBalance(t, booker.UserID); got != "6.00" {
		t.Errorf("balance after confirm = %s, want 6.00 (confirm posts nothing)", got)
	}
	if entries := ledgerOf(t, booker.UserID); len(entries) != 2 {
		t.Errorf("booker ledger has %d entries after confirm, want 2", len(entries))
	}

	completed, err := TransitionBooking(ctx, booking.BookingID, models.BookingCompleted, booker.UserID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.CapturedAt == nil {
		t.Error("completed booking has no captured_at, hold was not converted")
	}
	if got := mustBalance(t, booker.UserID); got != "6.00" {
		t.Errorf("booker balance after complete = %s, want 6.00", got)
	}
	if got := mustBalance(t, provider.UserID); got != "4.00" {
		t.Errorf("provider balance after complete = %s, want 4.00", got)
	}

	providerLedger := ledgerOf(t, provider.UserID)
	if len(providerLedger) != 1 || providerLedger[0].Type != models.TxEarning {
		t.Fatalf("provider ledger = %+v, want exactly one earning", providerLedger)
	}
	if providerLedger[0].Amount.StringFixed(2) != "4.00" {
		t.Errorf("earning amount = %s, want 4.00", providerLedger[0].Amount.StringFixed(2))
	}

	summary, err := BalanceSummaryFor(ctx, provider.UserID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.CurrentBalance.StringFixed(2) != "4.00" || summary.TotalEarned.StringFixed(2) != "4.00" {
		t.Errorf("provider summary = balance %s earned %s, want 4.00 and 4.00",
			summary.CurrentBalance.StringFixed(2), summary.TotalEarned.StringFixed(2))
	}
	if summary.LastUpdated == nil {
		t.Error("provider summary has no last_updated after an earning")
	}

	assertRunningSum(t, booker.UserID)
	assertRunningSum(t, provider.UserID)
}

func TestReserveInsufficientCredits(t *testing.T) {
	setupTestDB(t)

	booker := newTestUser(t, "2.00")
	provider := newTestUser(t, "0")
	service := newTestService(t, provider.UserID, "4.00")

	_, err := reserve(t, booker.UserID, service.ServiceID, 60)
	var insufficient *InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("reserve = %v, want InsufficientCreditsError", err)
	}
	if insufficient.Shortfall.StringFixed(2) != "2.00" {
		t.Errorf("shortfall = %s, want 2.00", insufficient.Shortfall.StringFixed(2))
	}

	if got := mustBalance(t, booker.UserID); got != "2.00" {
		t.Errorf("balance after failed reserve = %s, want 2.00 untouched", got)
	}
	var count int64
	database.DB.Model(&models.Booking{}).Where("booker_id = ?", booker.UserID).Count(&count)
	if count != 0 {
		t.Errorf("failed reserve created %d booking rows, want 0", count)
	}
}

func TestRejectReleasesHold(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	booker := newTestUser(t, "10.00")
	provider := newTestUser(t, "0")
	service := newTestService(t, provider.UserID, "4.00")

	booking, err := reserve(t, booker.UserID, service.ServiceID, 60)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	rejected, err := TransitionBooking(ctx, booking.BookingID, models.BookingRejected, provider.UserID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.BookingRejected || !rejected.Status.Terminal() {
		t.Errorf("status = %s, want terminal rejected", rejected.Status)
	}

	if got := mustBalance(t, booker.UserID); got != "10.00" {
		t.Errorf("balance after reject = %s, want 10.00 restored", got)
	}
	entries := ledgerOf(t, booker.UserID)
	tail := entries[len(entries)-1]
	if tail.Type != models.TxReservationRelease || tail.Amount.StringFixed(2) != "4.00" {
		t.Errorf("tail entry = %s %s, want reservation_release 4.00", tail.Type, tail.Amount.StringFixed(2))
	}
	assertRunningSum(t, booker.UserID)
}

func TestCompleteIsAppliedOnce(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	booker := newTestUser(t, "10.00")
	provider := newTestUser(t, "0")
	service := newTestService(t, provider.UserID, "4.00")

	booking, err := reserve(t, booker.UserID, service.ServiceID, 60)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := TransitionBooking(ctx, booking.BookingID, models.BookingConfirmed, provider.UserID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := TransitionBooking(ctx, booking.BookingID, models.BookingCompleted, provider.UserID); err != nil {
		t.Fatalf("first complete: %v", err)
	}

	_, err = TransitionBooking(ctx, booking.BookingID, models.BookingCompleted, provider.UserID)
	var transition *InvalidStatusTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("second complete = %v, want InvalidStatusTransitionError", err)
	}
	if transition.Current != models.BookingCompleted || transition.Requested != models.BookingCompleted {
		t.Errorf("error carries %s -> %s, want completed -> completed", transition.Current, transition.Requested)
	}

	if entries := ledgerOf(t, provider.UserID); len(entries) != 1 {
		t.Errorf("provider ledger has %d entries, want the earning applied exactly once", len(entries))
	}
	if got := mustBalance(t, provider.UserID); got != "4.00" {
		t.Errorf("provider balance = %s, want 4.00", got)
	}
}

func TestInvalidTransitionLeavesEverythingUntouched(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	booker := newTestUser(t, "10.00")
	provider := newTestUser(t, "0")
	service := newTestService(t, provider.UserID, "4.00")

	booking, err := reserve(t, booker.UserID, service.ServiceID, 60)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	before := len(ledgerOf(t, booker.UserID))

	// pending -> completed is not in the lifecycle table.
	_, err = TransitionBooking(ctx, booking.BookingID, models.BookingCompleted, booker.UserID)
	var transition *InvalidStatusTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("pending -> completed = %v, want InvalidStatusTransitionError", err)
	}

	reloaded, err := GetBooking(booking.BookingID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != models.BookingPending {
		t.Errorf("status = %s, want pending untouched", reloaded.Status)
	}
	if after := len(ledgerOf(t, booker.UserID)); after != before {
		t.Errorf("ledger grew from %d to %d entries on a rejected transition", before, after)
	}
	if len(ledgerOf(t, provider.UserID)) != 0 {
		t.Error("provider ledger gained entries on a rejected transition")
	}
}

func TestForbiddenActorLeavesEverythingUntouched(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	booker := newTestUser(t, "10.00")
	provider := newTestUser(t, "0")
	service := newTestService(t, provider.UserID, "4.00")

	booking, err := reserve(t, booker.UserID, service.ServiceID, 60)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := TransitionBooking(ctx, booking.BookingID, models.BookingConfirmed, booker.UserID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("booker confirming own booking = %v, want ErrForbidden", err)
	}

	reloaded, _ := GetBooking(booking.BookingID)
	if reloaded.Status != models.BookingPending {
		t.Errorf("status = %s, want pending untouched", reloaded.Status)
	}
}

func TestAppendRejectsZeroAmount(t *testing.T) {
	setupTestDB(t)

	user := newTestUser(t, "10.00")
	_, err := AppendWithLock(context.Background(), user.UserID,
		models.TxAdjustment, models.RefAdmin, uuid.New().String(), decimal.Zero, "noop")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero-amount append = %v, want ErrInvalidAmount", err)
	}
	if entries := ledgerOf(t, user.UserID); len(entries) != 1 {
		t.Errorf("ledger has %d entries, want only the seed bonus", len(entries))
	}
}

func TestAppendNormalizesSubCentAmounts(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	user := newTestUser(t, "10.00")

	// A sub-cent amount is stored at ledger precision, and the snapshot is
	// computed from the stored amount, never rounded separately.
	entry, err := AppendWithLock(ctx, user.UserID,
		models.TxAdjustment, models.RefAdmin, uuid.New().String(),
		decimal.RequireFromString("0.005"), "sub-cent grant")
	if err != nil {
		t.Fatalf("sub-cent append: %v", err)
	}
	if entry.Amount.StringFixed(2) != "0.01" {
		t.Errorf("stored amount = %s, want 0.01", entry.Amount.StringFixed(2))
	}
	if entry.BalanceAfter.StringFixed(2) != "10.01" {
		t.Errorf("balance_after = %s, want 10.01", entry.BalanceAfter.StringFixed(2))
	}

	// The shape that used to wedge a ledger: drive the balance negative
	// with a signed adjustment, then post another sub-cent amount.
	if _, err := AppendWithLock(ctx, user.UserID,
		models.TxAdjustment, models.RefAdmin, uuid.New().String(),
		decimal.RequireFromString("-10.02"), "correction"); err != nil {
		t.Fatalf("negative adjustment: %v", err)
	}
	if got := mustBalance(t, user.UserID); got != "-0.01" {
		t.Fatalf("balance = %s, want -0.01", got)
	}
	if _, err := AppendWithLock(ctx, user.UserID,
		models.TxAdjustment, models.RefAdmin, uuid.New().String(),
		decimal.RequireFromString("0.005"), "sub-cent grant"); err != nil {
		t.Fatalf("sub-cent append on negative tail: %v", err)
	}

	// Every later append still passes the write-time running-sum check.
	if _, err := AppendWithLock(ctx, user.UserID,
		models.TxAdjustment, models.RefAdmin, uuid.New().String(),
		decimal.RequireFromString("1.00"), "grant"); err != nil {
		t.Fatalf("follow-up append: %v", err)
	}
	assertRunningSum(t, user.UserID)

	// An amount that vanishes at ledger precision is a zero amount.
	_, err = AppendWithLock(ctx, user.UserID,
		models.TxAdjustment, models.RefAdmin, uuid.New().String(),
		decimal.RequireFromString("0.004"), "dust")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("dust append = %v, want ErrInvalidAmount", err)
	}
}

func TestProvisionUserPostsGenesisBonus(t *testing.T) {
	setupTestDB(t)

	email := uuid.New().String() + "@example.com"
	user, balance, err := ProvisionUser(context.Background(), "test user", email,
		decimal.RequireFromString("10.00"))
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if balance.StringFixed(2) != "10.00" {
		t.Errorf("opening balance = %s, want 10.00", balance.StringFixed(2))
	}

	entries := ledgerOf(t, user.UserID)
	if len(entries) != 1 || entries[0].Type != models.TxBonus {
		t.Fatalf("genesis ledger = %+v, want exactly one bonus", entries)
	}
}

func TestProvisionUserRollsBackOnBadBonus(t *testing.T) {
	setupTestDB(t)

	// A bonus that rounds to zero fails the append; the user row must
	// roll back with it rather than survive with an empty ledger.
	email := uuid.New().String() + "@example.com"
	_, _, err := ProvisionUser(context.Background(), "test user", email,
		decimal.RequireFromString("0.004"))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("provision with dust bonus = %v, want ErrInvalidAmount", err)
	}

	var count int64
	database.DB.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count != 0 {
		t.Errorf("found %d user rows after failed provision, want 0", count)
	}
}

func TestHistoryNewestFirstWithPagination(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	user := newTestUser(t, "100.00")
	for i := 0; i < 5; i++ {
		if _, err := AppendWithLock(ctx, user.UserID,
			models.TxAdjustment, models.RefAdmin, uuid.New().String(),
			decimal.RequireFromString("1.00"), "grant"); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	page, total, err := History(user.UserID, 0, 3, nil, nil)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 6 {
		t.Errorf("total_count = %d, want 6", total)
	}
	if len(page) != 3 {
		t.Fatalf("page size = %d, want 3", len(page))
	}
	for i := 1; i < len(page); i++ {
		if page[i].ID >= page[i-1].ID {
			t.Errorf("history not newest-first: id %d before id %d", page[i-1].ID, page[i].ID)
		}
	}

	rest, _, err := History(user.UserID, 3, 3, nil, nil)
	if err != nil {
		t.Fatalf("history offset: %v", err)
	}
	if len(rest) != 3 {
		t.Errorf("offset page size = %d, want 3", len(rest))
	}
	if rest[0].ID >= page[len(page)-1].ID {
		t.Errorf("offset page overlaps first page: %d >= %d", rest[0].ID, page[len(page)-1].ID)
	}
}

func TestTotalsReflectHoldsAndEarnings(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	booker := newTestUser(t, "10.00")
	provider := newTestUser(t, "0")
	service := newTestService(t, provider.UserID, "4.00")

	kept, err := reserve(t, booker.UserID, service.ServiceID, 60)
	if err != nil {
		t.Fatalf("reserve kept: %v", err)
	}
	released, err := reserve(t, booker.UserID, service.ServiceID, 30)
	if err != nil {
		t.Fatalf("reserve released: %v", err)
	}
	if _, err := TransitionBooking(ctx, released.BookingID, models.BookingCancelled, booker.UserID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := TransitionBooking(ctx, kept.BookingID, models.BookingConfirmed, provider.UserID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := TransitionBooking(ctx, kept.BookingID, models.BookingCompleted, booker.UserID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	earned, spent, err := Totals(booker.UserID)
	if err != nil {
		t.Fatalf("totals booker: %v", err)
	}
	// Seed bonus counts as earned; only the kept hold counts as spent, the
	// released one does not.
	if earned.StringFixed(2) != "10.00" {
		t.Errorf("booker earned = %s, want 10.00", earned.StringFixed(2))
	}
	if spent.StringFixed(2) != "4.00" {
		t.Errorf("booker spent = %s, want 4.00", spent.StringFixed(2))
	}

	earned, spent, err = Totals(provider.UserID)
	if err != nil {
		t.Fatalf("totals provider: %v", err)
	}
	if earned.StringFixed(2) != "4.00" || spent.StringFixed(2) != "0.00" {
		t.Errorf("provider totals = earned %s spent %s, want 4.00 and 0.00",
			earned.StringFixed(2), spent.StringFixed(2))
	}
}

func TestConcurrentReservesNeverOverdraw(t *testing.T) {
	setupTestDB(t)

	booker := newTestUser(t, "10.00")
	provider := newTestUser(t, "0")
	service := newTestService(t, provider.UserID, "4.00")

	// Five concurrent 4.00 reservations against a 10.00 balance: each fits
	// individually, together they do not. Serialization must let at most
	// two through.
	const attempts = 5
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = reserve(t, booker.UserID, service.ServiceID, 60)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *InsufficientCreditsError
		if !errors.As(err, &insufficient) {
			t.Errorf("concurrent reserve failed with %v, want InsufficientCreditsError", err)
		}
	}
	if succeeded != 2 {
		t.Errorf("%d concurrent reserves succeeded, want exactly 2", succeeded)
	}

	balance, err := Balance(booker.UserID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.IsNegative() {
		t.Errorf("balance went negative: %s", balance.StringFixed(2))
	}
	if balance.StringFixed(2) != "2.00" {
		t.Errorf("balance = %s, want 2.00", balance.StringFixed(2))
	}
	assertRunningSum(t, booker.UserID)
}
