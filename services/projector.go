package services

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"timenest/database"
)

// BalanceSummary is the dashboard projection: current balance plus lifetime
// totals. Derived data only — recomputed from the ledger whenever the cache
// misses, and the cache is dropped on every append for the user.
type BalanceSummary struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	LastUpdated    *time.Time      `json:"last_updated"`
}

const balanceCacheKeyPrefix = "credits:summary:"

func balanceCacheTTL() time.Duration {
	if raw := os.Getenv("BALANCE_CACHE_TTL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 30 * time.Second
}

// BalanceSummaryFor answers the credit widget. Served from redis when the
// cached projection is still warm, otherwise recomputed from the ledger
// and re-cached. Works without redis at all.
func BalanceSummaryFor(ctx context.Context, userID string) (*BalanceSummary, error) {
	key := balanceCacheKeyPrefix + userID

	if database.Redis != nil {
		raw, err := database.Redis.Get(ctx, key).Result()
		if err == nil {
			var cached BalanceSummary
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			log.Printf("⚠️  redis read failed for %s: %v", key, err)
		}
	}

	summary, err := computeBalanceSummary(userID)
	if err != nil {
		return nil, err
	}

	if database.Redis != nil {
		if raw, err := json.Marshal(summary); err == nil {
			if err := database.Redis.Set(ctx, key, raw, balanceCacheTTL()).Err(); err != nil {
				log.Printf("⚠️  redis write failed for %s: %v", key, err)
			}
		}
	}
	return summary, nil
}

func computeBalanceSummary(userID string) (*BalanceSummary, error) {
	balance, err := Balance(userID)
	if err != nil {
		return nil, err
	}
	earned, spent, err := Totals(userID)
	if err != nil {
		return nil, err
	}

	summary := &BalanceSummary{
		CurrentBalance: balance,
		TotalEarned:    earned,
		TotalSpent:     spent,
	}
	if last, err := tailTransaction(database.DB, userID); err == nil && last != nil {
		at := last.CreatedAt
		summary.LastUpdated = &at
	}
	return summary, nil
}

// AvailableToSpend equals the current balance: holds already appear as
// negative ledger entries, so there is no separate hold column to subtract.
func AvailableToSpend(userID string) (decimal.Decimal, error) {
	return Balance(userID)
}

// InvalidateBalance drops the cached projection after a successful append.
// The cache is derived data; a failed delete only means one stale read
// within the TTL, so the error is logged and ignored.
func InvalidateBalance(ctx context.Context, userID string) {
	if database.Redis == nil {
		return
	}
	if err := database.Redis.Del(ctx, balanceCacheKeyPrefix+userID).Err(); err != nil {
		log.Printf("⚠️  redis invalidate failed for user %s: %v", userID, err)
	}
}
