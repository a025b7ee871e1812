package database

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
)

var Redis *redis.Client

// InitializeRedis wires the balance projection cache. Redis is optional:
// with REDIS_URL unset the client stays nil and projections are recomputed
// from the ledger on every read.
func InitializeRedis() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Println("⚠️  REDIS_URL not set, balance projection cache disabled")
		return
	}

	Redis = redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	log.Println("🔧 Redis initialized with address:", redisURL)
}
