package router

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/PayoutFox/internal/pkg/cache"
)

// limiterDatabase keeps rate limiter keys apart from the triage counters
// and the worker lock in the default database.
const limiterDatabase = 2

// NewLimiterStorage returns Redis storage for the rate limiter, or nil when
// no cache is configured. The storage pings on creation and panics when the
// server is unreachable, so call it after a successful cache.Connect.
func NewLimiterStorage(cfg cache.Config) fiber.Storage {
	if !cfg.Enabled() {
		return nil
	}
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}
