package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PayoutFox/internal/pkg/env"
)

// Config describes the Redis/Dragonfly connection. An empty Host disables
// every Redis-backed feature.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ConfigFromEnv reads CACHE_HOST, CACHE_PORT, CACHE_PASSWORD and CACHE_DB.
func ConfigFromEnv() Config {
	return Config{
		Host:     env.GetEnv("CACHE_HOST", ""),
		Port:     env.GetEnv("CACHE_PORT", "6379"),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	}
}

// Enabled reports whether a cache host is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// NewClient builds a client without contacting the server.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Connect builds a client and pings it. A failed ping closes the client
// and returns the error.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := NewClient(cfg)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not connect to cache at %s: %w", cfg.Addr(), err)
	}
	log.Infof("[Cache] Successfully connected to cache %s: %s", cfg.Addr(), pong)
	return client, nil
}
