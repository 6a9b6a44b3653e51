package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/PayoutFox/internal/pkg/env"
)

const (
	DefaultProviderBaseURL = "https://api.opennode.co"
	DefaultMaxAttempts     = 3
	DefaultLockStale       = 10 * time.Minute
	DefaultProviderRPS     = 5.0
	DefaultHTTPTimeout     = 15 * time.Second

	ProviderModeMock = "mock"
	ProviderModeLive = "live"

	LockBackendFile  = "file"
	LockBackendRedis = "redis"
)

// Settlement holds everything the worker and the webhook receiver read from
// the environment.
type Settlement struct {
	ProviderAPIKey  string
	ProviderBaseURL string        `validate:"required,url"`
	CallbackURL     string        // checked by Readiness, not by Validate
	MaxAttempts     int           `validate:"min=1"`
	LockBackend     string        `validate:"oneof=file redis"`
	LockPath        string        `validate:"required_if=LockBackend file"`
	LockStaleAfter  time.Duration `validate:"gt=0"`
	ProviderRPS     float64       `validate:"gt=0"`
	HTTPTimeout     time.Duration `validate:"gt=0"`
	LNURLComment    string        `validate:"max=255"`
}

// LoadSettlement reads the settlement configuration and validates it.
func LoadSettlement() (Settlement, error) {
	cfg := Settlement{
		ProviderAPIKey:  strings.TrimSpace(env.GetEnv("OPENNODE_API_KEY", "")),
		ProviderBaseURL: strings.TrimRight(strings.TrimSpace(env.GetEnv("OPENNODE_BASE_URL", DefaultProviderBaseURL)), "/"),
		CallbackURL:     strings.TrimSpace(env.GetEnv("PAYOUT_WEBHOOK_CALLBACK_URL", "")),
		MaxAttempts:     ParseMaxAttempts(env.GetEnv("PAYOUT_MAX_ATTEMPTS", "")),
		LockBackend:     strings.ToLower(strings.TrimSpace(env.GetEnv("PAYOUT_LOCK_BACKEND", LockBackendFile))),
		LockPath:        env.GetEnv("PAYOUT_LOCK_PATH", filepath.Join(os.TempDir(), "payoutfox-worker.lock")),
		LockStaleAfter:  time.Duration(env.GetEnvInt("PAYOUT_LOCK_STALE_MINUTES", int(DefaultLockStale/time.Minute))) * time.Minute,
		ProviderRPS:     parseFloat(env.GetEnv("PAYOUT_PROVIDER_RPS", ""), DefaultProviderRPS),
		HTTPTimeout:     time.Duration(env.GetEnvInt("PAYOUT_HTTP_TIMEOUT_SECONDS", int(DefaultHTTPTimeout/time.Second))) * time.Second,
		LNURLComment:    strings.TrimSpace(env.GetEnv("PAYOUT_LNURL_COMMENT", "")),
	}
	if err := cfg.Validate(); err != nil {
		return Settlement{}, err
	}
	return cfg, nil
}

// Validate checks the struct rules.
func (c Settlement) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid settlement config: %w", err)
	}
	return nil
}

// ParseMaxAttempts falls back to DefaultMaxAttempts for empty, non-numeric
// or non-positive input.
func ParseMaxAttempts(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		return DefaultMaxAttempts
	}
	return v
}

// ProviderMode is "mock" without an API key and "live" otherwise.
func (c Settlement) ProviderMode() string {
	if c.ProviderAPIKey == "" {
		return ProviderModeMock
	}
	return ProviderModeLive
}

// SubmissionCallbackURL returns the callback to register with withdrawals,
// or "" when none is configured or it is unusable.
func (c Settlement) SubmissionCallbackURL() string {
	if c.CallbackURL == "" || callbackURLProblem(c.CallbackURL) != "" {
		return ""
	}
	return c.CallbackURL
}

func parseFloat(raw string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func callbackURLProblem(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "PAYOUT_WEBHOOK_CALLBACK_URL is not a valid absolute URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("PAYOUT_WEBHOOK_CALLBACK_URL uses unsupported protocol %q", u.Scheme)
	}
	return ""
}
