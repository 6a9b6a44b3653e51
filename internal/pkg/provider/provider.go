// Package provider submits outbound Lightning withdrawals to the payment
// provider.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/PayoutFox/app/models"
)

// MaxSafeSats is the largest satoshi amount the provider accepts as an
// exact integer (2^53 - 1).
const MaxSafeSats int64 = 1<<53 - 1

var (
	ErrInvalidAmount       = errors.New("invalid withdrawal amount")
	ErrDecode              = errors.New("provider response could not be decoded")
	ErrMissingWithdrawalID = errors.New("provider response is missing the withdrawal id")
)

// WithdrawalRequest is one outbound payment submission.
type WithdrawalRequest struct {
	Invoice        string
	AmountMsat     int64
	IdempotencyKey string
	CallbackURL    string
}

// WithdrawalResult is the provider's acknowledgement of a submission.
type WithdrawalResult struct {
	WithdrawalID string
	Status       string
	FeeSats      int64
	Meta         models.ProviderMeta
}

// Client submits withdrawals.
type Client interface {
	Name() string
	Withdraw(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error)
}

// SatsFromMsat converts millisatoshi to whole satoshi. Fractional satoshi
// and amounts beyond MaxSafeSats are rejected.
func SatsFromMsat(msat int64) (int64, error) {
	if msat <= 0 {
		return 0, fmt.Errorf("%w: %d msat must be positive", ErrInvalidAmount, msat)
	}
	if msat%1000 != 0 {
		return 0, fmt.Errorf("%w: %d msat is not a whole number of sats", ErrInvalidAmount, msat)
	}
	sats := msat / 1000
	if sats > MaxSafeSats {
		return 0, fmt.Errorf("%w: %d sats exceeds the safe integer range", ErrInvalidAmount, sats)
	}
	return sats, nil
}

// StatusError is returned for non-2xx provider responses. Body holds at
// most the first 500 characters of the response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider request failed: status=%d body=%s", e.StatusCode, e.Body)
}
