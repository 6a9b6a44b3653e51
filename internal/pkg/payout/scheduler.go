package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/app/repository"
)

var (
	ErrPurchaseNotSettled = errors.New("purchase is not settled")
	ErrNoPayoutAddress    = errors.New("developer has no active lightning address")
	ErrNothingToPay       = errors.New("purchase amount must be positive")
)

// Scheduler creates the SCHEDULED payout for a settled purchase.
type Scheduler struct {
	Repos    *repository.Repositories
	Provider string
	// NewKey generates idempotency keys. Defaults to uuid.NewString.
	NewKey func() string
}

func NewScheduler(repos *repository.Repositories, providerName string) *Scheduler {
	return &Scheduler{Repos: repos, Provider: providerName, NewKey: uuid.NewString}
}

// ScheduleForPurchase returns the purchase's payout, creating it on first
// call. Concurrent callers all receive the single stored row.
func (s *Scheduler) ScheduleForPurchase(ctx context.Context, purchaseID uint) (*models.Payout, error) {
	existing, err := s.Repos.Payout.GetByPurchaseID(ctx, purchaseID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	purchase, err := s.Repos.Purchase.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase %d: %w", purchaseID, err)
	}
	if !purchase.IsSettled() {
		return nil, fmt.Errorf("%w: purchase %d is %s", ErrPurchaseNotSettled, purchaseID, purchase.Status)
	}
	if purchase.AmountMsat <= 0 {
		return nil, fmt.Errorf("%w: purchase %d", ErrNothingToPay, purchaseID)
	}

	developer, err := s.Repos.User.GetByID(ctx, purchase.DeveloperUserID)
	if err != nil {
		return nil, fmt.Errorf("load developer %d: %w", purchase.DeveloperUserID, err)
	}
	address := developer.PayoutAddress()
	if address == "" {
		return nil, fmt.Errorf("%w: user %d", ErrNoPayoutAddress, developer.ID)
	}

	newKey := s.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	p := &models.Payout{
		PurchaseID:         purchase.ID,
		DeveloperUserID:    developer.ID,
		DestinationAddress: address,
		AmountMsat:         purchase.AmountMsat,
		Status:             models.PayoutStatusScheduled,
		IdempotencyKey:     newKey(),
		Provider:           s.Provider,
	}
	err = s.Repos.Payout.Create(ctx, p)
	if errors.Is(err, repository.ErrConflict) {
		return s.Repos.Payout.GetByPurchaseID(ctx, purchaseID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
