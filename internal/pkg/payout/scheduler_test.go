package payout

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/app/repository"
)

func seedPurchase(t *testing.T, repos *repository.Repositories, status string, address string) *models.Purchase {
	t.Helper()
	ctx := context.Background()
	dev := &models.User{
		Name:             "dev",
		Email:            "dev-" + t.Name() + "@example.com",
		Role:             models.ROLE_DEVELOPER,
		Status:           models.STATUS_ACTIVE,
		LightningAddress: address,
	}
	require.NoError(t, repos.DB().WithContext(ctx).Create(dev).Error)
	purchase := &models.Purchase{
		BuyerUserID:     99,
		DeveloperUserID: dev.ID,
		AmountMsat:      21_000,
		Status:          status,
	}
	require.NoError(t, repos.DB().WithContext(ctx).Create(purchase).Error)
	return purchase
}

func TestScheduleForPurchaseCreatesOnce(t *testing.T) {
	repos := newTestRepos(t)
	purchase := seedPurchase(t, repos, models.PurchaseStatusSettled, " dev@getalby.com ")
	s := NewScheduler(repos, models.PayoutProviderOpenNode)

	p, err := s.ScheduleForPurchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusScheduled, p.Status)
	assert.Equal(t, "dev@getalby.com", p.DestinationAddress)
	assert.Equal(t, int64(21_000), p.AmountMsat)
	assert.NotEmpty(t, p.IdempotencyKey)

	again, err := s.ScheduleForPurchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, p.IdempotencyKey, again.IdempotencyKey)
}

func TestScheduleForPurchaseConcurrentCallersShareRow(t *testing.T) {
	repos := newTestRepos(t)
	purchase := seedPurchase(t, repos, models.PurchaseStatusSettled, "dev@getalby.com")
	s := NewScheduler(repos, models.PayoutProviderOpenNode)

	var wg sync.WaitGroup
	ids := make([]uint, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.ScheduleForPurchase(context.Background(), purchase.ID)
			if assert.NoError(t, err) {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestScheduleForPurchaseRejects(t *testing.T) {
	repos := newTestRepos(t)
	s := NewScheduler(repos, models.PayoutProviderOpenNode)

	pending := seedPurchase(t, repos, models.PurchaseStatusPending, "dev@getalby.com")
	_, err := s.ScheduleForPurchase(context.Background(), pending.ID)
	assert.ErrorIs(t, err, ErrPurchaseNotSettled)

	_, err = s.ScheduleForPurchase(context.Background(), 12345)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestScheduleForPurchaseRequiresAddress(t *testing.T) {
	repos := newTestRepos(t)
	s := NewScheduler(repos, models.PayoutProviderOpenNode)

	purchase := seedPurchase(t, repos, models.PurchaseStatusSettled, "")
	_, err := s.ScheduleForPurchase(context.Background(), purchase.ID)
	assert.ErrorIs(t, err, ErrNoPayoutAddress)
}
