package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/PayoutFox/app/models"
)

// PayoutRepository defines the payout persistence operations used by the
// worker, the webhook receiver and the scheduler.
type PayoutRepository interface {
	// Create inserts a payout. ErrConflict means the purchase already has one.
	Create(ctx context.Context, payout *models.Payout) error
	GetByID(ctx context.Context, id uint) (*models.Payout, error)
	GetByPurchaseID(ctx context.Context, purchaseID uint) (*models.Payout, error)
	GetByProviderWithdrawalID(ctx context.Context, withdrawalID string) (*models.Payout, error)
	// ListDue returns SCHEDULED and RETRYING payouts, oldest first.
	ListDue(ctx context.Context, limit int) ([]models.Payout, error)
	// UpdateIfStatus applies updates only while the row is in one of the
	// expected statuses and reports whether a row changed.
	UpdateIfStatus(ctx context.Context, id uint, expected []models.PayoutStatus, updates map[string]interface{}) (bool, error)
	CountByStatus(ctx context.Context) (map[models.PayoutStatus]int64, error)
}

// LedgerRepository defines the append-only ledger operations.
type LedgerRepository interface {
	// Insert appends an entry. ErrConflict means the dedupe key is taken.
	Insert(ctx context.Context, entry *models.LedgerEntry) error
	CountByPurchaseAndType(ctx context.Context, purchaseID uint, entryType models.LedgerEntryType) (int64, error)
	ListByPurchase(ctx context.Context, purchaseID uint) ([]models.LedgerEntry, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.LedgerEntry, error)
}

// PurchaseRepository is the read surface owned by the storefront.
type PurchaseRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Purchase, error)
}

// UserRepository is the developer identity read surface.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// WebhookEventRepository journals provider notifications.
type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.PayoutWebhookEvent) error
	MarkProcessed(ctx context.Context, id uint, result WebhookEventResult) error
	ListNeedingTriage(ctx context.Context, limit int) ([]models.PayoutWebhookEvent, error)
}

// WebhookEventResult is written back to a journaled webhook event.
type WebhookEventResult struct {
	Outcome         string
	TriageFlags     string
	PayoutID        *uint
	ProcessingError string
}
