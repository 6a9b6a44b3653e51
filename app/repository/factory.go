package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Repositories struct holds all repository instances bound to one handle,
// which is either the process-wide DB or an open transaction.
type Repositories struct {
	Payout       PayoutRepository
	Ledger       LedgerRepository
	Purchase     PurchaseRepository
	User         UserRepository
	WebhookEvent WebhookEventRepository

	db *gorm.DB
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Payout:       NewPayoutRepository(db),
		Ledger:       NewLedgerRepository(db),
		Purchase:     NewPurchaseRepository(db),
		User:         NewUserRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		db:           db,
	}
}

// Transaction runs fn with repositories bound to a single database
// transaction. Returning an error from fn rolls it back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DB returns the handle the repositories are bound to.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}
