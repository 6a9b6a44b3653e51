package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a ledger repository backed by GORM.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Insert appends an entry. A taken dedupe key is reported as ErrConflict
// instead of a driver error, so the surrounding transaction stays usable.
func (r *ledgerRepository) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	q := r.db.WithContext(ctx)
	if entry.DedupeKey != nil {
		q = q.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		})
	}
	tx := q.Create(entry)
	if tx.Error != nil {
		return mapError(tx.Error, fmt.Sprintf("insert %s ledger entry for purchase %d", entry.Type, entry.PurchaseID))
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: ledger dedupe key %q", ErrConflict, derefString(entry.DedupeKey))
	}
	return nil
}

func (r *ledgerRepository) CountByPurchaseAndType(ctx context.Context, purchaseID uint, entryType models.LedgerEntryType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("purchase_id = ? AND type = ?", purchaseID, entryType).
		Count(&count).Error
	if err != nil {
		return 0, mapError(err, "count ledger entries")
	}
	return count, nil
}

func (r *ledgerRepository) ListByPurchase(ctx context.Context, purchaseID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).Order("id ASC").Find(&entries).Error
	if err != nil {
		return nil, mapError(err, "list ledger entries")
	}
	return entries, nil
}

// ListCreatedBetween returns entries with from <= created_at < to.
func (r *ledgerRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, mapError(err, "list ledger entries by window")
	}
	return entries, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
