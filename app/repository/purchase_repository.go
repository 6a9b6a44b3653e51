package repository

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"gorm.io/gorm"
)

type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a read-only purchase repository.
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) GetByID(ctx context.Context, id uint) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).First(&purchase, id).Error; err != nil {
		return nil, mapError(err, fmt.Sprintf("purchase %d", id))
	}
	return &purchase, nil
}
