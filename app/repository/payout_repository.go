package repository

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// payoutRepository implements the PayoutRepository interface
type payoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository creates a new payout repository instance
func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Create(ctx context.Context, payout *models.Payout) error {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "purchase_id"}},
		DoNothing: true,
	}).Create(payout)
	if tx.Error != nil {
		return mapError(tx.Error, fmt.Sprintf("create payout for purchase %d", payout.PurchaseID))
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: payout for purchase %d", ErrConflict, payout.PurchaseID)
	}
	return nil
}

func (r *payoutRepository) GetByID(ctx context.Context, id uint) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, id).Error; err != nil {
		return nil, mapError(err, fmt.Sprintf("payout %d", id))
	}
	return &payout, nil
}

func (r *payoutRepository) GetByPurchaseID(ctx context.Context, purchaseID uint) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&payout).Error
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("payout for purchase %d", purchaseID))
	}
	return &payout, nil
}

func (r *payoutRepository) GetByProviderWithdrawalID(ctx context.Context, withdrawalID string) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where("provider_withdrawal_id = ?", withdrawalID).First(&payout).Error
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("payout for withdrawal %q", withdrawalID))
	}
	return &payout, nil
}

func (r *payoutRepository) ListDue(ctx context.Context, limit int) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.WithContext(ctx).
		Where("status IN ?", models.DueStatuses()).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, mapError(err, "list due payouts")
	}
	return payouts, nil
}

func (r *payoutRepository) UpdateIfStatus(ctx context.Context, id uint, expected []models.PayoutStatus, updates map[string]interface{}) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Payout{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(updates)
	if tx.Error != nil {
		return false, mapError(tx.Error, fmt.Sprintf("update payout %d", id))
	}
	return tx.RowsAffected > 0, nil
}

func (r *payoutRepository) CountByStatus(ctx context.Context) (map[models.PayoutStatus]int64, error) {
	var rows []struct {
		Status models.PayoutStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Payout{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, mapError(err, "count payouts by status")
	}
	out := make(map[models.PayoutStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
