package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"gorm.io/gorm"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a webhook journal repository.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *models.PayoutWebhookEvent) error {
	return mapError(r.db.WithContext(ctx).Create(event).Error, "create webhook event")
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint, result WebhookEventResult) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"outcome":          result.Outcome,
		"triage_flags":     result.TriageFlags,
		"payout_id":        result.PayoutID,
		"processing_error": result.ProcessingError,
	}
	err := r.db.WithContext(ctx).Model(&models.PayoutWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
	return mapError(err, fmt.Sprintf("mark webhook event %d processed", id))
}

func (r *webhookEventRepository) ListNeedingTriage(ctx context.Context, limit int) ([]models.PayoutWebhookEvent, error) {
	var events []models.PayoutWebhookEvent
	err := r.db.WithContext(ctx).
		Where("triage_flags <> '' OR processing_error <> ''").
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, mapError(err, "list webhook events needing triage")
	}
	return events, nil
}
