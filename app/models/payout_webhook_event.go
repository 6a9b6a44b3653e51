package models

import (
	"time"

	"gorm.io/datatypes"
)

// PayoutWebhookEvent journals provider notifications for operator triage.
// Deliveries are not deduplicated here; the ledger is the idempotency boundary.
type PayoutWebhookEvent struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Provider             string         `gorm:"type:varchar(20);not null;index" json:"provider"`
	ProviderWithdrawalID string         `gorm:"type:varchar(191);not null;index" json:"provider_withdrawal_id"`
	Status               string         `gorm:"type:varchar(32);not null;default:''" json:"status"`
	PayloadJSON          datatypes.JSON `gorm:"type:json" json:"payload_json"`
	SignatureValid       bool           `gorm:"default:false;index" json:"signature_valid"`
	PayoutID             *uint          `gorm:"index" json:"payout_id,omitempty"`
	Outcome              string         `gorm:"type:varchar(32);not null;default:'';index" json:"outcome"`
	TriageFlags          string         `gorm:"type:varchar(500);default:''" json:"triage_flags"`
	ProcessedAt          *time.Time     `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError      string         `gorm:"type:text" json:"processing_error"`
	CreatedAt            time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// NeedsTriage reports whether an operator should look at the event.
func (e *PayoutWebhookEvent) NeedsTriage() bool {
	return e != nil && (e.TriageFlags != "" || e.ProcessingError != "")
}
