package models

import "time"

const (
	PurchaseStatusPending  = "pending"
	PurchaseStatusSettled  = "settled"
	PurchaseStatusRefunded = "refunded"
)

// Purchase is the storefront's record of a settled sale. The settlement core
// only reads it when scheduling a payout.
type Purchase struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	BuyerUserID     uint       `gorm:"not null;index" json:"buyer_user_id"`
	DeveloperUserID uint       `gorm:"not null;index" json:"developer_user_id"`
	AmountMsat      int64      `gorm:"not null" json:"amount_msat"`
	Status          string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SettledAt       *time.Time `gorm:"type:timestamp;default:null" json:"settled_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsSettled reports whether the purchase is eligible for a payout.
func (p *Purchase) IsSettled() bool {
	return p != nil && p.Status == PurchaseStatusSettled
}
