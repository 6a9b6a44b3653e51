package models

import (
	"time"

	"gorm.io/datatypes"
)

// PayoutStatus is the settlement state of a single creator payout.
type PayoutStatus string

const (
	PayoutStatusScheduled PayoutStatus = "SCHEDULED"
	PayoutStatusSubmitted PayoutStatus = "SUBMITTED"
	PayoutStatusSent      PayoutStatus = "SENT"
	PayoutStatusFailed    PayoutStatus = "FAILED"
	PayoutStatusRetrying  PayoutStatus = "RETRYING"
	PayoutStatusCanceled  PayoutStatus = "CANCELED"
)

// MaxLastErrorLength caps Payout.LastError.
const MaxLastErrorLength = 500

// IsTerminal reports whether no automatic transition leaves this status.
func (s PayoutStatus) IsTerminal() bool {
	switch s {
	case PayoutStatusSent, PayoutStatusFailed, PayoutStatusCanceled:
		return true
	default:
		return false
	}
}

// IsDue reports whether the worker may pick up a payout in this status.
func (s PayoutStatus) IsDue() bool {
	return s == PayoutStatusScheduled || s == PayoutStatusRetrying
}

// DueStatuses lists the statuses scanned by the submission worker.
func DueStatuses() []PayoutStatus {
	return []PayoutStatus{PayoutStatusScheduled, PayoutStatusRetrying}
}

// CanTransition reports whether from -> to is an allowed payout transition.
// CANCELED is administrative and never entered through this table.
func CanTransition(from, to PayoutStatus) bool {
	switch from {
	case PayoutStatusScheduled, PayoutStatusRetrying:
		switch to {
		case PayoutStatusSubmitted, PayoutStatusRetrying, PayoutStatusFailed:
			return true
		}
	case PayoutStatusSubmitted:
		switch to {
		case PayoutStatusSent, PayoutStatusFailed:
			return true
		}
	}
	return false
}

// Payout tracks the outbound settlement of one purchase to its creator.
// Rows are never deleted.
type Payout struct {
	ID                   uint                             `gorm:"primaryKey" json:"id"`
	PurchaseID           uint                             `gorm:"not null;uniqueIndex:ux_payouts_purchase" json:"purchase_id"`
	DeveloperUserID      uint                             `gorm:"not null;index" json:"developer_user_id"`
	DestinationAddress   string                           `gorm:"type:varchar(320);not null" json:"destination_address"`
	AmountMsat           int64                            `gorm:"not null" json:"amount_msat"`
	Status               PayoutStatus                     `gorm:"type:varchar(16);not null;default:'SCHEDULED';index:idx_payouts_status_created,priority:1" json:"status"`
	AttemptCount         int                              `gorm:"not null;default:0" json:"attempt_count"`
	LastError            string                           `gorm:"type:varchar(500);default:''" json:"last_error"`
	IdempotencyKey       string                           `gorm:"type:varchar(64);not null;uniqueIndex:ux_payouts_idempotency_key" json:"idempotency_key"`
	Provider             string                           `gorm:"type:varchar(20);default:''" json:"provider"`
	ProviderWithdrawalID *string                          `gorm:"type:varchar(191);uniqueIndex:ux_payouts_provider_withdrawal" json:"provider_withdrawal_id,omitempty"`
	ProviderMeta         datatypes.JSONType[ProviderMeta] `gorm:"type:json" json:"provider_meta"`
	SubmittedAt          *time.Time                       `gorm:"type:timestamp;default:null" json:"submitted_at,omitempty"`
	ConfirmedAt          *time.Time                       `gorm:"type:timestamp;default:null" json:"confirmed_at,omitempty"`
	CreatedAt            time.Time                        `gorm:"autoCreateTime;index:idx_payouts_status_created,priority:2" json:"created_at"`
	UpdatedAt            time.Time                        `gorm:"autoUpdateTime" json:"updated_at"`
}

// WithdrawalID returns the provider withdrawal id or "".
func (p *Payout) WithdrawalID() string {
	if p == nil || p.ProviderWithdrawalID == nil {
		return ""
	}
	return *p.ProviderWithdrawalID
}

// TruncateError shortens msg to MaxLastErrorLength runes.
func TruncateError(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxLastErrorLength {
		return msg
	}
	return string(r[:MaxLastErrorLength])
}
