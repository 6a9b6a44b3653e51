package models

import (
	"time"

	"gorm.io/datatypes"
)

// LedgerEntryType names a settlement-affecting event.
type LedgerEntryType string

const (
	LedgerPayoutSubmitted LedgerEntryType = "PAYOUT_SUBMITTED"
	LedgerPayoutConfirmed LedgerEntryType = "PAYOUT_CONFIRMED"
	LedgerPayoutFailed    LedgerEntryType = "PAYOUT_FAILED"
)

// LedgerEntry is an append-only audit record. DedupeKey is unique when set;
// NULL keys never collide.
type LedgerEntry struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	PurchaseID uint            `gorm:"not null;index" json:"purchase_id"`
	Type       LedgerEntryType `gorm:"type:varchar(32);not null;index" json:"type"`
	AmountMsat int64           `gorm:"not null" json:"amount_msat"`
	DedupeKey  *string         `gorm:"type:varchar(191);uniqueIndex:ux_ledger_entries_dedupe_key" json:"dedupe_key,omitempty"`
	Meta       datatypes.JSON  `gorm:"type:json" json:"meta,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}
