// Package ledger writes settlement audit entries. The unique dedupe key is
// the only "has this already happened" check; a conflicting insert means the
// event was recorded by an earlier or concurrent writer.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/app/repository"
)

const (
	submittedPrefix = "payout_submitted:"
	confirmedPrefix = "payout_confirmed:"
	failedPrefix    = "payout_failed:"
)

// SubmittedKey dedupes PAYOUT_SUBMITTED entries.
func SubmittedKey(purchaseID uint) string {
	return fmt.Sprintf("%s%d", submittedPrefix, purchaseID)
}

// ConfirmedKey dedupes PAYOUT_CONFIRMED entries.
func ConfirmedKey(purchaseID uint) string {
	return fmt.Sprintf("%s%d", confirmedPrefix, purchaseID)
}

// FailedKey dedupes PAYOUT_FAILED entries from both the worker and the
// webhook receiver.
func FailedKey(purchaseID uint) string {
	return fmt.Sprintf("%s%d", failedPrefix, purchaseID)
}

// Entry is the input for Record.
type Entry struct {
	PurchaseID uint
	Type       models.LedgerEntryType
	AmountMsat int64
	DedupeKey  string
	Meta       map[string]interface{}
}

// Record appends entry and reports whether it was newly applied. A dedupe
// conflict returns (false, nil).
func Record(ctx context.Context, repo repository.LedgerRepository, entry Entry) (bool, error) {
	row := &models.LedgerEntry{
		PurchaseID: entry.PurchaseID,
		Type:       entry.Type,
		AmountMsat: entry.AmountMsat,
	}
	if entry.DedupeKey != "" {
		key := entry.DedupeKey
		row.DedupeKey = &key
	}
	if len(entry.Meta) > 0 {
		raw, err := json.Marshal(entry.Meta)
		if err != nil {
			return false, fmt.Errorf("encode ledger meta: %w", err)
		}
		row.Meta = datatypes.JSON(raw)
	}

	err := repo.Insert(ctx, row)
	if errors.Is(err, repository.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Submitted builds the PAYOUT_SUBMITTED entry for a payout.
func Submitted(p *models.Payout, withdrawalID string, feeSats int64) Entry {
	return Entry{
		PurchaseID: p.PurchaseID,
		Type:       models.LedgerPayoutSubmitted,
		AmountMsat: p.AmountMsat,
		DedupeKey:  SubmittedKey(p.PurchaseID),
		Meta: map[string]interface{}{
			"payout_id":     p.ID,
			"provider":      p.Provider,
			"withdrawal_id": withdrawalID,
			"fee_sats":      feeSats,
		},
	}
}

// Confirmed builds the PAYOUT_CONFIRMED entry for a payout.
func Confirmed(p *models.Payout, meta map[string]interface{}) Entry {
	return Entry{
		PurchaseID: p.PurchaseID,
		Type:       models.LedgerPayoutConfirmed,
		AmountMsat: p.AmountMsat,
		DedupeKey:  ConfirmedKey(p.PurchaseID),
		Meta:       withPayout(p, meta),
	}
}

// Failed builds the PAYOUT_FAILED entry for a payout.
func Failed(p *models.Payout, reason string, meta map[string]interface{}) Entry {
	m := withPayout(p, meta)
	m["reason"] = models.TruncateError(reason)
	return Entry{
		PurchaseID: p.PurchaseID,
		Type:       models.LedgerPayoutFailed,
		AmountMsat: p.AmountMsat,
		DedupeKey:  FailedKey(p.PurchaseID),
		Meta:       m,
	}
}

func withPayout(p *models.Payout, meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	out["payout_id"] = p.ID
	if id := p.WithdrawalID(); id != "" {
		out["withdrawal_id"] = id
	}
	return out
}
