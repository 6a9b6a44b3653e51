package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/app/repository"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/ledger"
)

// Outcomes reported in Result and stored on the journaled event.
const (
	OutcomeNotConfigured   = "not_configured"
	OutcomeMalformed       = "malformed"
	OutcomeUnauthorized    = "unauthorized"
	OutcomeLookupMiss      = "lookup_miss"
	OutcomeSent            = "sent"
	OutcomeAlreadySent     = "already_sent"
	OutcomeFailed          = "failed"
	OutcomeAlreadyFailed   = "already_failed"
	OutcomeIgnored         = "ignored"
	OutcomeUnknownStatus   = "unknown_status"
	OutcomeProcessingError = "processing_error"
)

// TriageCounter receives triage flags. Implementations are best-effort.
type TriageCounter interface {
	AddTriage(ctx context.Context, flags ...string) error
}

// Result tells the HTTP layer what to answer.
type Result struct {
	StatusCode int
	Outcome    string
	PayoutID   *uint
	EventID    uint
	Flags      []string
	// Detail is a short human-readable reason for non-200 answers.
	Detail string
	// CounterErr is set when the triage counters could not be updated. It
	// never changes StatusCode.
	CounterErr error
}

// Receiver applies withdrawal notifications to payouts.
type Receiver struct {
	APIKey   string
	Repos    *repository.Repositories
	Counters TriageCounter
	Now      func() time.Time
}

// NewReceiver returns a Receiver. counters may be nil.
func NewReceiver(apiKey string, repos *repository.Repositories, counters TriageCounter) *Receiver {
	return &Receiver{APIKey: apiKey, Repos: repos, Counters: counters, Now: time.Now}
}

// Configured reports whether webhooks can be authenticated.
func (r *Receiver) Configured() bool {
	return strings.TrimSpace(r.APIKey) != ""
}

// Receive parses form values and applies them.
func (r *Receiver) Receive(ctx context.Context, values url.Values) (Result, error) {
	if !r.Configured() {
		return notConfigured(), nil
	}
	n, err := ParseForm(values)
	if err != nil {
		return Result{StatusCode: http.StatusBadRequest, Outcome: OutcomeMalformed, Detail: err.Error()}, nil
	}
	return r.Apply(ctx, n)
}

// Apply authenticates n and applies it. The error is non-nil only together
// with a 500 result, when storage failed and the provider should redeliver.
func (r *Receiver) Apply(ctx context.Context, n Notification) (Result, error) {
	if !r.Configured() {
		return notConfigured(), nil
	}
	if err := n.Validate(); err != nil {
		return Result{StatusCode: http.StatusBadRequest, Outcome: OutcomeMalformed, Detail: err.Error()}, nil
	}

	signatureValid := VerifySignature(r.APIKey, n.ID, n.HashedOrder)
	event := &models.PayoutWebhookEvent{
		Provider:             models.PayoutProviderOpenNode,
		ProviderWithdrawalID: truncate(n.ID, 191),
		Status:               truncate(n.Status, 32),
		PayloadJSON:          encodePayload(n),
		SignatureValid:       signatureValid,
	}
	if err := r.Repos.WebhookEvent.Create(ctx, event); err != nil {
		return r.fail(ctx, Result{}, nil, fmt.Errorf("journal webhook: %w", err))
	}
	res := Result{StatusCode: http.StatusOK, EventID: event.ID}

	if !signatureValid {
		res.StatusCode = http.StatusUnauthorized
		res.Outcome = OutcomeUnauthorized
		res.Detail = "signature mismatch"
		res.Flags = []string{FlagSignatureMismatch}
		return r.finish(ctx, res, nil)
	}

	telemetry := Analyze(n)
	res.Flags = append(res.Flags, telemetry.Flags...)

	p, err := r.Repos.Payout.GetByProviderWithdrawalID(ctx, n.ID)
	if errors.Is(err, repository.ErrNotFound) {
		res.Outcome = OutcomeLookupMiss
		res.Flags = append(res.Flags, FlagLookupMiss)
		return r.finish(ctx, res, nil)
	}
	if err != nil {
		return r.fail(ctx, res, event, err)
	}
	res.PayoutID = &p.ID
	if amountMismatch(telemetry.Amount, p.AmountMsat) {
		res.Flags = append(res.Flags, FlagAmountMismatch)
	}

	switch n.Status {
	case StatusConfirmed:
		err = r.applyConfirmed(ctx, p.ID, n, telemetry, &res)
	case StatusFailed, StatusError:
		err = r.applyFailed(ctx, p.ID, n, &res)
	default:
		res.Outcome = OutcomeUnknownStatus
		res.Flags = append(res.Flags, FlagUnknownStatus)
	}
	if err != nil {
		return r.fail(ctx, res, event, err)
	}
	return r.finish(ctx, res, nil)
}

func (r *Receiver) applyConfirmed(ctx context.Context, payoutID uint, n Notification, t Telemetry, res *Result) error {
	return r.Repos.Transaction(ctx, func(tx *repository.Repositories) error {
		p, err := tx.Payout.GetByID(ctx, payoutID)
		if err != nil {
			return err
		}
		if skipConfirmed(p.Status, res) {
			return nil
		}

		now := r.now()
		changed, err := tx.Payout.UpdateIfStatus(ctx, p.ID, []models.PayoutStatus{p.Status}, map[string]interface{}{
			"status":       models.PayoutStatusSent,
			"confirmed_at": &now,
			"last_error":   "",
		})
		if err != nil {
			return err
		}
		if !changed {
			res.Outcome = OutcomeIgnored
			return nil
		}

		meta := map[string]interface{}{"source": "webhook"}
		if t.Amount != nil {
			meta["amount_sats"] = t.Amount.String()
		}
		if t.Fee != nil {
			meta["fee_sats"] = t.Fee.String()
		}
		if n.ProcessedAt != "" {
			meta["processed_at"] = n.ProcessedAt
		}
		if _, err := ledger.Record(ctx, tx.Ledger, ledger.Confirmed(p, meta)); err != nil {
			return err
		}
		res.Outcome = OutcomeSent
		return nil
	})
}

// skipConfirmed reports whether a confirmation must leave a payout in
// status alone and sets the outcome for that case.
func skipConfirmed(status models.PayoutStatus, res *Result) bool {
	switch {
	case status == models.PayoutStatusSent:
		res.Outcome = OutcomeAlreadySent
	case status == models.PayoutStatusFailed:
		res.Outcome = OutcomeIgnored
		res.Flags = append(res.Flags, FlagConfirmedAfterFail)
	case status.IsTerminal():
		res.Outcome = OutcomeIgnored
	case !models.CanTransition(status, models.PayoutStatusSent):
		res.Outcome = OutcomeIgnored
		res.Flags = append(res.Flags, FlagNotSubmitted)
	default:
		return false
	}
	return true
}

func (r *Receiver) applyFailed(ctx context.Context, payoutID uint, n Notification, res *Result) error {
	return r.Repos.Transaction(ctx, func(tx *repository.Repositories) error {
		p, err := tx.Payout.GetByID(ctx, payoutID)
		if err != nil {
			return err
		}
		reason := n.Error
		if reason == "" {
			reason = "provider reported withdrawal " + n.Status
		}

		switch {
		case p.Status == models.PayoutStatusSent:
			res.Outcome = OutcomeIgnored
			res.Flags = append(res.Flags, FlagFailedAfterSent)
			return nil
		case p.Status == models.PayoutStatusFailed:
			// deduped; writes nothing when the entry exists
			res.Outcome = OutcomeAlreadyFailed
		case p.Status.IsTerminal():
			res.Outcome = OutcomeIgnored
			return nil
		case p.Status != models.PayoutStatusSubmitted:
			res.Outcome = OutcomeIgnored
			res.Flags = append(res.Flags, FlagNotSubmitted)
			return nil
		default:
			changed, err := tx.Payout.UpdateIfStatus(ctx, p.ID, []models.PayoutStatus{p.Status}, map[string]interface{}{
				"status":     models.PayoutStatusFailed,
				"last_error": models.TruncateError(reason),
			})
			if err != nil {
				return err
			}
			if !changed {
				res.Outcome = OutcomeIgnored
				return nil
			}
			res.Outcome = OutcomeFailed
		}

		_, err = ledger.Record(ctx, tx.Ledger, ledger.Failed(p, reason, map[string]interface{}{
			"source": "webhook",
			"status": n.Status,
		}))
		return err
	})
}

func (r *Receiver) finish(ctx context.Context, res Result, processingErr error) (Result, error) {
	result := repository.WebhookEventResult{
		Outcome:     res.Outcome,
		TriageFlags: strings.Join(res.Flags, ","),
		PayoutID:    res.PayoutID,
	}
	if processingErr != nil {
		result.ProcessingError = processingErr.Error()
	}
	if res.EventID != 0 {
		if err := r.Repos.WebhookEvent.MarkProcessed(ctx, res.EventID, result); err != nil && processingErr == nil {
			return r.fail(ctx, res, nil, fmt.Errorf("mark webhook processed: %w", err))
		}
	}
	if r.Counters != nil && len(res.Flags) > 0 {
		res.CounterErr = r.Counters.AddTriage(ctx, res.Flags...)
	}
	return res, processingErr
}

// fail turns a storage error into a 500 so the provider redelivers. The
// event, when journaled, records the error.
func (r *Receiver) fail(ctx context.Context, res Result, event *models.PayoutWebhookEvent, err error) (Result, error) {
	res.StatusCode = http.StatusInternalServerError
	res.Outcome = OutcomeProcessingError
	res.Detail = "internal error"
	if event == nil {
		res.EventID = 0
	}
	return r.finish(ctx, res, err)
}

func (r *Receiver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func notConfigured() Result {
	return Result{
		StatusCode: http.StatusServiceUnavailable,
		Outcome:    OutcomeNotConfigured,
		Detail:     "OPENNODE_API_KEY is not configured",
	}
}

// amountMismatch compares the reported sats amount with the payout. It is
// advisory only.
func amountMismatch(reportedSats *decimal.Decimal, amountMsat int64) bool {
	if reportedSats == nil {
		return false
	}
	expected := decimal.NewFromInt(amountMsat).Div(decimal.NewFromInt(1000))
	return !reportedSats.Equal(expected)
}

func encodePayload(n Notification) datatypes.JSON {
	raw, err := json.Marshal(n)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
