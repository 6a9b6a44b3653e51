// Package payout submits due creator payouts to the payment provider.
//
// RunOnce is a single bounded pass. It never logs; the entry point prints
// the returned Summary.
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/app/repository"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/config"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/hostlock"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/ledger"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/lnurl"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/provider"
)

// Actions reported per payout.
const (
	ActionSubmitted         = "submitted"
	ActionAlreadyFinal      = "already_final"
	ActionDryRun            = "dry_run"
	ActionFailedMaxAttempts = "failed_max_attempts"
	ActionRetrying          = "retrying"
	ActionSkipped           = "skipped"
	ActionErrored           = "errored"
)

// InvoiceResolver turns a destination address into a payable invoice.
type InvoiceResolver interface {
	Resolve(ctx context.Context, address string, amountMsat int64, comment string) (string, error)
}

// Deps are the collaborators of a run. Locker may be nil when the caller
// already guarantees exclusivity.
type Deps struct {
	Repos       *repository.Repositories
	Resolver    InvoiceResolver
	Provider    provider.Client
	Locker      hostlock.Locker
	CallbackURL string
	Comment     string
	Now         func() time.Time
}

// Outcome is the result for one payout.
type Outcome struct {
	PayoutID     uint
	PurchaseID   uint
	Action       string
	WithdrawalID string
	Error        string
	// Permanent marks errors that retrying cannot fix, such as an invalid
	// lightning address. The payout still follows the retry budget.
	Permanent bool
}

// Summary is the result of one run.
type Summary struct {
	Scanned           int
	Submitted         int
	Skipped           int
	Errored           int
	FailedMaxAttempts int
	DryRun            bool
	LockSkipped       bool
	Outcomes          []Outcome
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Action {
	case ActionSubmitted:
		s.Submitted++
	case ActionFailedMaxAttempts:
		s.FailedMaxAttempts++
	case ActionRetrying, ActionErrored:
		s.Errored++
	default:
		s.Skipped++
	}
}

// RunOnce processes up to opts.Limit due payouts, oldest first, one at a
// time. Finding the lock held is a successful no-op with LockSkipped set.
func RunOnce(ctx context.Context, opts Options, deps Deps) (summary Summary, err error) {
	if err := opts.Validate(); err != nil {
		return Summary{}, err
	}
	if deps.Repos == nil || deps.Resolver == nil || deps.Provider == nil {
		return Summary{}, errors.New("payout worker requires repositories, a resolver and a provider")
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = config.DefaultMaxAttempts
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	summary.DryRun = opts.DryRun

	if deps.Locker != nil {
		release, lockErr := deps.Locker.Acquire(ctx)
		if errors.Is(lockErr, hostlock.ErrLockHeld) {
			summary.LockSkipped = true
			return summary, nil
		}
		if lockErr != nil {
			return summary, fmt.Errorf("acquire worker lock: %w", lockErr)
		}
		defer func() {
			if rerr := release(); rerr != nil && err == nil {
				err = fmt.Errorf("release worker lock: %w", rerr)
			}
		}()
	}

	due, err := deps.Repos.Payout.ListDue(ctx, opts.Limit)
	if err != nil {
		return summary, err
	}
	summary.Scanned = len(due)

	w := &worker{opts: opts, deps: deps}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.add(w.processSafely(ctx, &due[i]))
	}
	return summary, nil
}

type worker struct {
	opts Options
	deps Deps
}

func (w *worker) processSafely(ctx context.Context, p *models.Payout) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				PayoutID:   p.ID,
				PurchaseID: p.PurchaseID,
				Action:     ActionErrored,
				Error:      fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return w.process(ctx, p)
}

func (w *worker) process(ctx context.Context, p *models.Payout) Outcome {
	out := Outcome{PayoutID: p.ID, PurchaseID: p.PurchaseID}
	if !p.Status.IsDue() {
		out.Action = ActionSkipped
		return out
	}

	if p.AttemptCount >= w.opts.MaxAttempts {
		if w.opts.DryRun {
			out.Action = ActionDryRun
			out.Error = maxAttemptsReason(p.AttemptCount, w.opts.MaxAttempts)
			return out
		}
		return w.failMaxAttempts(ctx, p, out)
	}

	if w.opts.DryRun {
		out.Action = ActionDryRun
		return out
	}

	// Network calls stay outside any transaction.
	invoice, err := w.deps.Resolver.Resolve(ctx, p.DestinationAddress, p.AmountMsat, w.deps.Comment)
	if err != nil {
		out.Permanent = lnurl.IsValidation(err)
		return w.retry(ctx, p, out, fmt.Errorf("resolve invoice: %w", err))
	}
	res, err := w.deps.Provider.Withdraw(ctx, provider.WithdrawalRequest{
		Invoice:        invoice,
		AmountMsat:     p.AmountMsat,
		IdempotencyKey: p.IdempotencyKey,
		CallbackURL:    w.deps.CallbackURL,
	})
	if err != nil {
		out.Permanent = errors.Is(err, provider.ErrInvalidAmount)
		return w.retry(ctx, p, out, fmt.Errorf("submit withdrawal: %w", err))
	}
	out.WithdrawalID = res.WithdrawalID

	action, err := w.recordSubmission(ctx, p, res)
	if err != nil {
		return w.retry(ctx, p, out, fmt.Errorf("record submission: %w", err))
	}
	out.Action = action
	return out
}

// recordSubmission re-reads the payout and marks it SUBMITTED unless it has
// moved on since pickup, then writes the deduped ledger entry.
func (w *worker) recordSubmission(ctx context.Context, p *models.Payout, res *provider.WithdrawalResult) (string, error) {
	action := ActionSubmitted
	err := w.deps.Repos.Transaction(ctx, func(tx *repository.Repositories) error {
		current, err := tx.Payout.GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		if !models.CanTransition(current.Status, models.PayoutStatusSubmitted) {
			action = ActionAlreadyFinal
			return nil
		}

		now := w.deps.Now()
		changed, err := tx.Payout.UpdateIfStatus(ctx, current.ID, []models.PayoutStatus{current.Status}, map[string]interface{}{
			"status":                 models.PayoutStatusSubmitted,
			"attempt_count":          gorm.Expr("attempt_count + ?", 1),
			"last_error":             "",
			"provider":               w.deps.Provider.Name(),
			"provider_withdrawal_id": res.WithdrawalID,
			"provider_meta":          datatypes.NewJSONType(res.Meta),
			"submitted_at":           &now,
		})
		if err != nil {
			return err
		}
		if !changed {
			action = ActionAlreadyFinal
			return nil
		}

		current.Provider = w.deps.Provider.Name()
		current.ProviderWithdrawalID = &res.WithdrawalID
		_, err = ledger.Record(ctx, tx.Ledger, ledger.Submitted(current, res.WithdrawalID, res.FeeSats))
		return err
	})
	return action, err
}

func (w *worker) retry(ctx context.Context, p *models.Payout, out Outcome, cause error) Outcome {
	msg := models.TruncateError(cause.Error())
	out.Action = ActionRetrying
	out.Error = msg
	if !models.CanTransition(p.Status, models.PayoutStatusRetrying) {
		out.Action = ActionErrored
		return out
	}

	changed, err := w.deps.Repos.Payout.UpdateIfStatus(ctx, p.ID, []models.PayoutStatus{p.Status}, map[string]interface{}{
		"status":        models.PayoutStatusRetrying,
		"attempt_count": gorm.Expr("attempt_count + ?", 1),
		"last_error":    msg,
	})
	if err != nil {
		out.Action = ActionErrored
		out.Error = models.TruncateError(fmt.Sprintf("%s; mark retrying: %v", msg, err))
		return out
	}
	if !changed {
		out.Action = ActionErrored
	}
	return out
}

func (w *worker) failMaxAttempts(ctx context.Context, p *models.Payout, out Outcome) Outcome {
	reason := maxAttemptsReason(p.AttemptCount, w.opts.MaxAttempts)
	out.Action = ActionFailedMaxAttempts
	out.Error = reason
	if !models.CanTransition(p.Status, models.PayoutStatusFailed) {
		out.Action = ActionSkipped
		return out
	}

	err := w.deps.Repos.Transaction(ctx, func(tx *repository.Repositories) error {
		changed, err := tx.Payout.UpdateIfStatus(ctx, p.ID, []models.PayoutStatus{p.Status}, map[string]interface{}{
			"status":     models.PayoutStatusFailed,
			"last_error": reason,
		})
		if err != nil {
			return err
		}
		if !changed {
			out.Action = ActionSkipped
			return nil
		}
		_, err = ledger.Record(ctx, tx.Ledger, ledger.Failed(p, reason, map[string]interface{}{
			"source":        "worker",
			"attempt_count": p.AttemptCount,
		}))
		return err
	})
	if err != nil {
		out.Action = ActionErrored
		out.Error = models.TruncateError(fmt.Sprintf("%s; mark failed: %v", reason, err))
	}
	return out
}

func maxAttemptsReason(attempts, limit int) string {
	return fmt.Sprintf("max attempts reached (%d/%d)", attempts, limit)
}
