package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayoutFox/app/repository"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/cache"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/config"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/database"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/env"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/hostlock"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/lnurl"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/payout"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/provider"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, help, err := payout.ParseFlags(args)
	if help {
		payout.Usage(os.Stdout)
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "payout-worker: %v\n\n", err)
		payout.Usage(os.Stderr)
		return exitUsage
	}

	env.SetupEnvFile()

	settlement, err := config.LoadSettlement()
	if err != nil {
		log.Errorf("[PayoutWorker] %v", err)
		return exitFailed
	}
	opts.MaxAttempts = settlement.MaxAttempts

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.ConfigFromEnv())
	if err != nil {
		log.Errorf("[PayoutWorker] %v", err)
		return exitFailed
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warnf("[PayoutWorker] Closing database: %v", err)
		}
	}()

	locker, closeLocker, err := newLocker(ctx, settlement)
	if err != nil {
		log.Errorf("[PayoutWorker] %v", err)
		return exitFailed
	}
	defer closeLocker()

	client := provider.New(settlement)
	if settlement.ProviderMode() == config.ProviderModeMock {
		log.Warn("[PayoutWorker] OPENNODE_API_KEY not set, using mock provider and offline invoice resolver")
	}

	summary, err := payout.RunOnce(ctx, opts, payout.Deps{
		Repos:       repository.NewRepositories(db),
		Resolver:    newResolver(settlement),
		Provider:    client,
		Locker:      locker,
		CallbackURL: settlement.SubmissionCallbackURL(),
		Comment:     settlement.LNURLComment,
	})
	report(summary)
	if err != nil {
		log.Errorf("[PayoutWorker] Run aborted: %v", err)
		return exitFailed
	}
	return exitOK
}

// newResolver keeps mock runs off the network: without provider credentials
// no invoice would ever be paid, so addresses are not contacted either.
func newResolver(cfg config.Settlement) payout.InvoiceResolver {
	if cfg.ProviderMode() == config.ProviderModeMock {
		return lnurl.OfflineResolver{}
	}
	return lnurl.NewResolver(cfg.HTTPTimeout)
}

// newLocker picks the lock backend. The returned close func is always safe
// to call.
func newLocker(ctx context.Context, cfg config.Settlement) (hostlock.Locker, func(), error) {
	if cfg.LockBackend != config.LockBackendRedis {
		return hostlock.NewFileLock(cfg.LockPath, cfg.LockStaleAfter), func() {}, nil
	}
	cacheCfg := cache.ConfigFromEnv()
	if !cacheCfg.Enabled() {
		return nil, nil, errors.New("PAYOUT_LOCK_BACKEND=redis requires CACHE_HOST")
	}
	client, err := cache.Connect(ctx, cacheCfg)
	if err != nil {
		return nil, nil, err
	}
	return hostlock.NewRedisLock(client, cfg.LockStaleAfter), func() { _ = client.Close() }, nil
}

func report(s payout.Summary) {
	if s.LockSkipped {
		log.Info("[PayoutWorker] Another run holds the lock, nothing to do")
		return
	}
	for _, o := range s.Outcomes {
		fields := []interface{}{"payout_id", o.PayoutID, "purchase_id", o.PurchaseID, "action", o.Action}
		if o.WithdrawalID != "" {
			fields = append(fields, "withdrawal_id", o.WithdrawalID)
		}
		if o.Error != "" {
			fields = append(fields, "error", o.Error, "permanent", o.Permanent)
			log.Warnw("[PayoutWorker] Payout not submitted", fields...)
			continue
		}
		log.Infow("[PayoutWorker] Payout processed", fields...)
	}
	log.Infow("[PayoutWorker] Run finished",
		"scanned", s.Scanned,
		"submitted", s.Submitted,
		"skipped", s.Skipped,
		"errored", s.Errored,
		"failed_max_attempts", s.FailedMaxAttempts,
		"dry_run", s.DryRun,
	)
}
