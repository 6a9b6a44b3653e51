package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayoutFox/app/repository"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/database"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/env"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/ledgerexport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("ledger-export", flag.ContinueOnError)
	fromRaw := fs.String("from", "", "window start, RFC 3339 (default: start of yesterday, UTC)")
	toRaw := fs.String("to", "", "window end, RFC 3339, exclusive (default: from + 24h)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	from, to, err := window(*fromRaw, *toRaw, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger-export: %v\n", err)
		return 2
	}

	env.SetupEnvFile()

	cfg, err := ledgerexport.LoadConfig()
	if err != nil {
		log.Errorf("[LedgerExport] %v", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.Open(database.ConfigFromEnv())
	if err != nil {
		log.Errorf("[LedgerExport] %v", err)
		return 1
	}
	defer func() { _ = database.Close(db) }()

	uploader, err := ledgerexport.NewS3Uploader(ctx, cfg)
	if err != nil {
		log.Errorf("[LedgerExport] %v", err)
		return 1
	}

	exporter := ledgerexport.NewExporter(repository.NewRepositories(db).Ledger, uploader, cfg.Prefix)
	key, count, err := exporter.Export(ctx, from, to)
	if err != nil {
		log.Errorf("[LedgerExport] Export failed: %v", err)
		return 1
	}
	if count == 0 {
		log.Infow("[LedgerExport] No ledger entries in window", "from", from, "to", to)
		return 0
	}
	log.Infow("[LedgerExport] Export uploaded", "bucket", cfg.BucketName, "key", key, "entries", count)
	return 0
}

func window(fromRaw, toRaw string, now time.Time) (time.Time, time.Time, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	if fromRaw != "" {
		t, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	}
	to := from.Add(24 * time.Hour)
	if toRaw != "" {
		t, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("--from must be before --to")
	}
	return from, to, nil
}
