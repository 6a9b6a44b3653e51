package payout

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/ManuelReschke/PayoutFox/internal/pkg/config"
)

const (
	DefaultLimit = 25
	MinLimit     = 1
	MaxLimit     = 500
)

// Options controls a single worker run.
type Options struct {
	Limit       int
	DryRun      bool
	MaxAttempts int
}

// Validate checks the limit bounds. A non-positive MaxAttempts is replaced
// by the default in RunOnce rather than rejected.
func (o Options) Validate() error {
	if o.Limit < MinLimit || o.Limit > MaxLimit {
		return fmt.Errorf("--limit must be between %d and %d, got %d", MinLimit, MaxLimit, o.Limit)
	}
	return nil
}

func newFlagSet(opts *Options) *flag.FlagSet {
	fs := flag.NewFlagSet("payout-worker", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&opts.Limit, "limit", DefaultLimit, fmt.Sprintf("maximum number of payouts to process (%d-%d)", MinLimit, MaxLimit))
	fs.BoolVar(&opts.DryRun, "dry-run", false, "log what would be submitted without calling the provider or writing")
	return fs
}

// ParseFlags parses worker arguments. The bool result is true when help was
// requested, in which case the caller should print Usage and exit zero.
func ParseFlags(args []string) (Options, bool, error) {
	opts := Options{MaxAttempts: config.DefaultMaxAttempts}
	fs := newFlagSet(&opts)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, true, nil
		}
		return Options{}, false, err
	}
	if fs.NArg() > 0 {
		return Options{}, false, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if err := opts.Validate(); err != nil {
		return Options{}, false, err
	}
	return opts, false, nil
}

// Usage writes the flag help text to w.
func Usage(w io.Writer) {
	var opts Options
	fs := newFlagSet(&opts)
	fs.SetOutput(w)
	fmt.Fprintln(w, "Usage: payout-worker [--limit N] [--dry-run]")
	fs.PrintDefaults()
}
