// Package ledgerexport copies ledger entries to object storage as JSON lines
// for audit.
package ledgerexport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/PayoutFox/app/repository"
)

const (
	DefaultPrefix = "ledger"
	contentType   = "application/x-ndjson"
	keyTimeFormat = "20060102T150405Z"
)

var ErrEmptyWindow = errors.New("export window is empty")

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

type Exporter struct {
	Ledger   repository.LedgerRepository
	Uploader Uploader
	Prefix   string
	NewID    func() string
}

func NewExporter(ledger repository.LedgerRepository, uploader Uploader, prefix string) *Exporter {
	return &Exporter{Ledger: ledger, Uploader: uploader, Prefix: prefix, NewID: uuid.NewString}
}

// Export uploads the entries created in [from, to). A window without entries
// uploads nothing and returns an empty key.
func (e *Exporter) Export(ctx context.Context, from, to time.Time) (string, int, error) {
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return "", 0, ErrEmptyWindow
	}

	entries, err := e.Ledger.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return "", 0, err
	}
	if len(entries) == 0 {
		return "", 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return "", 0, fmt.Errorf("encode ledger entry %d: %w", entries[i].ID, err)
		}
	}

	key := e.ObjectKey(from, to)
	if err := e.Uploader.Upload(ctx, key, buf.Bytes(), contentType); err != nil {
		return "", 0, err
	}
	return key, len(entries), nil
}

// ObjectKey returns <prefix>/YYYY/MM/DD/<from>-<to>-<id>.jsonl, dated by
// the window start.
func (e *Exporter) ObjectKey(from, to time.Time) string {
	prefix := strings.Trim(e.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	newID := e.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	from, to = from.UTC(), to.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s-%s-%s.jsonl",
		prefix, from.Year(), from.Month(), from.Day(),
		from.Format(keyTimeFormat), to.Format(keyTimeFormat), newID())
}
