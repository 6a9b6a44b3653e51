package hostlock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileLock is a single-host lock backed by an exclusively created file. A
// lock file older than StaleAfter is considered abandoned and reclaimed.
type FileLock struct {
	Path       string
	StaleAfter time.Duration

	now func() time.Time
}

// NewFileLock returns a FileLock for path.
func NewFileLock(path string, staleAfter time.Duration) *FileLock {
	return &FileLock{Path: path, StaleAfter: staleAfter, now: time.Now}
}

func (l *FileLock) Acquire(ctx context.Context) (func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	release, err := l.create()
	if !errors.Is(err, fs.ErrExist) {
		return release, err
	}

	stale, err := l.isStale()
	if err != nil {
		return nil, err
	}
	if !stale {
		return nil, ErrLockHeld
	}
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale lock: %w", err)
	}

	// A concurrent run may win the race for the reclaimed file.
	release, err = l.create()
	if errors.Is(err, fs.ErrExist) {
		return nil, ErrLockHeld
	}
	return release, err
}

func (l *FileLock) create() (func() error, error) {
	f, err := os.OpenFile(l.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	content := fmt.Sprintf("%d %s %s\n", os.Getpid(), l.clock().UTC().Format(time.RFC3339), uuid.NewString())
	_, werr := f.WriteString(content)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(l.Path)
		return nil, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
	}
	return func() error { return l.release(content) }, nil
}

// release removes the lock file only while it still holds content. A run
// whose lock was reclaimed as stale leaves the new owner's file in place.
func (l *FileLock) release(content string) error {
	current, err := os.ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock file: %w", err)
	}
	if string(current) != content {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *FileLock) isStale() (bool, error) {
	info, err := os.Stat(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat lock file: %w", err)
	}
	if l.StaleAfter <= 0 {
		return false, nil
	}
	return l.clock().Sub(info.ModTime()) > l.StaleAfter, nil
}

func (l *FileLock) clock() time.Time {
	if l.now == nil {
		return time.Now()
	}
	return l.now()
}
