package hostlock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.lock")
	first := NewFileLock(path, 10*time.Minute)
	second := NewFileLock(path, 10*time.Minute)

	release, err := first.Acquire(context.Background())
	require.NoError(t, err)

	_, err = second.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	release, err = second.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, release())
}

func TestFileLockReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.lock")
	require.NoError(t, os.WriteFile(path, []byte("4242 crashed\n"), 0o644))
	old := time.Now().Add(-11 * time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))

	release, err := NewFileLock(path, 10*time.Minute).Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "crashed")
}

func TestFileLockKeepsFreshLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.lock")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))

	l := NewFileLock(path, 10*time.Minute)
	l.now = func() time.Time { return time.Now().Add(9 * time.Minute) }

	_, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestFileLockCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "worker.lock")
	release, err := NewFileLock(path, time.Minute).Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, release())
	// Releasing twice is harmless.
	assert.NoError(t, release())
}

func TestFileLockHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileLock(filepath.Join(t.TempDir(), "worker.lock"), time.Minute).Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileLockReleaseKeepsReclaimedLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.lock")
	ctx := context.Background()

	releaseA, err := NewFileLock(path, 10*time.Minute).Acquire(ctx)
	require.NoError(t, err)

	old := time.Now().Add(-11 * time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))

	releaseB, err := NewFileLock(path, 10*time.Minute).Acquire(ctx)
	require.NoError(t, err)

	// The overrun run finishes after its lock was reclaimed.
	require.NoError(t, releaseA())
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	_, err = NewFileLock(path, 10*time.Minute).Acquire(ctx)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, releaseB())
	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
