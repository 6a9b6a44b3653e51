// Package hostlock keeps overlapping worker runs from doing the same work.
package hostlock

import (
	"context"
	"errors"
)

// ErrLockHeld means another run owns the lock. Callers treat it as a
// successful no-op.
var ErrLockHeld = errors.New("lock is held by another run")

// Locker acquires an exclusive run lock. The returned release func must be
// called once the run is finished.
type Locker interface {
	Acquire(ctx context.Context) (release func() error, err error)
}
