package filelock

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/juju/errors"
)

// ErrTimeout is returned when a lock could not be acquired within the
// configured timeout.
const ErrTimeout = errors.ConstError("lock acquisition timed out")

const (
	// DefaultTimeout bounds how long a caller waits for another process to
	// release the lock. Reading or writing a few hundred bytes never takes
	// this long, even on a loaded disk.
	DefaultTimeout = 5 * time.Second

	retryDelay = 50 * time.Millisecond
)

// Locker guards one data file through a sidecar lock file. The data file
// itself may be replaced by rename while the lock is held.
type Locker struct {
	path    string
	timeout time.Duration
}

// New returns a Locker for dataPath. The lock file is dataPath + ".lock".
func New(dataPath string, timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Locker{
		path:    dataPath + ".lock",
		timeout: timeout,
	}
}

// Path returns the lock file path.
func (l *Locker) Path() string {
	return l.path
}

// WithShared runs fn while holding a shared (read) lock.
func (l *Locker) WithShared(ctx context.Context, fn func() error) error {
	return l.with(ctx, false, fn)
}

// WithExclusive runs fn while holding the exclusive (write) lock. The lock
// spans the whole of fn, so a load-modify-persist sequence inside fn cannot
// interleave with another process.
func (l *Locker) WithExclusive(ctx context.Context, fn func() error) error {
	return l.with(ctx, true, fn)
}

func (l *Locker) with(ctx context.Context, exclusive bool, fn func() error) (err error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return errors.Annotatef(err, "creating lock directory for %s", l.path)
	}

	lock := flock.New(l.path)

	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var locked bool
	if exclusive {
		locked, err = lock.TryLockContext(lockCtx, retryDelay)
	} else {
		locked, err = lock.TryRLockContext(lockCtx, retryDelay)
	}
	if !locked {
		if ctx.Err() != nil {
			return errors.Trace(ctx.Err())
		}
		if err != nil && lockCtx.Err() == nil {
			return errors.Annotatef(err, "taking %s lock on %s", kind(exclusive), l.path)
		}
		return errors.Annotatef(ErrTimeout, "%s lock on %s after %s", kind(exclusive), l.path, l.timeout)
	}

	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil && err == nil {
			err = errors.Annotatef(unlockErr, "unlocking %s", l.path)
		}
	}()

	return fn()
}

// IsTimeout reports whether err was caused by a lock timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func kind(exclusive bool) string {
	if exclusive {
		return "exclusive"
	}
	return "shared"
}
