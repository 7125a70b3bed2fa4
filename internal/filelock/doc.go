// Package filelock provides scoped cross-process file locking and atomic
// file replacement for the small state files authguard keeps in its cache
// directory.
//
// Each data file is guarded by a sidecar "<file>.lock" so that the data file
// can be replaced with a rename while the lock is held:
//
//	locker := filelock.New(path, filelock.DefaultTimeout)
//	err := locker.WithExclusive(ctx, func() error {
//	    return filelock.WriteFileAtomic(path, data, 0o600)
//	})
//
// The lock is released on every exit path of the callback, including
// errors and panics.
package filelock
