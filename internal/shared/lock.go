package shared

import (
	"fmt"

	"github.com/gofrs/flock"
)

// RunLock is an advisory file lock held for the duration of a sync so two runs never interleave
// load-modify-save cycles on the same datasets.
type RunLock struct {
	path string
	lock *flock.Flock
}

// LockPath returns the lock file used for the database at dbPath.
func LockPath(dbPath string) string {
	return dbPath + ".lock"
}

// AcquireRunLock takes the lock at path without blocking.
//
// Returns [ErrRunLocked] when another process holds it.
func AcquireRunLock(path string) (*RunLock, error) {
	l := &RunLock{path: path, lock: flock.New(path)}

	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: lock held at %s", ErrRunLocked, path)
	}

	return l, nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}

// Release drops the lock. Safe to call more than once.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
