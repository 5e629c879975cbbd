// Package filelock implements the Locker port with an advisory file lock.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/ericfisherdev/artsengine/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Locker = (*Lock)(nil)

const retryDelay = 25 * time.Millisecond

// Lock serializes vault writes between the server and artsctl processes that
// share one database file.
type Lock struct {
	fl *flock.Flock
}

// New returns a Lock backed by the file at path. The file is created on
// first use.
func New(path string) *Lock {
	return &Lock{fl: flock.New(path)}
}

// ForDatabase returns a Lock stored next to the database at dbPath.
func ForDatabase(dbPath string) *Lock {
	return New(dbPath + ".lock")
}

// Lock acquires the exclusive lock, retrying until ctx is done.
func (l *Lock) Lock(ctx context.Context) (func() error, error) {
	ok, err := l.fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.fl.Path(), err)
	}
	if !ok {
		return nil, errors.New("lock not acquired: " + l.fl.Path())
	}
	return l.fl.Unlock, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}
