package driven

import "context"

// Locker serializes vault mutations across processes sharing one database.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done. The returned func
	// releases it.
	Lock(ctx context.Context) (unlock func() error, err error)
}
