package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another process holds the session lock.
var ErrLocked = errors.New("session store is locked by another process")

const lockRetryDelay = 100 * time.Millisecond

// Lock takes the exclusive mutation lock next to the database, waiting until
// ctx is done. The returned func releases it.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	lock := flock.New(s.path + ".lock")
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}
