package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the wait budget runs out before the key
// becomes free.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker runs fn while holding the exclusive lock for key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}
