package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultWait      = 5 * time.Second
	defaultRetryBase = 10 * time.Millisecond
	defaultRetryCap  = 250 * time.Millisecond
)

var errHeld = errors.New("lock: held by another owner")

// releaseScript deletes the key only while it still carries our token, so a
// holder whose TTL lapsed cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process that talks to the same server.
type Redis struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	wait      time.Duration
	retryBase time.Duration
	retryCap  time.Duration
	token     uid.StringID
}

// Option configures Redis.
type Option func(*Redis)

// WithPrefix namespaces lock keys.
func WithPrefix(prefix string) Option {
	return func(r *Redis) { r.prefix = prefix }
}

// WithLockTTL bounds how long a crashed holder can block the key.
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithWait bounds how long WithLock waits before returning ErrNotAcquired.
func WithWait(wait time.Duration) Option {
	return func(r *Redis) {
		if wait > 0 {
			r.wait = wait
		}
	}
}

// NewRedis returns a Redis locker.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	r := &Redis{
		client:    client,
		prefix:    "lock:",
		ttl:       defaultLockTTL,
		wait:      defaultWait,
		retryBase: defaultRetryBase,
		retryCap:  defaultRetryCap,
		token:     uid.NewRandomToken(16),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// WithLock runs fn while holding key.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) (err error) {
	fk := r.prefix + key
	owner := r.token.Generate()

	if err := r.acquire(ctx, fk, owner); err != nil {
		return err
	}
	defer func() {
		// release must run even when ctx is already done
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()

		if rErr := releaseScript.Run(relCtx, r.client, []string{fk}, owner).Err(); rErr != nil {
			slog.ErrorContext(ctx, "failed to release lock", "key", fk, "error", rErr)
			if err == nil {
				err = fmt.Errorf("lock: release %s: %w", fk, rErr)
			}
		}
	}()

	return fn(ctx)
}

func (r *Redis) acquire(ctx context.Context, fk, owner string) error {
	b := retry.NewExponential(r.retryBase)
	b = retry.WithCappedDuration(r.retryCap, b)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxDuration(r.wait, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		ok, err := r.client.SetNX(ctx, fk, owner, r.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errHeld)
		}
		return nil
	})
	if errors.Is(err, errHeld) {
		return fmt.Errorf("%w: %s", ErrNotAcquired, fk)
	}

	return err
}
