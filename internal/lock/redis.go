package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"auction-core/internal/biddingerrors"
	"auction-core/utils"
)

// RedisLocker is a Locker shared by every instance pointed at the same Redis.
type RedisLocker struct {
	rs      *redsync.Redsync
	options redisLockerOptions
}

type redisLockerOptions struct {
	keyPrefix  string
	expiry     time.Duration
	retryDelay time.Duration
}

type RedisLockerOption func(*redisLockerOptions)

// WithKeyPrefix sets the prefix of every lock key
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(o *redisLockerOptions) {
		o.keyPrefix = prefix
	}
}

// WithExpiry sets how long a lock survives a crashed holder
func WithExpiry(d time.Duration) RedisLockerOption {
	return func(o *redisLockerOptions) {
		o.expiry = d
	}
}

// WithRetryDelay sets the pause between acquisition attempts
func WithRetryDelay(d time.Duration) RedisLockerOption {
	return func(o *redisLockerOptions) {
		o.retryDelay = d
	}
}

// NewRedisLocker builds a redsync-backed locker on top of client
func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) *RedisLocker {
	options := redisLockerOptions{
		keyPrefix:  "",
		expiry:     8 * time.Second,
		retryDelay: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &RedisLocker{
		rs:      redsync.New(goredis.NewPool(client)),
		options: options,
	}
}

// Key returns the Redis key guarding a listing
func (l *RedisLocker) Key(listingID string) string {
	return fmt.Sprintf("%sauction:%s:lock", l.options.keyPrefix, listingID)
}

// Lock retries until the listing's mutex is taken or ctx is done.
// Redis communication errors fail immediately.
func (l *RedisLocker) Lock(ctx context.Context, listingID string) (func(), error) {
	mutex := l.rs.NewMutex(
		l.Key(listingID),
		redsync.WithExpiry(l.options.expiry),
		redsync.WithTries(1),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("lock listing %s: %w: %w", listingID, biddingerrors.ErrLockUnavailable, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock listing %s: %w: %w", listingID, biddingerrors.ErrLockUnavailable, ctx.Err())
		case <-timer.C:
			err := mutex.LockContext(ctx)
			if err == nil {
				return l.unlockFunc(listingID, mutex), nil
			}
			var commErr *redsync.RedisError
			if errors.As(err, &commErr) {
				return nil, fmt.Errorf("lock listing %s: %w: %w", listingID, biddingerrors.ErrLockUnavailable, err)
			}
			timer.Reset(l.options.retryDelay)
		}
	}
}

func (l *RedisLocker) unlockFunc(listingID string, mutex *redsync.Mutex) func() {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		ok, err := mutex.Unlock()
		if err != nil || !ok {
			fields := map[string]any{"listing_id": listingID, "key": l.Key(listingID)}
			if err != nil {
				fields["error"] = err.Error()
			}
			utils.Warn("failed to release listing lock", fields)
		}
	}
}
