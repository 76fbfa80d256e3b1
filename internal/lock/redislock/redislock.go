package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/logger"
)

var ErrLockTimeout = errors.New("room advisory lock wait timed out")

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Conf struct {
	L      *logger.Logger
	Client *redis.Client
	// TTL caps how long a crashed holder can keep a room locked.
	TTL time.Duration
	// Wait bounds the time spent acquiring; RetryInterval paces the attempts.
	Wait          time.Duration
	RetryInterval time.Duration
	Prefix        string
}

// Locker is a per-room advisory lock shared by every instance talking to the same Redis.
type Locker struct {
	l             *logger.Logger
	client        *redis.Client
	ttl           time.Duration
	wait          time.Duration
	retryInterval time.Duration
	prefix        string
}

func New(conf Conf) *Locker {
	prefix := conf.Prefix
	if prefix == "" {
		prefix = "reservations:room-lock:"
	}

	retryInterval := conf.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 25 * time.Millisecond //nolint:gomnd
	}

	return &Locker{
		l:             conf.L,
		client:        conf.Client,
		ttl:           conf.TTL,
		wait:          conf.Wait,
		retryInterval: retryInterval,
		prefix:        prefix,
	}
}

// Lock returns a booking.ConflictError when the lock cannot be taken in time.
func (lk *Locker) Lock(ctx context.Context, roomID string) (func(), error) {
	key := lk.prefix + roomID
	token := uuid.NewString()

	waitCtx := ctx

	if lk.wait > 0 {
		var cancel context.CancelFunc

		waitCtx, cancel = context.WithTimeout(ctx, lk.wait)
		defer cancel()
	}

	ticker := time.NewTicker(lk.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := lk.client.SetNX(waitCtx, key, token, lk.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("set lock key %s: %w", key, err)
		}

		if ok {
			return func() { lk.release(key, token) }, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, booking.NewConflictError(fmt.Errorf("room %s: %w", roomID, ErrLockTimeout))
		case <-ticker.C:
		}
	}
}

func (lk *Locker) release(key, token string) {
	// The caller's ctx may already be done; releasing must still happen.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, lk.client, []string{key}, token).Err(); err != nil {
		lk.l.LogErrorf("Could not release room lock %s: %v", key, err)
	}
}
