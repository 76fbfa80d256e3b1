package redislock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/idgen/simple"
	"github.com/avstrong/reservations/internal/lock/redislock"
	"github.com/avstrong/reservations/internal/logger"
	"github.com/avstrong/reservations/internal/migration"
	"github.com/avstrong/reservations/internal/storage/memory"
)

func newLocker(t *testing.T, wait time.Duration) (*redislock.Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	//nolint:exhaustruct
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redislock.New(redislock.Conf{
		L:             logger.Discard(),
		Client:        client,
		TTL:           time.Minute,
		Wait:          wait,
		RetryInterval: 5 * time.Millisecond,
	}), mr
}

func TestLockIsExclusive(t *testing.T) {
	locker, mr := newLocker(t, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("reservations:room-lock:room-1"))

	_, err = locker.Lock(ctx, "room-1")
	require.NotNil(t, booking.IsConflictError(err))
	require.ErrorIs(t, err, redislock.ErrLockTimeout)

	other, err := locker.Lock(ctx, "room-2")
	require.NoError(t, err)
	other()

	unlock()
	assert.False(t, mr.Exists("reservations:room-lock:room-1"))

	again, err := locker.Lock(ctx, "room-1")
	require.NoError(t, err)
	again()
}

func TestLockWaitsForRelease(t *testing.T) {
	locker, _ := newLocker(t, time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "room-1")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	next, err := locker.Lock(ctx, "room-1")
	require.NoError(t, err)
	next()
}

func TestStaleReleaseKeepsNewOwner(t *testing.T) {
	locker, mr := newLocker(t, 50*time.Millisecond)
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "room-1")
	require.NoError(t, err)

	// The first holder outlives its TTL and someone else takes the room.
	mr.FastForward(2 * time.Minute)

	current, err := locker.Lock(ctx, "room-1")
	require.NoError(t, err)

	owner, err := mr.Get("reservations:room-lock:room-1")
	require.NoError(t, err)

	stale()

	still, err := mr.Get("reservations:room-lock:room-1")
	require.NoError(t, err)
	assert.Equal(t, owner, still)

	current()
	assert.False(t, mr.Exists("reservations:room-lock:room-1"))
}

func TestManagerWithAdvisoryLock(t *testing.T) {
	locker, _ := newLocker(t, 2*time.Second)

	ctx := context.Background()
	l := logger.Discard()
	db := memory.New(memory.Config{L: l})
	require.NoError(t, migration.Up(ctx, l, db))

	idGen := simple.New("id-")

	system, err := booking.EnsureSystemActor(ctx, l, db, idGen, "system")
	require.NoError(t, err)

	clock := booking.ClockFunc(func() time.Time { return booking.Date(2025, time.February, 1) })
	tracer := noop.NewTracerProvider().Tracer("test")

	manager := booking.New(booking.Conf{
		L:           l,
		Storage:     db,
		IDGenerator: idGen,
		Checker:     booking.NewAvailabilityChecker(db),
		Pricer:      booking.NewPricingCalculator(booking.DefaultPricingConf()),
		Coordinator: booking.NewStatusCoordinator(booking.CoordinatorConf{
			L:           l,
			Storage:     db,
			IDGenerator: idGen,
			Clock:       clock,
			Tracer:      tracer,
			SystemActor: *system,
		}),
		Clock:           clock,
		Tracer:          tracer,
		Locker:          locker,
		ConflictRetries: 2,
		ConflictBackoff: time.Millisecond,
	})

	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := manager.CreateReservation(ctx, booking.CreateInput{
				RoomID:     "room-102",
				ClientID:   migration.DemoClientID,
				CheckIn:    booking.Date(2025, time.March, 1),
				CheckOut:   booking.Date(2025, time.March, 3),
				GuestCount: 2,
				Currency:   "USD",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()

				return
			}

			assert.NotNil(t, booking.IsRuleError(err), "unexpected error: %v", err)
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)
}
