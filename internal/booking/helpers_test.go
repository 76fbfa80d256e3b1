package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/idgen/simple"
	"github.com/avstrong/reservations/internal/logger"
	"github.com/avstrong/reservations/internal/migration"
	"github.com/avstrong/reservations/internal/storage/memory"
)

const (
	singleRoom = "room-101" // capacity 1, 80/night
	doubleRoom = "room-102" // capacity 2, 100/night
	familyRoom = "room-201" // capacity 4, 140/night
	suiteRoom  = "room-301" // capacity 6, 260/night
	client     = migration.DemoClientID
)

var errLedgerDown = errors.New("ledger is down")

type fakeLedger struct {
	mu       sync.Mutex
	err      error
	earned   []string
	refunded []string
}

func (f *fakeLedger) EarnPoints(_ context.Context, r *booking.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.earned = append(f.earned, r.ID)

	return f.err
}

func (f *fakeLedger) RefundPoints(_ context.Context, r *booking.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refunded = append(f.refunded, r.ID)

	return f.err
}

type fixture struct {
	ctx         context.Context
	db          *memory.DB
	manager     *booking.Manager
	coordinator *booking.StatusCoordinator
	stats       *booking.StatisticsReporter
	ledger      *fakeLedger
	system      *booking.User

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	l := logger.Discard()
	tracer := noop.NewTracerProvider().Tracer("test")

	f := &fixture{
		ctx:    ctx,
		db:     memory.New(memory.Config{L: l, LockTimeout: 5 * time.Second}),
		ledger: &fakeLedger{},
		now:    booking.Date(2025, time.February, 1).Add(10 * time.Hour),
	}

	clock := booking.ClockFunc(func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()

		return f.now
	})

	require.NoError(t, migration.Up(ctx, l, f.db))

	idGen := simple.New("id-")

	system, err := booking.EnsureSystemActor(ctx, l, f.db, idGen, "system")
	require.NoError(t, err)

	f.system = system

	f.coordinator = booking.NewStatusCoordinator(booking.CoordinatorConf{
		L:           l,
		Storage:     f.db,
		IDGenerator: idGen,
		Clock:       clock,
		Tracer:      tracer,
		SystemActor: *system,
	})

	f.manager = booking.New(booking.Conf{
		L:               l,
		Storage:         f.db,
		IDGenerator:     idGen,
		Checker:         booking.NewAvailabilityChecker(f.db),
		Pricer:          booking.NewPricingCalculator(booking.DefaultPricingConf()),
		Coordinator:     f.coordinator,
		Clock:           clock,
		Tracer:          tracer,
		Ledger:          f.ledger,
		ConflictRetries: 3,
		ConflictBackoff: time.Millisecond,
	})

	f.stats = booking.NewStatisticsReporter(f.db)

	return f
}

func (f *fixture) setNow(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = now
}

func (f *fixture) book(roomID string, checkIn, checkOut time.Time, guests int) (*booking.Reservation, error) {
	return f.manager.CreateReservation(f.ctx, booking.CreateInput{
		RoomID:     roomID,
		ClientID:   client,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestCount: guests,
		Currency:   "USD",
	})
}

func (f *fixture) mustBook(t *testing.T, roomID string, checkIn, checkOut time.Time, guests int) *booking.Reservation {
	t.Helper()

	r, err := f.book(roomID, checkIn, checkOut, guests)
	require.NoError(t, err)

	return r
}

func (f *fixture) addUser(t *testing.T, id, name string) *booking.User {
	t.Helper()

	user := &booking.User{ID: id, Name: name}

	ctx, err := f.db.BeginTransaction(f.ctx, "")
	require.NoError(t, err)
	require.NoError(t, f.db.CreateUser(ctx, user))
	require.NoError(t, f.db.CommitTransaction(ctx))

	return user
}

func (f *fixture) room(t *testing.T, id string) *booking.Room {
	t.Helper()

	room, err := f.manager.GetRoom(f.ctx, id)
	require.NoError(t, err)

	return room
}

func requireRule(t *testing.T, err error, reason string) {
	t.Helper()

	ruleErr := booking.IsRuleError(err)
	require.NotNil(t, ruleErr, "expected a rule error, got %v", err)
	require.Equal(t, reason, ruleErr.Reason)
}
