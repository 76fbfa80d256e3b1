package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/logger"
)

type Config struct {
	L *logger.Logger
	// LockTimeout bounds the wait for a room lock. Zero waits until ctx is done.
	LockTimeout time.Duration
}

// transaction buffers writes until commit. Reads made with its ctx see its own writes.
type transaction struct {
	id            string
	rooms         map[string]*booking.Room
	reservations  map[string]*booking.Reservation
	statusUpdates []*booking.RoomStatusUpdate
	users         map[string]*booking.User
	lockedRooms   []string
}

type DB struct {
	mu            sync.Mutex
	l             *logger.Logger
	lockTimeout   time.Duration
	rooms         map[string]*booking.Room
	reservations  map[string]*booking.Reservation
	statusUpdates map[string][]*booking.RoomStatusUpdate
	users         map[string]*booking.User
	transactions  map[string]*transaction
	nextTrxID     int64
	// roomLocks holds one single-slot channel per room; a full channel means locked.
	roomLocks map[string]chan struct{}
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	return &DB{
		l:             conf.L,
		lockTimeout:   conf.LockTimeout,
		rooms:         make(map[string]*booking.Room),
		reservations:  make(map[string]*booking.Reservation),
		statusUpdates: make(map[string][]*booking.RoomStatusUpdate),
		users:         make(map[string]*booking.User),
		transactions:  make(map[string]*transaction),
		roomLocks:     make(map[string]chan struct{}),
	}
}

func (db *DB) BeginTransaction(ctx context.Context, _ string) (context.Context, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	trxID := fmt.Sprintf("trx-%d", db.nextTrxID)
	db.nextTrxID++

	db.transactions[trxID] = &transaction{
		id:           trxID,
		rooms:        make(map[string]*booking.Room),
		reservations: make(map[string]*booking.Reservation),
		users:        make(map[string]*booking.User),
	}

	return withTransactionID(ctx, trxID), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	defer db.finish(trx)

	if err := db.checkUnique(trx); err != nil {
		return booking.NewConflictError(err)
	}

	for id, room := range trx.rooms {
		db.rooms[id] = room
	}

	for id, reservation := range trx.reservations {
		db.reservations[id] = reservation
	}

	for _, update := range trx.statusUpdates {
		db.statusUpdates[update.RoomID] = append(db.statusUpdates[update.RoomID], update)
	}

	for id, user := range trx.users {
		db.users[id] = user
	}

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	db.finish(trx)

	return nil
}

// LockRoom blocks until the room lock is free, ctx is done or the lock timeout elapses.
// The last two are reported as conflicts so the caller can retry.
func (db *DB) LockRoom(ctx context.Context, roomID string) error {
	db.mu.Lock()

	trx, err := db.transaction(ctx)
	if err != nil {
		db.mu.Unlock()

		return err
	}

	if _, ok := db.room(trx, roomID); !ok {
		db.mu.Unlock()

		return booking.ErrRecordNotFound
	}

	for _, locked := range trx.lockedRooms {
		if locked == roomID {
			db.mu.Unlock()

			return nil
		}
	}

	lock, ok := db.roomLocks[roomID]
	if !ok {
		lock = make(chan struct{}, 1)
		db.roomLocks[roomID] = lock
	}

	db.mu.Unlock()

	var timeout <-chan time.Time

	if db.lockTimeout > 0 {
		timer := time.NewTimer(db.lockTimeout)
		defer timer.Stop()

		timeout = timer.C
	}

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return booking.NewConflictError(fmt.Errorf("lock room %s: %w", roomID, ctx.Err()))
	case <-timeout:
		return booking.NewConflictError(fmt.Errorf("lock room %s: %w", roomID, ErrRoomLockTimeout))
	}

	db.mu.Lock()
	trx.lockedRooms = append(trx.lockedRooms, roomID)
	db.mu.Unlock()

	return nil
}

func (db *DB) SaveRoom(ctx context.Context, room *booking.Room) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	trx.rooms[room.ID] = copyRoom(room)

	return nil
}

func (db *DB) SaveReservation(ctx context.Context, reservation *booking.Reservation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	trx.reservations[reservation.ID] = copyReservation(reservation)

	return nil
}

func (db *DB) SaveStatusUpdate(ctx context.Context, update *booking.RoomStatusUpdate) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	u := *update
	trx.statusUpdates = append(trx.statusUpdates, &u)

	return nil
}

func (db *DB) CreateUser(ctx context.Context, user *booking.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	u := *user
	trx.users[user.ID] = &u

	return nil
}

func (db *DB) FindRoom(ctx context.Context, id string) (*booking.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	room, ok := db.room(db.optionalTransaction(ctx), id)
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	return copyRoom(room), nil
}

func (db *DB) FindRoomByNumber(ctx context.Context, number string) (*booking.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, room := range db.mergedRooms(db.optionalTransaction(ctx)) {
		if room.Number == number {
			return copyRoom(room), nil
		}
	}

	return nil, booking.ErrRecordNotFound
}

func (db *DB) ListRooms(ctx context.Context) ([]*booking.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	merged := db.mergedRooms(db.optionalTransaction(ctx))

	result := make([]*booking.Room, 0, len(merged))
	for _, room := range merged {
		result = append(result, copyRoom(room))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })

	return result, nil
}

func (db *DB) FindReservation(ctx context.Context, id string) (*booking.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if trx := db.optionalTransaction(ctx); trx != nil {
		if reservation, ok := trx.reservations[id]; ok {
			return copyReservation(reservation), nil
		}
	}

	reservation, ok := db.reservations[id]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	return copyReservation(reservation), nil
}

func (db *DB) FindReservationByIdempotencyKey(ctx context.Context, key string) (*booking.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, reservation := range db.mergedReservations(db.optionalTransaction(ctx)) {
		if reservation.IdempotencyKey != "" && reservation.IdempotencyKey == key {
			return copyReservation(reservation), nil
		}
	}

	return nil, booking.ErrRecordNotFound
}

func (db *DB) FindReservationsOverlapping(
	ctx context.Context,
	roomID string,
	checkIn, checkOut time.Time,
) ([]*booking.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []*booking.Reservation

	for _, reservation := range db.mergedReservations(db.optionalTransaction(ctx)) {
		if reservation.RoomID != roomID || reservation.Status != booking.ReservationStatusConfirmed {
			continue
		}

		if reservation.Overlaps(checkIn, checkOut) {
			result = append(result, copyReservation(reservation))
		}
	}

	sortReservations(result)

	return result, nil
}

func (db *DB) ListReservations(ctx context.Context) ([]*booking.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	merged := db.mergedReservations(db.optionalTransaction(ctx))

	result := make([]*booking.Reservation, 0, len(merged))
	for _, reservation := range merged {
		result = append(result, copyReservation(reservation))
	}

	sortReservations(result)

	return result, nil
}

func (db *DB) FindStatusUpdates(ctx context.Context, roomID string) ([]*booking.RoomStatusUpdate, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	updates := db.statusUpdates[roomID]

	result := make([]*booking.RoomStatusUpdate, 0, len(updates))
	for _, update := range updates {
		u := *update
		result = append(result, &u)
	}

	if trx := db.optionalTransaction(ctx); trx != nil {
		for _, update := range trx.statusUpdates {
			if update.RoomID == roomID {
				u := *update
				result = append(result, &u)
			}
		}
	}

	return result, nil
}

func (db *DB) FindUser(ctx context.Context, id string) (*booking.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if trx := db.optionalTransaction(ctx); trx != nil {
		if user, ok := trx.users[id]; ok {
			u := *user

			return &u, nil
		}
	}

	user, ok := db.users[id]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	u := *user

	return &u, nil
}

func (db *DB) FindUserByWellKnownSystemIdentifier(_ context.Context, identifier string) (*booking.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, user := range db.users {
		if user.SystemIdentifier != "" && user.SystemIdentifier == identifier {
			u := *user

			return &u, nil
		}
	}

	return nil, booking.ErrRecordNotFound
}

// transaction must be called with db.mu held.
func (db *DB) transaction(ctx context.Context) (*transaction, error) {
	trxID, ok := transactionIDFromContext(ctx)
	if !ok {
		return nil, ErrTransactionIDNotFoundInCtx
	}

	trx, exists := db.transactions[trxID]
	if !exists {
		return nil, fmt.Errorf("transaction %s not found: %w", trxID, ErrTransactionNotFound)
	}

	return trx, nil
}

func (db *DB) optionalTransaction(ctx context.Context) *transaction {
	trx, err := db.transaction(ctx)
	if err != nil {
		return nil
	}

	return trx
}

// finish releases the room locks of trx and forgets it. Called with db.mu held.
func (db *DB) finish(trx *transaction) {
	for _, roomID := range trx.lockedRooms {
		<-db.roomLocks[roomID]
	}

	delete(db.transactions, trx.id)
}

func (db *DB) checkUnique(trx *transaction) error {
	for _, room := range trx.rooms {
		for _, other := range db.rooms {
			if other.ID != room.ID && other.Number == room.Number {
				return fmt.Errorf("room %s: %w", room.Number, ErrDuplicateRoomNumber)
			}
		}
	}

	for _, reservation := range trx.reservations {
		if reservation.IdempotencyKey == "" {
			continue
		}

		for _, other := range db.reservations {
			if other.ID != reservation.ID && other.IdempotencyKey == reservation.IdempotencyKey {
				return fmt.Errorf("reservation %s: %w", reservation.ID, ErrDuplicateIdempotencyKey)
			}
		}
	}

	for _, user := range trx.users {
		if user.SystemIdentifier == "" {
			continue
		}

		for _, other := range db.users {
			if other.ID != user.ID && other.SystemIdentifier == user.SystemIdentifier {
				return fmt.Errorf("user %s: %w", user.ID, ErrDuplicateSystemIdentifier)
			}
		}
	}

	return nil
}

func (db *DB) room(trx *transaction, id string) (*booking.Room, bool) {
	if trx != nil {
		if room, ok := trx.rooms[id]; ok {
			return room, true
		}
	}

	room, ok := db.rooms[id]

	return room, ok
}

func (db *DB) mergedRooms(trx *transaction) map[string]*booking.Room {
	merged := make(map[string]*booking.Room, len(db.rooms))
	for id, room := range db.rooms {
		merged[id] = room
	}

	if trx != nil {
		for id, room := range trx.rooms {
			merged[id] = room
		}
	}

	return merged
}

func (db *DB) mergedReservations(trx *transaction) map[string]*booking.Reservation {
	merged := make(map[string]*booking.Reservation, len(db.reservations))
	for id, reservation := range db.reservations {
		merged[id] = reservation
	}

	if trx != nil {
		for id, reservation := range trx.reservations {
			merged[id] = reservation
		}
	}

	return merged
}

func sortReservations(reservations []*booking.Reservation) {
	sort.Slice(reservations, func(i, j int) bool {
		if !reservations[i].CreatedAt.Equal(reservations[j].CreatedAt) {
			return reservations[i].CreatedAt.Before(reservations[j].CreatedAt)
		}

		return reservations[i].ID < reservations[j].ID
	})
}

func copyRoom(room *booking.Room) *booking.Room {
	r := *room

	return &r
}

func copyReservation(reservation *booking.Reservation) *booking.Reservation {
	r := *reservation

	if reservation.CancelledAt != nil {
		cancelledAt := *reservation.CancelledAt
		r.CancelledAt = &cancelledAt
	}

	return &r
}
