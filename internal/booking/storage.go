package booking

import (
	"context"
	"time"
)

type idGenerator interface {
	GetID(ctx context.Context) (string, error)
}

// StoreReader is the read side of the reservation store. Reads outside a transaction are
// advisory only.
type StoreReader interface {
	FindRoom(ctx context.Context, id string) (*Room, error)
	FindRoomByNumber(ctx context.Context, number string) (*Room, error)
	ListRooms(ctx context.Context) ([]*Room, error)
	FindReservation(ctx context.Context, id string) (*Reservation, error)
	FindReservationByIdempotencyKey(ctx context.Context, key string) (*Reservation, error)
	// FindReservationsOverlapping returns only CONFIRMED reservations of the room whose
	// [CheckIn, CheckOut) intersects [checkIn, checkOut).
	FindReservationsOverlapping(ctx context.Context, roomID string, checkIn, checkOut time.Time) ([]*Reservation, error)
	ListReservations(ctx context.Context) ([]*Reservation, error)
	FindStatusUpdates(ctx context.Context, roomID string) ([]*RoomStatusUpdate, error)
	FindUser(ctx context.Context, id string) (*User, error)
	FindUserByWellKnownSystemIdentifier(ctx context.Context, identifier string) (*User, error)
}

type StoreWriter interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	// LockRoom holds an exclusive lock on the room until the transaction in ctx ends.
	LockRoom(ctx context.Context, roomID string) error
	SaveRoom(ctx context.Context, room *Room) error
	SaveReservation(ctx context.Context, reservation *Reservation) error
	SaveStatusUpdate(ctx context.Context, update *RoomStatusUpdate) error
	CreateUser(ctx context.Context, user *User) error
}

type Store interface {
	StoreReader
	StoreWriter
}

// RoomLocker is an optional advisory lock shared by several service instances.
type RoomLocker interface {
	Lock(ctx context.Context, roomID string) (unlock func(), err error)
}

// LoyaltyLedger receives best-effort point events after a reservation commits.
type LoyaltyLedger interface {
	EarnPoints(ctx context.Context, reservation *Reservation) error
	RefundPoints(ctx context.Context, reservation *Reservation) error
}
