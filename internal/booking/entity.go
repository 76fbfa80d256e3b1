package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

type RoomType string

const (
	RoomTypeSingle RoomType = "SINGLE"
	RoomTypeDouble RoomType = "DOUBLE"
	RoomTypeSuite  RoomType = "SUITE"
	RoomTypeFamily RoomType = "FAMILY"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeSingle, RoomTypeDouble, RoomTypeSuite, RoomTypeFamily:
		return true
	}

	return false
}

type RoomStatus string

const (
	RoomStatusAvailable    RoomStatus = "AVAILABLE"
	RoomStatusOccupied     RoomStatus = "OCCUPIED"
	RoomStatusOutOfService RoomStatus = "OUT_OF_SERVICE"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusAvailable, RoomStatusOccupied, RoomStatusOutOfService:
		return true
	}

	return false
}

type ReservationStatus string

const (
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// Room.Status is a cached view of the room's reservations. Only StatusCoordinator writes it.
type Room struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	Type        RoomType        `json:"type"`
	NightlyRate decimal.Decimal `json:"nightly_rate"`
	Currency    string          `json:"currency"`
	Capacity    int             `json:"capacity"`
	Status      RoomStatus      `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Reservation occupies the nights [CheckIn, CheckOut).
type Reservation struct {
	ID             string            `json:"id"`
	RoomID         string            `json:"room_id"`
	ClientID       string            `json:"client_id"`
	CheckIn        time.Time         `json:"check_in"`
	CheckOut       time.Time         `json:"check_out"`
	GuestCount     int               `json:"guest_count"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	Currency       string            `json:"currency"`
	Status         ReservationStatus `json:"status"`
	IdempotencyKey string            `json:"-"`
	CancelReason   string            `json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (r *Reservation) Nights() int {
	return nightsBetween(r.CheckIn, r.CheckOut)
}

// Overlaps reports whether r occupies any night of [checkIn, checkOut).
func (r *Reservation) Overlaps(checkIn, checkOut time.Time) bool {
	return overlaps(r.CheckIn, r.CheckOut, checkIn, checkOut)
}

type RoomStatusUpdate struct {
	ID             string     `json:"id"`
	RoomID         string     `json:"room_id"`
	PreviousStatus RoomStatus `json:"previous_status"`
	NewStatus      RoomStatus `json:"new_status"`
	Reason         string     `json:"reason"`
	ActorID        string     `json:"actor_id"`
	Automatic      bool       `json:"automatic"`
	CreatedAt      time.Time  `json:"created_at"`
}

// User is an opaque reference to a client or staff member owned by the identity provider.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// SystemIdentifier is set only for the distinguished actor of automatic transitions.
	SystemIdentifier string `json:"system_identifier,omitempty"`
}

type CreateInput struct {
	RoomID     string    `json:"room_id"     validate:"required"`
	ClientID   string    `json:"client_id"   validate:"required"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	GuestCount int       `json:"guest_count" validate:"min=1,max=10"`
	Currency   string    `json:"currency"    validate:"len=3,alpha"`
}

type UpdateInput struct {
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	GuestCount int       `json:"guest_count" validate:"min=1,max=10"`
	Currency   string    `json:"currency"    validate:"len=3,alpha"`
}

type RoomInput struct {
	Number      string          `json:"number"   validate:"required"`
	Type        RoomType        `json:"type"`
	NightlyRate decimal.Decimal `json:"nightly_rate"`
	Currency    string          `json:"currency" validate:"len=3,alpha"`
	Capacity    int             `json:"capacity" validate:"min=1"`
}

type Statistics struct {
	TotalReservations     int                        `json:"total_reservations"`
	ConfirmedReservations int                        `json:"confirmed_reservations"`
	CancelledReservations int                        `json:"cancelled_reservations"`
	TotalRevenue          decimal.Decimal            `json:"total_revenue"`
	AverageRevenue        decimal.Decimal            `json:"average_revenue"`
	RevenueByCurrency     map[string]decimal.Decimal `json:"revenue_by_currency"`
}
