package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/reservations/internal/booking"
)

type roomRow struct {
	ID          string          `gorm:"primaryKey;size:64"`
	Number      string          `gorm:"size:32;not null;uniqueIndex"`
	Type        string          `gorm:"size:32;not null"`
	NightlyRate decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency    string          `gorm:"size:3;not null"`
	Capacity    int             `gorm:"not null"`
	Status      string          `gorm:"size:32;not null;index"`
	CreatedAt   time.Time
}

func (roomRow) TableName() string { return "rooms" }

type reservationRow struct {
	ID             string          `gorm:"primaryKey;size:64"`
	RoomID         string          `gorm:"size:64;not null;index:idx_reservations_room_stay,priority:1"`
	ClientID       string          `gorm:"size:64;not null;index"`
	CheckIn        time.Time       `gorm:"type:date;not null;index:idx_reservations_room_stay,priority:3"`
	CheckOut       time.Time       `gorm:"type:date;not null;index:idx_reservations_room_stay,priority:4"`
	GuestCount     int             `gorm:"not null"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency       string          `gorm:"size:3;not null"`
	Status         string          `gorm:"size:16;not null;index:idx_reservations_room_stay,priority:2"`
	IdempotencyKey *string         `gorm:"size:128;uniqueIndex"`
	CancelReason   string          `gorm:"type:text"`
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (reservationRow) TableName() string { return "reservations" }

// statusUpdateRow is append-only.
type statusUpdateRow struct {
	ID             string `gorm:"primaryKey;size:64"`
	RoomID         string `gorm:"size:64;not null;index"`
	PreviousStatus string `gorm:"size:32;not null"`
	NewStatus      string `gorm:"size:32;not null"`
	Reason         string `gorm:"type:text"`
	ActorID        string `gorm:"size:64;not null"`
	Automatic      bool   `gorm:"not null"`
	CreatedAt      time.Time
}

func (statusUpdateRow) TableName() string { return "room_status_updates" }

type userRow struct {
	ID               string  `gorm:"primaryKey;size:64"`
	Name             string  `gorm:"size:255;not null"`
	SystemIdentifier *string `gorm:"size:64;uniqueIndex"`
}

func (userRow) TableName() string { return "users" }

func fromRoom(r *booking.Room) *roomRow {
	return &roomRow{
		ID:          r.ID,
		Number:      r.Number,
		Type:        string(r.Type),
		NightlyRate: r.NightlyRate,
		Currency:    r.Currency,
		Capacity:    r.Capacity,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
	}
}

func (r *roomRow) toRoom() *booking.Room {
	return &booking.Room{
		ID:          r.ID,
		Number:      r.Number,
		Type:        booking.RoomType(r.Type),
		NightlyRate: r.NightlyRate,
		Currency:    r.Currency,
		Capacity:    r.Capacity,
		Status:      booking.RoomStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func fromReservation(r *booking.Reservation) *reservationRow {
	return &reservationRow{
		ID:             r.ID,
		RoomID:         r.RoomID,
		ClientID:       r.ClientID,
		CheckIn:        r.CheckIn,
		CheckOut:       r.CheckOut,
		GuestCount:     r.GuestCount,
		TotalPrice:     r.TotalPrice,
		Currency:       r.Currency,
		Status:         string(r.Status),
		IdempotencyKey: nullable(r.IdempotencyKey),
		CancelReason:   r.CancelReason,
		CancelledAt:    r.CancelledAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r *reservationRow) toReservation() *booking.Reservation {
	res := &booking.Reservation{
		ID:           r.ID,
		RoomID:       r.RoomID,
		ClientID:     r.ClientID,
		CheckIn:      r.CheckIn.UTC(),
		CheckOut:     r.CheckOut.UTC(),
		GuestCount:   r.GuestCount,
		TotalPrice:   r.TotalPrice,
		Currency:     r.Currency,
		Status:       booking.ReservationStatus(r.Status),
		CancelReason: r.CancelReason,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}

	if r.IdempotencyKey != nil {
		res.IdempotencyKey = *r.IdempotencyKey
	}

	if r.CancelledAt != nil {
		cancelledAt := r.CancelledAt.UTC()
		res.CancelledAt = &cancelledAt
	}

	return res
}

func fromStatusUpdate(u *booking.RoomStatusUpdate) *statusUpdateRow {
	return &statusUpdateRow{
		ID:             u.ID,
		RoomID:         u.RoomID,
		PreviousStatus: string(u.PreviousStatus),
		NewStatus:      string(u.NewStatus),
		Reason:         u.Reason,
		ActorID:        u.ActorID,
		Automatic:      u.Automatic,
		CreatedAt:      u.CreatedAt,
	}
}

func (u *statusUpdateRow) toStatusUpdate() *booking.RoomStatusUpdate {
	return &booking.RoomStatusUpdate{
		ID:             u.ID,
		RoomID:         u.RoomID,
		PreviousStatus: booking.RoomStatus(u.PreviousStatus),
		NewStatus:      booking.RoomStatus(u.NewStatus),
		Reason:         u.Reason,
		ActorID:        u.ActorID,
		Automatic:      u.Automatic,
		CreatedAt:      u.CreatedAt.UTC(),
	}
}

func fromUser(u *booking.User) *userRow {
	return &userRow{
		ID:               u.ID,
		Name:             u.Name,
		SystemIdentifier: nullable(u.SystemIdentifier),
	}
}

func (u *userRow) toUser() *booking.User {
	user := &booking.User{ID: u.ID, Name: u.Name}
	if u.SystemIdentifier != nil {
		user.SystemIdentifier = *u.SystemIdentifier
	}

	return user
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
