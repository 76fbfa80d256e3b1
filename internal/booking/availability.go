package booking

import (
	"context"
	"fmt"
	"time"
)

// AvailabilityChecker answers whether a room can host a stay. It never writes. Its answer is
// only binding when asked inside the transaction that holds the room lock.
type AvailabilityChecker struct {
	storage StoreReader
}

func NewAvailabilityChecker(storage StoreReader) *AvailabilityChecker {
	return &AvailabilityChecker{storage: storage}
}

func (c *AvailabilityChecker) IsAvailable(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	checkIn, checkOut = truncateDay(checkIn), truncateDay(checkOut)
	if !checkIn.Before(checkOut) {
		return false, newRuleError(ReasonCheckOutBeforeCheckIn)
	}

	room, err := c.storage.FindRoom(ctx, roomID)
	if err != nil {
		return false, notFoundOr(err, "room", roomID)
	}

	return c.roomAvailable(ctx, room, checkIn, checkOut, "")
}

// roomAvailable ignores the reservation excludeID so an update can move within its own stay.
func (c *AvailabilityChecker) roomAvailable(
	ctx context.Context,
	room *Room,
	checkIn, checkOut time.Time,
	excludeID string,
) (bool, error) {
	if room.Status == RoomStatusOutOfService {
		return false, nil
	}

	reservations, err := c.storage.FindReservationsOverlapping(ctx, room.ID, checkIn, checkOut)
	if err != nil {
		return false, fmt.Errorf("find reservations overlapping room %s: %w", room.ID, err)
	}

	for _, r := range reservations {
		if r.ID == excludeID || r.Status != ReservationStatusConfirmed {
			continue
		}

		if r.Overlaps(checkIn, checkOut) {
			return false, nil
		}
	}

	return true, nil
}

// AvailableRooms lists rooms that fit minGuests and are free for the whole stay.
func (c *AvailabilityChecker) AvailableRooms(
	ctx context.Context,
	checkIn, checkOut time.Time,
	minGuests int,
) ([]*Room, error) {
	checkIn, checkOut = truncateDay(checkIn), truncateDay(checkOut)
	if !checkIn.Before(checkOut) {
		return nil, newRuleError(ReasonCheckOutBeforeCheckIn)
	}

	rooms, err := c.storage.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	result := make([]*Room, 0, len(rooms))

	for _, room := range rooms {
		if room.Capacity < minGuests {
			continue
		}

		ok, err := c.roomAvailable(ctx, room, checkIn, checkOut, "")
		if err != nil {
			return nil, err
		}

		if ok {
			result = append(result, room)
		}
	}

	return result, nil
}
