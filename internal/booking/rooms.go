package booking

import (
	"context"
	"errors"
	"fmt"
)

// AddRoom registers a new room. New rooms start AVAILABLE.
func (m *Manager) AddRoom(ctx context.Context, input RoomInput) (_ *Room, err error) {
	ctx, end := m.startSpan(ctx, "AddRoom")
	defer func() { end(err) }()

	if err := input.validate(); err != nil {
		return nil, err
	}

	id, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, ErrNextID
	}

	room := &Room{
		ID:          id,
		Number:      input.Number,
		Type:        input.Type,
		NightlyRate: input.NightlyRate,
		Currency:    input.Currency,
		Capacity:    input.Capacity,
		Status:      RoomStatusAvailable,
		CreatedAt:   m.clock.Now().UTC(),
	}

	err = runInTransaction(ctx, m.l, m.storage, "add room", func(ctx context.Context) error {
		_, err := m.storage.FindRoomByNumber(ctx, room.Number)
		if err == nil {
			return newRuleError(ReasonDuplicateRoomNumber)
		}

		if !errors.Is(err, ErrRecordNotFound) {
			return fmt.Errorf("find room by number %s: %w", room.Number, err)
		}

		return m.storage.SaveRoom(ctx, room)
	})
	if IsConflictError(err) != nil {
		return nil, newRuleError(ReasonDuplicateRoomNumber)
	}

	if err != nil {
		return nil, err
	}

	m.l.LogInfo("Room %s (%s) added with id %s", room.Number, room.Type, room.ID)

	return room, nil
}

// RetireRoom is the soft delete of a room: a manual transition to OUT_OF_SERVICE.
// Rooms are never removed because reservations keep referencing them.
func (m *Manager) RetireRoom(ctx context.Context, roomID, reason string, actor *User) (*RoomStatusUpdate, error) {
	if reason == "" {
		reason = "room retired"
	}

	return m.coordinator.MarkOutOfService(ctx, roomID, reason, actor)
}

func (m *Manager) GetRoom(ctx context.Context, id string) (*Room, error) {
	room, err := m.storage.FindRoom(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "room", id)
	}

	return room, nil
}

func (m *Manager) ListRooms(ctx context.Context) ([]*Room, error) {
	rooms, err := m.storage.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	return rooms, nil
}
