package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/reservations/internal/logger"
)

// StatusCoordinator is the only writer of Room.Status. It does not judge whether a
// transition is legal; it sets the status and appends one audit record per call.
type StatusCoordinator struct {
	l           *logger.Logger
	storage     Store
	idGenerator idGenerator
	clock       Clock
	tracer      trace.Tracer
	systemActor User
}

type CoordinatorConf struct {
	L           *logger.Logger
	Storage     Store
	IDGenerator idGenerator
	Clock       Clock
	Tracer      trace.Tracer
	// SystemActor is attributed with every automatic transition.
	SystemActor User
}

func NewStatusCoordinator(conf CoordinatorConf) *StatusCoordinator {
	clock := conf.Clock
	if clock == nil {
		clock = RealClock{}
	}

	return &StatusCoordinator{
		l:           conf.L,
		storage:     conf.Storage,
		idGenerator: conf.IDGenerator,
		clock:       clock,
		tracer:      conf.Tracer,
		systemActor: conf.SystemActor,
	}
}

func (c *StatusCoordinator) SystemActor() User {
	return c.systemActor
}

// SetStatus runs a status change in its own transaction under the room lock. When automatic
// is true the actor argument is ignored and the system actor is recorded.
func (c *StatusCoordinator) SetStatus(
	ctx context.Context,
	roomID string,
	newStatus RoomStatus,
	reason string,
	actor *User,
	automatic bool,
) (_ *RoomStatusUpdate, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.StatusCoordinator.SetStatus")
	defer span.End()

	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if !newStatus.Valid() {
		return nil, newRuleError(ReasonInvalidRoomStatus)
	}

	if !automatic && actor == nil {
		return nil, errors.New("manual status change requires an acting user")
	}

	var update *RoomStatusUpdate

	err = runInTransaction(ctx, c.l, c.storage, "room status", func(ctx context.Context) error {
		if err := c.storage.LockRoom(ctx, roomID); err != nil {
			return lockError(err, roomID)
		}

		var err error

		update, err = c.setStatus(ctx, roomID, newStatus, reason, actor, automatic)

		return err
	})
	if err != nil {
		return nil, err
	}

	return update, nil
}

func (c *StatusCoordinator) MarkAvailable(ctx context.Context, roomID, reason string, actor *User) (*RoomStatusUpdate, error) {
	return c.SetStatus(ctx, roomID, RoomStatusAvailable, reason, actor, actor == nil)
}

func (c *StatusCoordinator) MarkOccupied(ctx context.Context, roomID, reason string, actor *User) (*RoomStatusUpdate, error) {
	return c.SetStatus(ctx, roomID, RoomStatusOccupied, reason, actor, actor == nil)
}

func (c *StatusCoordinator) MarkOutOfService(ctx context.Context, roomID, reason string, actor *User) (*RoomStatusUpdate, error) {
	return c.SetStatus(ctx, roomID, RoomStatusOutOfService, reason, actor, actor == nil)
}

// ResolveActor loads the human user for a manual transition.
func (c *StatusCoordinator) ResolveActor(ctx context.Context, userID string) (*User, error) {
	user, err := c.storage.FindUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user", userID)
	}

	return user, nil
}

// ListStatusUpdates returns the audit trail of the room, oldest first.
func (c *StatusCoordinator) ListStatusUpdates(ctx context.Context, roomID string) ([]*RoomStatusUpdate, error) {
	if _, err := c.storage.FindRoom(ctx, roomID); err != nil {
		return nil, notFoundOr(err, "room", roomID)
	}

	updates, err := c.storage.FindStatusUpdates(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("find status updates of room %s: %w", roomID, err)
	}

	return updates, nil
}

// setStatus expects ctx to carry a transaction that already holds the room lock.
func (c *StatusCoordinator) setStatus(
	ctx context.Context,
	roomID string,
	newStatus RoomStatus,
	reason string,
	actor *User,
	automatic bool,
) (*RoomStatusUpdate, error) {
	room, err := c.storage.FindRoom(ctx, roomID)
	if err != nil {
		return nil, notFoundOr(err, "room", roomID)
	}

	actorID := c.systemActor.ID
	if !automatic {
		actorID = actor.ID
	}

	id, err := c.idGenerator.GetID(ctx)
	if err != nil {
		return nil, ErrNextID
	}

	update := &RoomStatusUpdate{
		ID:             id,
		RoomID:         room.ID,
		PreviousStatus: room.Status,
		NewStatus:      newStatus,
		Reason:         strings.TrimSpace(reason),
		ActorID:        actorID,
		Automatic:      automatic,
		CreatedAt:      c.clock.Now().UTC(),
	}

	room.Status = newStatus

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("save room %s: %w", room.ID, err)
	}

	if err := c.storage.SaveStatusUpdate(ctx, update); err != nil {
		return nil, fmt.Errorf("save status update of room %s: %w", room.ID, err)
	}

	c.l.LogInfo(
		"Room %s status %s -> %s (automatic: %t, actor: %s): %s",
		room.Number, update.PreviousStatus, update.NewStatus, automatic, actorID, update.Reason,
	)

	return update, nil
}

// EnsureSystemActor finds the distinguished system user by its identifier, creating it once
// when absent. It runs at startup so no request ever races on the creation.
func EnsureSystemActor(
	ctx context.Context,
	l *logger.Logger,
	storage Store,
	idGenerator idGenerator,
	identifier string,
) (*User, error) {
	user, err := storage.FindUserByWellKnownSystemIdentifier(ctx, identifier)
	if err == nil {
		return user, nil
	}

	if !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("find system actor %q: %w", identifier, err)
	}

	id, err := idGenerator.GetID(ctx)
	if err != nil {
		return nil, ErrNextID
	}

	user = &User{
		ID:               id,
		Name:             "System",
		SystemIdentifier: identifier,
	}

	err = runInTransaction(ctx, l, storage, "system actor", func(ctx context.Context) error {
		return storage.CreateUser(ctx, user)
	})
	if IsConflictError(err) != nil {
		// Another instance created it first.
		existing, findErr := storage.FindUserByWellKnownSystemIdentifier(ctx, identifier)
		if findErr == nil {
			return existing, nil
		}
	}

	if err != nil {
		return nil, fmt.Errorf("create system actor %q: %w", identifier, err)
	}

	l.LogInfo("System actor %q has been created with id %s", identifier, user.ID)

	return user, nil
}

func lockError(err error, roomID string) error {
	if IsConflictError(err) != nil {
		return err
	}

	if errors.Is(err, ErrRecordNotFound) {
		return newNotFoundError("room", roomID)
	}

	return fmt.Errorf("lock room %s: %w", roomID, err)
}
