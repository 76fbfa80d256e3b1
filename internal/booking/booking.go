package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/reservations/internal/logger"
)

// Manager owns the reservation lifecycle: create, update, cancel and the always-rejected
// confirm. Every write runs in one store transaction under the room lock.
type Manager struct {
	l               *logger.Logger
	storage         Store
	idGenerator     idGenerator
	checker         *AvailabilityChecker
	pricer          *PricingCalculator
	coordinator     *StatusCoordinator
	clock           Clock
	tracer          trace.Tracer
	locker          RoomLocker
	ledger          LoyaltyLedger
	conflictRetries int
	conflictBackoff time.Duration
}

type Conf struct {
	L           *logger.Logger
	Storage     Store
	IDGenerator idGenerator
	Checker     *AvailabilityChecker
	Pricer      *PricingCalculator
	Coordinator *StatusCoordinator
	Clock       Clock
	Tracer      trace.Tracer
	// Locker and Ledger are optional.
	Locker          RoomLocker
	Ledger          LoyaltyLedger
	ConflictRetries int
	ConflictBackoff time.Duration
}

func New(conf Conf) *Manager {
	clock := conf.Clock
	if clock == nil {
		clock = RealClock{}
	}

	return &Manager{
		l:               conf.L,
		storage:         conf.Storage,
		idGenerator:     conf.IDGenerator,
		checker:         conf.Checker,
		pricer:          conf.Pricer,
		coordinator:     conf.Coordinator,
		clock:           clock,
		tracer:          conf.Tracer,
		locker:          conf.Locker,
		ledger:          conf.Ledger,
		conflictRetries: conf.ConflictRetries,
		conflictBackoff: conf.ConflictBackoff,
	}
}

func (m *Manager) startSpan(ctx context.Context, name string) (context.Context, func(err error)) {
	ctx, span := m.tracer.Start(ctx, "booking.Manager."+name)

	return ctx, func(err error) {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}
}

//nolint:funlen // linear flow
func (m *Manager) CreateReservation(ctx context.Context, input CreateInput) (_ *Reservation, err error) {
	ctx, end := m.startSpan(ctx, "CreateReservation")
	defer func() { end(err) }()

	if err := input.validate(m.clock.Now()); err != nil {
		return nil, err
	}

	room, err := m.storage.FindRoom(ctx, input.RoomID)
	if err != nil {
		return nil, notFoundOr(err, "room", input.RoomID)
	}

	if _, err := m.storage.FindUser(ctx, input.ClientID); err != nil {
		return nil, notFoundOr(err, "client", input.ClientID)
	}

	if input.GuestCount > room.Capacity {
		return nil, newRuleErrorf("guest count %d exceeds room capacity of %d", input.GuestCount, room.Capacity)
	}

	var (
		reservation *Reservation
		created     bool
	)

	err = m.retryOnConflict(ctx, "create reservation", func() error {
		var err error

		reservation, created, err = m.createOnce(ctx, &input)

		return err
	})

	if IsConflictError(err) != nil {
		m.l.LogWarnf("Giving up booking room %s after repeated conflicts: %v", input.RoomID, err)

		return nil, newRuleError(ReasonRoomNotAvailable)
	}

	if err != nil {
		return nil, err
	}

	if created {
		m.l.LogInfo(
			"Reservation %s created for room %s [%s, %s) total %s %s",
			reservation.ID, room.Number,
			reservation.CheckIn.Format(time.DateOnly), reservation.CheckOut.Format(time.DateOnly),
			reservation.TotalPrice.StringFixed(2), reservation.Currency,
		)

		m.notifyLedger(ctx, reservation, true)
	}

	return reservation, nil
}

func (m *Manager) createOnce(ctx context.Context, input *CreateInput) (*Reservation, bool, error) {
	idempotencyKey, hasKey := IdempotencyKeyFromContext(ctx)
	if hasKey {
		existing, err := m.storage.FindReservationByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			return existing, false, nil
		}

		if !errors.Is(err, ErrRecordNotFound) {
			return nil, false, fmt.Errorf("get reservation by idempotency key: %w", err)
		}
	}

	unlock, err := m.acquireRoomLock(ctx, input.RoomID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var (
		reservation *Reservation
		created     bool
	)

	err = runInTransaction(ctx, m.l, m.storage, "create reservation", func(ctx context.Context) error {
		if err := m.storage.LockRoom(ctx, input.RoomID); err != nil {
			return lockError(err, input.RoomID)
		}

		// A concurrent request with the same key may have won the lock first.
		if hasKey {
			existing, err := m.storage.FindReservationByIdempotencyKey(ctx, idempotencyKey)
			if err == nil {
				reservation = existing

				return nil
			}

			if !errors.Is(err, ErrRecordNotFound) {
				return fmt.Errorf("get reservation by idempotency key: %w", err)
			}
		}

		room, err := m.storage.FindRoom(ctx, input.RoomID)
		if err != nil {
			return notFoundOr(err, "room", input.RoomID)
		}

		available, err := m.checker.roomAvailable(ctx, room, input.CheckIn, input.CheckOut, "")
		if err != nil {
			return err
		}

		if !available {
			return newRuleError(ReasonRoomNotAvailable)
		}

		id, err := m.idGenerator.GetID(ctx)
		if err != nil {
			return ErrNextID
		}

		now := m.clock.Now().UTC()

		reservation = &Reservation{
			ID:             id,
			RoomID:         room.ID,
			ClientID:       input.ClientID,
			CheckIn:        input.CheckIn,
			CheckOut:       input.CheckOut,
			GuestCount:     input.GuestCount,
			TotalPrice:     m.pricer.CalculatePrice(room, input.CheckIn, input.CheckOut, input.GuestCount),
			Currency:       input.Currency,
			Status:         ReservationStatusConfirmed,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := m.storage.SaveReservation(ctx, reservation); err != nil {
			return fmt.Errorf("save reservation to storage: %w", err)
		}

		_, err = m.coordinator.setStatus(
			ctx, room.ID, RoomStatusOccupied, fmt.Sprintf("reservation %s created", reservation.ID), nil, true,
		)
		if err != nil {
			return err
		}

		created = true

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return reservation, created, nil
}

// UpdateReservation moves a future confirmed reservation to new dates, guests or currency.
// The room keeps its status because the same reservation still holds it.
func (m *Manager) UpdateReservation(ctx context.Context, id string, input UpdateInput) (_ *Reservation, err error) {
	ctx, end := m.startSpan(ctx, "UpdateReservation")
	defer func() { end(err) }()

	if err := input.validate(m.clock.Now()); err != nil {
		return nil, err
	}

	current, err := m.storage.FindReservation(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "reservation", id)
	}

	var reservation *Reservation

	err = m.retryOnConflict(ctx, "update reservation", func() error {
		unlock, err := m.acquireRoomLock(ctx, current.RoomID)
		if err != nil {
			return err
		}
		defer unlock()

		return runInTransaction(ctx, m.l, m.storage, "update reservation", func(ctx context.Context) error {
			var err error

			reservation, err = m.updateLocked(ctx, id, current.RoomID, &input)

			return err
		})
	})
	if err != nil {
		return nil, err
	}

	m.l.LogInfo(
		"Reservation %s updated to [%s, %s) total %s %s",
		reservation.ID,
		reservation.CheckIn.Format(time.DateOnly), reservation.CheckOut.Format(time.DateOnly),
		reservation.TotalPrice.StringFixed(2), reservation.Currency,
	)

	return reservation, nil
}

func (m *Manager) updateLocked(ctx context.Context, id, roomID string, input *UpdateInput) (*Reservation, error) {
	if err := m.storage.LockRoom(ctx, roomID); err != nil {
		return nil, lockError(err, roomID)
	}

	reservation, err := m.storage.FindReservation(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "reservation", id)
	}

	if reservation.Status != ReservationStatusConfirmed || m.checkInPassed(reservation) {
		return nil, newRuleError(ReasonNotUpdatable)
	}

	room, err := m.storage.FindRoom(ctx, roomID)
	if err != nil {
		return nil, notFoundOr(err, "room", roomID)
	}

	if input.GuestCount > room.Capacity {
		return nil, newRuleErrorf("guest count %d exceeds room capacity of %d", input.GuestCount, room.Capacity)
	}

	available, err := m.checker.roomAvailable(ctx, room, input.CheckIn, input.CheckOut, reservation.ID)
	if err != nil {
		return nil, err
	}

	if !available {
		return nil, newRuleError(ReasonRoomNotAvailable)
	}

	reservation.CheckIn = input.CheckIn
	reservation.CheckOut = input.CheckOut
	reservation.GuestCount = input.GuestCount
	reservation.Currency = input.Currency
	reservation.TotalPrice = m.pricer.CalculatePrice(room, input.CheckIn, input.CheckOut, input.GuestCount)
	reservation.UpdatedAt = m.clock.Now().UTC()

	if err := m.storage.SaveReservation(ctx, reservation); err != nil {
		return nil, fmt.Errorf("save reservation to storage: %w", err)
	}

	return reservation, nil
}

// CancelReservation is terminal. It frees the room with an automatic transition.
func (m *Manager) CancelReservation(ctx context.Context, id, reason string) (err error) {
	ctx, end := m.startSpan(ctx, "CancelReservation")
	defer func() { end(err) }()

	current, err := m.storage.FindReservation(ctx, id)
	if err != nil {
		return notFoundOr(err, "reservation", id)
	}

	var reservation *Reservation

	err = m.retryOnConflict(ctx, "cancel reservation", func() error {
		unlock, err := m.acquireRoomLock(ctx, current.RoomID)
		if err != nil {
			return err
		}
		defer unlock()

		return runInTransaction(ctx, m.l, m.storage, "cancel reservation", func(ctx context.Context) error {
			var err error

			reservation, err = m.cancelLocked(ctx, id, current.RoomID, strings.TrimSpace(reason))

			return err
		})
	})
	if err != nil {
		return err
	}

	m.l.LogInfo("Reservation %s cancelled: %s", reservation.ID, reservation.CancelReason)

	m.notifyLedger(ctx, reservation, false)

	return nil
}

func (m *Manager) cancelLocked(ctx context.Context, id, roomID, reason string) (*Reservation, error) {
	if err := m.storage.LockRoom(ctx, roomID); err != nil {
		return nil, lockError(err, roomID)
	}

	reservation, err := m.storage.FindReservation(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "reservation", id)
	}

	if reservation.Status == ReservationStatusCancelled {
		return nil, newRuleError(ReasonAlreadyCancelled)
	}

	if m.checkInPassed(reservation) {
		return nil, newRuleError(ReasonCheckInPassed)
	}

	now := m.clock.Now().UTC()

	reservation.Status = ReservationStatusCancelled
	reservation.CancelReason = reason
	reservation.CancelledAt = &now
	reservation.UpdatedAt = now

	if err := m.storage.SaveReservation(ctx, reservation); err != nil {
		return nil, fmt.Errorf("save reservation to storage: %w", err)
	}

	room, err := m.storage.FindRoom(ctx, roomID)
	if err != nil {
		return nil, notFoundOr(err, "room", roomID)
	}

	// A retired room stays out of service.
	if room.Status == RoomStatusOutOfService {
		return reservation, nil
	}

	statusReason := fmt.Sprintf("reservation %s cancelled", reservation.ID)
	if reason != "" {
		statusReason += ": " + reason
	}

	if _, err := m.coordinator.setStatus(ctx, roomID, RoomStatusAvailable, statusReason, nil, true); err != nil {
		return nil, err
	}

	return reservation, nil
}

// ConfirmReservation always fails: reservations are born CONFIRMED and there is no pending
// state to confirm from.
func (m *Manager) ConfirmReservation(ctx context.Context, id string) (err error) {
	ctx, end := m.startSpan(ctx, "ConfirmReservation")
	defer func() { end(err) }()

	reservation, err := m.storage.FindReservation(ctx, id)
	if err != nil {
		return notFoundOr(err, "reservation", id)
	}

	return newRuleErrorf("%s: reservation %s is %s", ReasonNotPending, reservation.ID, strings.ToLower(string(reservation.Status)))
}

func (m *Manager) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	reservation, err := m.storage.FindReservation(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "reservation", id)
	}

	return reservation, nil
}

func (m *Manager) IsRoomAvailable(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	return m.checker.IsAvailable(ctx, roomID, checkIn, checkOut)
}

func (m *Manager) GetAvailableRooms(ctx context.Context, checkIn, checkOut time.Time, minGuests int) ([]*Room, error) {
	return m.checker.AvailableRooms(ctx, checkIn, checkOut, minGuests)
}

func (m *Manager) CalculateTotalPrice(room *Room, checkIn, checkOut time.Time, guestCount int) decimal.Decimal {
	return m.pricer.CalculatePrice(room, checkIn, checkOut, guestCount)
}

func (m *Manager) checkInPassed(r *Reservation) bool {
	return truncateDay(r.CheckIn).Before(truncateDay(m.clock.Now()))
}

func (m *Manager) acquireRoomLock(ctx context.Context, roomID string) (func(), error) {
	if m.locker == nil {
		return func() {}, nil
	}

	unlock, err := m.locker.Lock(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("acquire advisory lock on room %s: %w", roomID, err)
	}

	return unlock, nil
}

func (m *Manager) retryOnConflict(ctx context.Context, name string, fn func() error) error {
	var err error

	for attempt := 0; attempt <= m.conflictRetries; attempt++ {
		if attempt > 0 {
			m.l.LogWarnf("Retrying %s after conflict, attempt %d: %v", name, attempt, err)

			select {
			case <-ctx.Done():
				return err
			case <-time.After(m.conflictBackoff * time.Duration(attempt)):
			}
		}

		err = fn()
		if IsConflictError(err) == nil {
			return err
		}
	}

	return err
}

// notifyLedger is best-effort: a ledger failure never unwinds the reservation.
func (m *Manager) notifyLedger(ctx context.Context, reservation *Reservation, earn bool) {
	if m.ledger == nil {
		return
	}

	var err error

	if earn {
		err = m.ledger.EarnPoints(ctx, reservation)
	} else {
		err = m.ledger.RefundPoints(ctx, reservation)
	}

	if err != nil {
		m.l.LogWarnf("Could not notify loyalty ledger about reservation %s: %v", reservation.ID, err)
	}
}
