package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/logger"
)

type storage interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	FindRoomByNumber(ctx context.Context, number string) (*booking.Room, error)
	FindUser(ctx context.Context, id string) (*booking.User, error)
	SaveRoom(ctx context.Context, room *booking.Room) error
	CreateUser(ctx context.Context, user *booking.User) error
}

const DemoClientID = "demo-client"

func demoRooms(now time.Time) []*booking.Room {
	room := func(id, number string, roomType booking.RoomType, rate int64, capacity int) *booking.Room {
		return &booking.Room{
			ID:          id,
			Number:      number,
			Type:        roomType,
			NightlyRate: decimal.NewFromInt(rate),
			Currency:    "USD",
			Capacity:    capacity,
			Status:      booking.RoomStatusAvailable,
			CreatedAt:   now,
		}
	}

	//nolint:gomnd
	return []*booking.Room{
		room("room-101", "101", booking.RoomTypeSingle, 80, 1),
		room("room-102", "102", booking.RoomTypeDouble, 100, 2),
		room("room-201", "201", booking.RoomTypeFamily, 140, 4),
		room("room-301", "301", booking.RoomTypeSuite, 260, 6),
	}
}

// Up seeds demo rooms and a demo client. Rows that already exist are left untouched.
func Up(ctx context.Context, l *logger.Logger, storage storage) (err error) {
	ctx, err = storage.BeginTransaction(ctx, "")
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback migration transaction after panic %v", p)
			}

			l.LogInfo("Migration transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback migration transaction after error %v", rbErr.Error())
			}

			l.LogInfo("Migration transaction has been roll backed after error")

			return
		}

		if err = storage.CommitTransaction(ctx); err != nil {
			l.LogErrorf("Could not commit migration transaction, err %v", err.Error())

			return
		}

		l.LogInfo("Migration transaction has been committed")
	}()

	for _, room := range demoRooms(time.Now().UTC()) {
		_, err = storage.FindRoomByNumber(ctx, room.Number)
		if err == nil {
			continue
		}

		if !errors.Is(err, booking.ErrRecordNotFound) {
			return fmt.Errorf("find room %s: %w", room.Number, err)
		}

		if err = storage.SaveRoom(ctx, room); err != nil {
			return fmt.Errorf("save room %s to storage: %w", room.Number, err)
		}
	}

	_, err = storage.FindUser(ctx, DemoClientID)
	if err == nil {
		return nil
	}

	if !errors.Is(err, booking.ErrRecordNotFound) {
		return fmt.Errorf("find demo client: %w", err)
	}

	if err = storage.CreateUser(ctx, &booking.User{ID: DemoClientID, Name: "Demo Guest"}); err != nil {
		return fmt.Errorf("save demo client to storage: %w", err)
	}

	return nil
}
