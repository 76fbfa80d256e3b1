package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/logger"
)

var ErrTransactionNotFoundInCtx = errors.New("no transaction found in ctx")

// SQLSTATE codes that mean "try again": serialization_failure, deadlock_detected,
// lock_not_available and unique_violation.
var conflictStates = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
	"23505": true,
}

type Config struct {
	L      *logger.Logger
	DSN    string
	Tracer trace.Tracer
	// LockTimeout is applied with SET LOCAL lock_timeout to every transaction.
	LockTimeout time.Duration
}

type DB struct {
	db          *gorm.DB
	l           *logger.Logger
	tracer      trace.Tracer
	lockTimeout time.Duration
}

type contextKey string

const transactionKey contextKey = "postgresTransaction"

func New(conf Config) (*DB, error) {
	gdb, err := gorm.Open(pgdriver.Open(conf.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	return &DB{
		db:          gdb,
		l:           conf.L,
		tracer:      conf.Tracer,
		lockTimeout: conf.LockTimeout,
	}, nil
}

func (db *DB) Migrate(ctx context.Context) error {
	if err := db.db.WithContext(ctx).AutoMigrate(
		&roomRow{},
		&reservationRow{},
		&statusUpdateRow{},
		&userRow{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	db.l.LogInfo("Postgres schema is up to date")

	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}

	return sqlDB.Close()
}

func (db *DB) BeginTransaction(ctx context.Context, level string) (context.Context, error) {
	tx := db.db.WithContext(ctx).Begin(&sql.TxOptions{Isolation: isolationLevel(level)})
	if tx.Error != nil {
		return ctx, fmt.Errorf("begin transaction: %w", mapError(tx.Error))
	}

	if db.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", db.lockTimeout.Milliseconds())
		if err := tx.Exec(stmt).Error; err != nil {
			tx.Rollback()

			return ctx, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	return context.WithValue(ctx, transactionKey, tx), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	tx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	return mapError(tx.Commit().Error)
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	tx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	return mapError(tx.Rollback().Error)
}

// LockRoom takes a row lock on the room (SELECT ... FOR UPDATE) held until commit or rollback.
func (db *DB) LockRoom(ctx context.Context, roomID string) error {
	ctx, span := db.tracer.Start(ctx, "postgres.DB.LockRoom")
	defer span.End()

	tx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	var row roomRow

	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", roomID).
		Take(&row).Error
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return mapError(err)
	}

	return nil
}

func (db *DB) SaveRoom(ctx context.Context, room *booking.Room) error {
	tx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	return mapError(tx.WithContext(ctx).Save(fromRoom(room)).Error)
}

func (db *DB) SaveReservation(ctx context.Context, reservation *booking.Reservation) error {
	tx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	return mapError(tx.WithContext(ctx).Save(fromReservation(reservation)).Error)
}

func (db *DB) SaveStatusUpdate(ctx context.Context, update *booking.RoomStatusUpdate) error {
	tx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	return mapError(tx.WithContext(ctx).Create(fromStatusUpdate(update)).Error)
}

func (db *DB) CreateUser(ctx context.Context, user *booking.User) error {
	tx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	return mapError(tx.WithContext(ctx).Create(fromUser(user)).Error)
}

func (db *DB) FindRoom(ctx context.Context, id string) (*booking.Room, error) {
	var row roomRow
	if err := db.conn(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}

	return row.toRoom(), nil
}

func (db *DB) FindRoomByNumber(ctx context.Context, number string) (*booking.Room, error) {
	var row roomRow
	if err := db.conn(ctx).Where("number = ?", number).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}

	return row.toRoom(), nil
}

func (db *DB) ListRooms(ctx context.Context) ([]*booking.Room, error) {
	var rows []roomRow
	if err := db.conn(ctx).Order("number").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}

	rooms := make([]*booking.Room, 0, len(rows))
	for i := range rows {
		rooms = append(rooms, rows[i].toRoom())
	}

	return rooms, nil
}

func (db *DB) FindReservation(ctx context.Context, id string) (*booking.Reservation, error) {
	var row reservationRow
	if err := db.conn(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}

	return row.toReservation(), nil
}

func (db *DB) FindReservationByIdempotencyKey(ctx context.Context, key string) (*booking.Reservation, error) {
	var row reservationRow
	if err := db.conn(ctx).Where("idempotency_key = ?", key).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}

	return row.toReservation(), nil
}

// FindReservationsOverlapping uses the half-open rule check_in < $checkOut AND $checkIn < check_out.
func (db *DB) FindReservationsOverlapping(
	ctx context.Context,
	roomID string,
	checkIn, checkOut time.Time,
) ([]*booking.Reservation, error) {
	ctx, span := db.tracer.Start(ctx, "postgres.DB.FindReservationsOverlapping")
	defer span.End()

	var rows []reservationRow

	err := db.conn(ctx).
		Where("room_id = ? AND status = ?", roomID, string(booking.ReservationStatusConfirmed)).
		Where("check_in < ? AND check_out > ?", checkOut, checkIn).
		Order("check_in").
		Find(&rows).Error
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return nil, mapError(err)
	}

	return toReservations(rows), nil
}

func (db *DB) ListReservations(ctx context.Context) ([]*booking.Reservation, error) {
	var rows []reservationRow
	if err := db.conn(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}

	return toReservations(rows), nil
}

func (db *DB) FindStatusUpdates(ctx context.Context, roomID string) ([]*booking.RoomStatusUpdate, error) {
	var rows []statusUpdateRow
	if err := db.conn(ctx).Where("room_id = ?", roomID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}

	updates := make([]*booking.RoomStatusUpdate, 0, len(rows))
	for i := range rows {
		updates = append(updates, rows[i].toStatusUpdate())
	}

	return updates, nil
}

func (db *DB) FindUser(ctx context.Context, id string) (*booking.User, error) {
	var row userRow
	if err := db.conn(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}

	return row.toUser(), nil
}

func (db *DB) FindUserByWellKnownSystemIdentifier(ctx context.Context, identifier string) (*booking.User, error) {
	var row userRow
	if err := db.conn(ctx).Where("system_identifier = ?", identifier).Take(&row).Error; err != nil {
		return nil, mapError(err)
	}

	return row.toUser(), nil
}

func (db *DB) transaction(ctx context.Context) (*gorm.DB, error) {
	tx, ok := ctx.Value(transactionKey).(*gorm.DB)
	if !ok || tx == nil {
		return nil, ErrTransactionNotFoundInCtx
	}

	return tx, nil
}

// conn reads through the transaction in ctx when there is one.
func (db *DB) conn(ctx context.Context) *gorm.DB {
	if tx, err := db.transaction(ctx); err == nil {
		return tx.WithContext(ctx)
	}

	return db.db.WithContext(ctx)
}

func toReservations(rows []reservationRow) []*booking.Reservation {
	reservations := make([]*booking.Reservation, 0, len(rows))
	for i := range rows {
		reservations = append(reservations, rows[i].toReservation())
	}

	return reservations
}

func isolationLevel(level string) sql.IsolationLevel {
	switch level {
	case "READ COMMITTED":
		return sql.LevelReadCommitted
	case "REPEATABLE READ":
		return sql.LevelRepeatableRead
	case "SERIALIZABLE":
		return sql.LevelSerializable
	}

	return sql.LevelDefault
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.ErrRecordNotFound
	}

	var stateErr interface{ SQLState() string }
	if errors.As(err, &stateErr) && conflictStates[stateErr.SQLState()] {
		return booking.NewConflictError(err)
	}

	return err
}
