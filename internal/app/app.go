package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/config"
	"github.com/avstrong/reservations/internal/idgen/random"
	"github.com/avstrong/reservations/internal/lock/redislock"
	"github.com/avstrong/reservations/internal/logger"
	"github.com/avstrong/reservations/internal/loyalty"
	"github.com/avstrong/reservations/internal/migration"
	"github.com/avstrong/reservations/internal/storage/memory"
	"github.com/avstrong/reservations/internal/storage/postgres"
	"github.com/avstrong/reservations/internal/tracing"
	"github.com/avstrong/reservations/internal/transport/web"
)

func openStorage(ctx context.Context, cfg *config.Config, l *logger.Logger) (booking.Store, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		return memory.New(memory.Config{L: l, LockTimeout: cfg.LockTimeout}), func() {}, nil
	}

	db, err := postgres.New(postgres.Config{
		L:           l,
		DSN:         cfg.PostgresDSN,
		Tracer:      otel.Tracer("postgres"),
		LockTimeout: cfg.LockTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}

	if err = db.Migrate(ctx); err != nil {
		_ = db.Close()

		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			l.LogErrorf("Failed to close postgres: %v", err.Error())
		}
	}, nil
}

func Run(cfg *config.Config, l *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	tp, err := tracing.NewProvider(cfg.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:gomnd
		defer cancel()

		if err := tp.Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to flush traces: %v", err.Error())
		}
	}()

	tracer := otel.Tracer(tracing.ServiceName)

	storage, closeStorage, err := openStorage(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer closeStorage()

	l.LogInfo("Storage '%s' is ready", cfg.StorageDriver)

	if cfg.SeedDemoData {
		if err = migration.Up(ctx, l, storage); err != nil {
			return fmt.Errorf("up demo migration: %w", err)
		}

		l.LogInfo("Demo migration has been applied")
	}

	idGen := random.New()

	systemActor, err := booking.EnsureSystemActor(ctx, l, storage, idGen, cfg.SystemActorIdentifier)
	if err != nil {
		return fmt.Errorf("ensure system actor: %w", err)
	}

	coordinator := booking.NewStatusCoordinator(booking.CoordinatorConf{
		L:           l,
		Storage:     storage,
		IDGenerator: idGen,
		Tracer:      tracer,
		SystemActor: *systemActor,
	})

	bookConf := booking.Conf{
		L:           l,
		Storage:     storage,
		IDGenerator: idGen,
		Checker:     booking.NewAvailabilityChecker(storage),
		Pricer: booking.NewPricingCalculator(booking.PricingConf{
			ExtraGuestFee: cfg.ExtraGuestFee,
			TaxRate:       cfg.TaxRate,
			BaseOccupancy: cfg.BaseOccupancy,
		}),
		Coordinator:     coordinator,
		Tracer:          tracer,
		ConflictRetries: cfg.ConflictRetries,
		ConflictBackoff: cfg.ConflictBackoff,
	}

	if cfg.RedisAddr != "" {
		//nolint:exhaustruct
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		if err = client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}

		bookConf.Locker = redislock.New(redislock.Conf{
			L:      l,
			Client: client,
			TTL:    cfg.RedisLockTTL,
			Wait:   cfg.LockTimeout,
		})

		l.LogInfo("Room advisory locks are backed by redis at %v", cfg.RedisAddr)
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(tracing.ServiceName))
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer nc.Close()

		bookConf.Ledger = loyalty.New(loyalty.Conf{L: l, Conn: nc, Subject: cfg.LoyaltySubject})

		l.LogInfo("Loyalty events are published to %v", cfg.NATSURL)
	}

	bookManager := booking.New(bookConf)
	stats := booking.NewStatisticsReporter(storage)

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      log.Default(),
		Tracer:            tracer,
		Host:              cfg.HTTPHost,
		Port:              cfg.HTTPPort,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		LivenessEndpoint:  "/liveness",
	}

	srv, err := web.New(ctx, webConf, bookManager, coordinator, stats)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:gomnd
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}
