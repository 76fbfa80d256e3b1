package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

var ErrInvalidValue = errors.New("invalid config value")

type Config struct {
	HTTPHost              string
	HTTPPort              string
	HTTPReadHeaderTimeout time.Duration

	StorageDriver string
	PostgresDSN   string
	// LockTimeout bounds the room lock wait of every store and the Redis lock.
	LockTimeout time.Duration

	RedisAddr    string
	RedisLockTTL time.Duration

	NATSURL        string
	LoyaltySubject string

	JaegerEndpoint string

	LogLevel string
	LogFile  string

	SystemActorIdentifier string

	ExtraGuestFee decimal.Decimal
	TaxRate       decimal.Decimal
	BaseOccupancy int

	ConflictRetries int
	ConflictBackoff time.Duration

	SeedDemoData bool
}

// Load reads the environment, after merging an optional .env file from the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	r := reader{}

	//nolint:gomnd
	cfg := &Config{
		HTTPHost:              r.str("HTTP_HOST", "localhost"),
		HTTPPort:              r.str("HTTP_PORT", "8092"),
		HTTPReadHeaderTimeout: r.duration("HTTP_READ_HEADER_TIMEOUT", 20*time.Second),
		StorageDriver:         r.str("STORAGE_DRIVER", StorageMemory),
		PostgresDSN:           r.str("POSTGRES_DSN", ""),
		LockTimeout:           r.duration("LOCK_TIMEOUT", 2*time.Second),
		RedisAddr:             r.str("REDIS_ADDR", ""),
		RedisLockTTL:          r.duration("REDIS_LOCK_TTL", 10*time.Second),
		NATSURL:               r.str("NATS_URL", ""),
		LoyaltySubject:        r.str("LOYALTY_SUBJECT", "loyalty.points"),
		JaegerEndpoint:        r.str("JAEGER_ENDPOINT", ""),
		LogLevel:              r.str("LOG_LEVEL", "info"),
		LogFile:               r.str("LOG_FILE", ""),
		SystemActorIdentifier: r.str("SYSTEM_ACTOR_IDENTIFIER", "system"),
		ExtraGuestFee:         r.decimal("EXTRA_GUEST_FEE", decimal.NewFromInt(25)),
		TaxRate:               r.decimal("TAX_RATE", decimal.RequireFromString("0.10")),
		BaseOccupancy:         r.integer("BASE_OCCUPANCY", 2),
		ConflictRetries:       r.integer("CONFLICT_RETRIES", 3),
		ConflictBackoff:       r.duration("CONFLICT_BACKOFF", 50*time.Millisecond),
		SeedDemoData:          r.boolean("SEED_DEMO_DATA", true),
	}

	if r.err != nil {
		return nil, r.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres storage driver: %w", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER %q: %w", c.StorageDriver, ErrInvalidValue)
	}

	if c.TaxRate.IsNegative() {
		return fmt.Errorf("TAX_RATE must not be negative: %w", ErrInvalidValue)
	}

	if c.ExtraGuestFee.IsNegative() {
		return fmt.Errorf("EXTRA_GUEST_FEE must not be negative: %w", ErrInvalidValue)
	}

	if c.BaseOccupancy < 1 {
		return fmt.Errorf("BASE_OCCUPANCY must be positive: %w", ErrInvalidValue)
	}

	if c.ConflictRetries < 0 {
		return fmt.Errorf("CONFLICT_RETRIES must not be negative: %w", ErrInvalidValue)
	}

	return nil
}

// reader keeps the first parse error so Load can report it once.
type reader struct {
	err error
}

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return def
}

func (r *reader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s=%q: %w: %w", key, value, ErrInvalidValue, err)
	}
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)

		return def
	}

	return d
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)

		return def
	}

	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)

		return def
	}

	return b
}

func (r *reader) decimal(key string, def decimal.Decimal) decimal.Decimal {
	v := r.str(key, "")
	if v == "" {
		return def
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		r.fail(key, v, err)

		return def
	}

	return d
}
