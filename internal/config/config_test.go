package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/reservations/internal/config"
)

var keys = []string{
	"HTTP_HOST", "HTTP_PORT", "HTTP_READ_HEADER_TIMEOUT", "STORAGE_DRIVER", "POSTGRES_DSN",
	"LOCK_TIMEOUT", "REDIS_ADDR", "REDIS_LOCK_TTL", "NATS_URL", "LOYALTY_SUBJECT",
	"JAEGER_ENDPOINT", "LOG_LEVEL", "LOG_FILE", "SYSTEM_ACTOR_IDENTIFIER", "EXTRA_GUEST_FEE",
	"TAX_RATE", "BASE_OCCUPANCY", "CONFLICT_RETRIES", "CONFLICT_BACKOFF", "SEED_DEMO_DATA",
}

// clearEnv blanks every key so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.HTTPHost)
	assert.Equal(t, "8092", cfg.HTTPPort)
	assert.Equal(t, 20*time.Second, cfg.HTTPReadHeaderTimeout)
	assert.Equal(t, config.StorageMemory, cfg.StorageDriver)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, "system", cfg.SystemActorIdentifier)
	assert.Equal(t, "25", cfg.ExtraGuestFee.String())
	assert.Equal(t, "0.1", cfg.TaxRate.String())
	assert.Equal(t, 2, cfg.BaseOccupancy)
	assert.Equal(t, 3, cfg.ConflictRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.ConflictBackoff)
	assert.True(t, cfg.SeedDemoData)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)

	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/reservations")
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("CONFLICT_BACKOFF", "1s")
	t.Setenv("LOCK_TIMEOUT", "500ms")
	t.Setenv("SEED_DEMO_DATA", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, config.StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://localhost/reservations", cfg.PostgresDSN)
	assert.Equal(t, "0.2", cfg.TaxRate.String())
	assert.Equal(t, time.Second, cfg.ConflictBackoff)
	assert.Equal(t, 500*time.Millisecond, cfg.LockTimeout)
	assert.False(t, cfg.SeedDemoData)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad duration", env: map[string]string{"CONFLICT_BACKOFF": "soon"}},
		{name: "bad integer", env: map[string]string{"BASE_OCCUPANCY": "two"}},
		{name: "bad bool", env: map[string]string{"SEED_DEMO_DATA": "maybe"}},
		{name: "bad decimal", env: map[string]string{"TAX_RATE": "ten percent"}},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "mongo"}},
		{name: "postgres without dsn", env: map[string]string{"STORAGE_DRIVER": "postgres"}},
		{name: "negative tax", env: map[string]string{"TAX_RATE": "-0.1"}},
		{name: "zero base occupancy", env: map[string]string{"BASE_OCCUPANCY": "0"}},
		{name: "negative retries", env: map[string]string{"CONFLICT_RETRIES": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			require.ErrorIs(t, err, config.ErrInvalidValue)
		})
	}
}
