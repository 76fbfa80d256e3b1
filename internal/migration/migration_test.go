package migration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/reservations/internal/logger"
	"github.com/avstrong/reservations/internal/migration"
	"github.com/avstrong/reservations/internal/storage/memory"
)

func TestUpIsRepeatable(t *testing.T) {
	ctx := context.Background()
	l := logger.Discard()
	db := memory.New(memory.Config{L: l})

	require.NoError(t, migration.Up(ctx, l, db))
	require.NoError(t, migration.Up(ctx, l, db))

	rooms, err := db.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 4)
	assert.Equal(t, "101", rooms[0].Number)

	client, err := db.FindUser(ctx, migration.DemoClientID)
	require.NoError(t, err)
	assert.Empty(t, client.SystemIdentifier)
}
