package booking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/idgen/simple"
	"github.com/avstrong/reservations/internal/logger"
	"github.com/avstrong/reservations/internal/storage/memory"
)

// lateStore misses the system actor on the first lookup, as an instance does when another
// one creates the actor between its lookup and its insert.
type lateStore struct {
	*memory.DB
	missed bool
}

func (s *lateStore) FindUserByWellKnownSystemIdentifier(ctx context.Context, identifier string) (*booking.User, error) {
	if !s.missed {
		s.missed = true

		return nil, booking.ErrRecordNotFound
	}

	return s.DB.FindUserByWellKnownSystemIdentifier(ctx, identifier)
}

func TestEnsureSystemActorLosesCreationRace(t *testing.T) {
	f := newFixture(t)
	store := &lateStore{DB: f.db}

	actor, err := booking.EnsureSystemActor(f.ctx, logger.Discard(), store, simple.New("other-"), "system")
	require.NoError(t, err)

	assert.True(t, store.missed)
	assert.Equal(t, f.system.ID, actor.ID)
}
