package loyalty_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/logger"
	"github.com/avstrong/reservations/internal/loyalty"
)

var errNoResponders = errors.New("no responders")

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu       sync.Mutex
	err      error
	calls    int
	messages []message
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++

	if c.err != nil {
		return c.err
	}

	c.messages = append(c.messages, message{subject: subject, data: data})

	return nil
}

func reservation() *booking.Reservation {
	return &booking.Reservation{
		ID:         "res-1",
		ClientID:   "client-1",
		TotalPrice: decimal.RequireFromString("440.00"),
		Currency:   "USD",
	}
}

func TestPublisherEmitsEvents(t *testing.T) {
	conn := &fakeConn{}
	p := loyalty.New(loyalty.Conf{L: logger.Discard(), Conn: conn})

	require.NoError(t, p.EarnPoints(context.Background(), reservation()))
	require.NoError(t, p.RefundPoints(context.Background(), reservation()))

	require.Len(t, conn.messages, 2)
	assert.Equal(t, "loyalty.points.earn", conn.messages[0].subject)
	assert.Equal(t, "loyalty.points.refund", conn.messages[1].subject)

	var event loyalty.Event
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &event))

	assert.Equal(t, loyalty.EventEarn, event.Type)
	assert.Equal(t, "res-1", event.ReservationID)
	assert.Equal(t, "client-1", event.ClientID)
	assert.True(t, event.Amount.Equal(decimal.NewFromInt(440)))
	assert.Equal(t, "USD", event.Currency)
}

func TestPublisherOpensCircuitAfterFailures(t *testing.T) {
	conn := &fakeConn{err: errNoResponders}
	p := loyalty.New(loyalty.Conf{
		L:           logger.Discard(),
		Conn:        conn,
		Subject:     "ledger",
		MaxFailures: 2,
		OpenTimeout: time.Hour,
	})

	ctx := context.Background()

	require.ErrorIs(t, p.EarnPoints(ctx, reservation()), errNoResponders)
	require.ErrorIs(t, p.EarnPoints(ctx, reservation()), errNoResponders)

	// The breaker is open now, so the connection is not touched.
	err := p.EarnPoints(ctx, reservation())
	require.Error(t, err)
	assert.NotErrorIs(t, err, errNoResponders)
	assert.Equal(t, 2, conn.calls)
}

func TestPublisherRespectsCancelledContext(t *testing.T) {
	conn := &fakeConn{}
	p := loyalty.New(loyalty.Conf{L: logger.Discard(), Conn: conn})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, p.EarnPoints(ctx, reservation()), context.Canceled)
	assert.Zero(t, conn.calls)
}
