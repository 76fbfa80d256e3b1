package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/avstrong/reservations/internal/booking"
	"github.com/avstrong/reservations/internal/logger"
)

type EventType string

const (
	EventEarn   EventType = "earn"
	EventRefund EventType = "refund"
)

type Event struct {
	Type          EventType       `json:"type"`
	ReservationID string          `json:"reservation_id"`
	ClientID      string          `json:"client_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// publisher is satisfied by *nats.Conn.
type publisher interface {
	Publish(subject string, data []byte) error
}

type Conf struct {
	L       *logger.Logger
	Conn    publisher
	Subject string
	// Trips after this many consecutive failures.
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Publisher emits loyalty ledger events. It implements booking.LoyaltyLedger.
type Publisher struct {
	l       *logger.Logger
	conn    publisher
	subject string
	cb      *gobreaker.CircuitBreaker
}

func New(conf Conf) *Publisher {
	subject := conf.Subject
	if subject == "" {
		subject = "loyalty.points"
	}

	maxFailures := conf.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3 //nolint:gomnd
	}

	openTimeout := conf.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 10 * time.Second //nolint:gomnd
	}

	p := &Publisher{
		l:       conf.L,
		conn:    conf.Conn,
		subject: subject,
	}

	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "loyaltyLedger",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			p.l.LogWarnf("Circuit breaker '%s' changed from '%s' to '%s'", name, from, to)
		},
	})

	return p
}

func (p *Publisher) EarnPoints(ctx context.Context, reservation *booking.Reservation) error {
	return p.publish(ctx, EventEarn, reservation)
}

func (p *Publisher) RefundPoints(ctx context.Context, reservation *booking.Reservation) error {
	return p.publish(ctx, EventRefund, reservation)
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, reservation *booking.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(Event{
		Type:          eventType,
		ReservationID: reservation.ID,
		ClientID:      reservation.ClientID,
		Amount:        reservation.TotalPrice,
		Currency:      reservation.Currency,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	subject := p.subject + "." + string(eventType)

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.conn.Publish(subject, payload)
	})
	if err != nil {
		return fmt.Errorf("publish %s event for reservation %s: %w", eventType, reservation.ID, err)
	}

	return nil
}
