package booking

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// StatisticsReporter aggregates reservation counts and revenue for dashboards.
type StatisticsReporter struct {
	storage StoreReader
}

func NewStatisticsReporter(storage StoreReader) *StatisticsReporter {
	return &StatisticsReporter{storage: storage}
}

// Report counts every reservation but sums revenue over CONFIRMED ones only.
func (s *StatisticsReporter) Report(ctx context.Context) (*Statistics, error) {
	reservations, err := s.storage.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	stats := &Statistics{
		TotalReservations: len(reservations),
		TotalRevenue:      decimal.Zero,
		AverageRevenue:    decimal.Zero,
		RevenueByCurrency: make(map[string]decimal.Decimal),
	}

	for _, r := range reservations {
		switch r.Status {
		case ReservationStatusCancelled:
			stats.CancelledReservations++
		case ReservationStatusConfirmed:
			stats.ConfirmedReservations++
			stats.TotalRevenue = stats.TotalRevenue.Add(r.TotalPrice)
			stats.RevenueByCurrency[r.Currency] = stats.RevenueByCurrency[r.Currency].Add(r.TotalPrice)
		}
	}

	if stats.ConfirmedReservations > 0 {
		stats.AverageRevenue = stats.TotalRevenue.
			Div(decimal.NewFromInt(int64(stats.ConfirmedReservations))).
			Round(2) //nolint:gomnd
	}

	return stats, nil
}
