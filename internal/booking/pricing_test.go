package booking_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/avstrong/reservations/internal/booking"
)

func TestCalculatePrice(t *testing.T) {
	calc := booking.NewPricingCalculator(booking.DefaultPricingConf())
	room := &booking.Room{NightlyRate: decimal.NewFromInt(100), Currency: "USD", Capacity: 6}

	checkIn := booking.Date(2025, time.March, 1)
	checkOut := booking.Date(2025, time.March, 3)

	tests := []struct {
		name   string
		guests int
		want   string
	}{
		{name: "single guest pays base occupancy", guests: 1, want: "220.00"},
		{name: "two guests no surcharge", guests: 2, want: "220.00"},
		{name: "four guests pay two extra per night", guests: 4, want: "330.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.CalculatePrice(room, checkIn, checkOut, tt.guests)

			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestCalculatePriceIsDeterministicAndRounded(t *testing.T) {
	calc := booking.NewPricingCalculator(booking.PricingConf{
		ExtraGuestFee: decimal.RequireFromString("12.345"),
		TaxRate:       decimal.RequireFromString("0.075"),
		BaseOccupancy: 2,
	})
	room := &booking.Room{NightlyRate: decimal.RequireFromString("99.99")}

	checkIn := booking.Date(2025, time.March, 1)
	checkOut := booking.Date(2025, time.March, 4)

	first := calc.CalculatePrice(room, checkIn, checkOut, 3)
	second := calc.CalculatePrice(room, checkIn, checkOut, 3)

	// (3*99.99 + 3*12.345) * 1.075 = 362.28 after rounding.
	assert.True(t, first.Equal(second))
	assert.Equal(t, "362.28", first.StringFixed(2))
}

func TestCalculatePriceRoundsHalfUp(t *testing.T) {
	calc := booking.NewPricingCalculator(booking.DefaultPricingConf())
	room := &booking.Room{NightlyRate: decimal.RequireFromString("10.05"), Capacity: 1}

	checkIn := booking.Date(2025, time.March, 1)

	// 10.05 * 1.1 = 11.055
	got := calc.CalculatePrice(room, checkIn, checkIn.AddDate(0, 0, 1), 1)

	assert.Equal(t, "11.06", got.StringFixed(2))
}

func TestManagerQuotesWithoutBooking(t *testing.T) {
	f := newFixture(t)

	room := f.room(t, familyRoom)

	quote := f.manager.CalculateTotalPrice(room, mar1, mar5, 4)

	// 4 * (140 + 2*25) * 1.1
	assert.Equal(t, "836.00", quote.StringFixed(2))

	r := f.mustBook(t, familyRoom, mar1, mar5, 4)
	assert.True(t, quote.Equal(r.TotalPrice))
}
