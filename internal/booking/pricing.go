package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

type PricingConf struct {
	ExtraGuestFee decimal.Decimal
	TaxRate       decimal.Decimal
	BaseOccupancy int
}

func DefaultPricingConf() PricingConf {
	return PricingConf{
		ExtraGuestFee: decimal.NewFromInt(25), //nolint:gomnd
		TaxRate:       decimal.NewFromFloat(0.10),
		BaseOccupancy: 2, //nolint:gomnd
	}
}

// PricingCalculator is pure: the same room, dates and guests always give the same total.
type PricingCalculator struct {
	conf PricingConf
}

func NewPricingCalculator(conf PricingConf) *PricingCalculator {
	return &PricingCalculator{conf: conf}
}

// CalculatePrice assumes checkOut is at least one night after checkIn.
func (p *PricingCalculator) CalculatePrice(room *Room, checkIn, checkOut time.Time, guestCount int) decimal.Decimal {
	nights := decimal.NewFromInt(int64(nightsBetween(checkIn, checkOut)))

	base := room.NightlyRate.Mul(nights)

	extraGuests := guestCount - p.conf.BaseOccupancy
	if extraGuests < 0 {
		extraGuests = 0
	}

	surcharge := decimal.NewFromInt(int64(extraGuests)).Mul(p.conf.ExtraGuestFee).Mul(nights)
	subtotal := base.Add(surcharge)
	tax := subtotal.Mul(p.conf.TaxRate)

	// Totals are never negative, so Round's half-away-from-zero is half-up here.
	return subtotal.Add(tax).Round(2) //nolint:gomnd
}
