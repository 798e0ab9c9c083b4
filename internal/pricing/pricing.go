package pricing

import (
	"math"

	"github.com/example/ride-booking/internal/models"
)

const (
	DefaultBaseFare       = 500
	DefaultMinDriverPrice = 1000
	DefaultCurrency       = "NGN"
)

// Calculator prices trips as base fare + per-km rate × distance, rounded to
// the nearest 100 currency units.
type Calculator struct {
	BaseFare       int64
	MinDriverPrice int64
	Currency       string
	// DriverVariation spreads offers for the same class by a small,
	// position-dependent amount. It is display flavor, not a pricing rule;
	// with it off every offer carries the canonical class quote.
	DriverVariation bool
}

func NewCalculator() *Calculator {
	return &Calculator{
		BaseFare:        DefaultBaseFare,
		MinDriverPrice:  DefaultMinDriverPrice,
		Currency:        DefaultCurrency,
		DriverVariation: true,
	}
}

// RoundTo100 rounds half-up to the nearest multiple of 100.
func RoundTo100(x float64) int64 {
	return int64(math.Floor(x/100+0.5)) * 100
}

// Price never returns a negative value; negative rates or distances count as 0.
func (c *Calculator) Price(ratePerKm int64, distanceKm float64) int64 {
	if ratePerKm < 0 {
		ratePerKm = 0
	}
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		distanceKm = 0
	}
	p := RoundTo100(float64(c.BaseFare) + float64(ratePerKm)*distanceKm)
	if p < 0 {
		return 0
	}
	return p
}

// Quote prices one catalog class for a distance.
func (c *Calculator) Quote(vc models.VehicleClass, distanceKm float64) models.Quote {
	return models.Quote{
		ClassID:    vc.ID,
		ClassName:  vc.Name,
		Price:      c.Price(vc.RatePerKm, distanceKm),
		Currency:   c.Currency,
		ETAMinutes: vc.ETAMinutes,
		DistanceKm: distanceKm,
	}
}

// DriverPrice applies (index mod 4 − 1.5) × 100 to the class quote, re-rounds
// and floors the result at MinDriverPrice.
func (c *Calculator) DriverPrice(base int64, index int) int64 {
	if !c.DriverVariation {
		return base
	}
	if index < 0 {
		index = -index
	}
	offset := (float64(index%4) - 1.5) * 100
	p := RoundTo100(float64(base) + offset)
	if p < c.MinDriverPrice {
		p = c.MinDriverPrice
	}
	return p
}

// Breakdown is the receipt view of a trip's price.
type Breakdown struct {
	BaseFare         int64  `json:"base_fare"`
	DistanceCharge   int64  `json:"distance_charge"`
	DriverAdjustment int64  `json:"driver_adjustment"`
	Total            int64  `json:"total"`
	Currency         string `json:"currency"`
}

// Receipt splits the final price into base fare, the distance part of the
// class quote and the per-driver adjustment, so the adjustment never shows
// up as distance.
func Receipt(t models.Trip) Breakdown {
	distance := t.QuotedPrice - t.BaseFare
	if distance < 0 {
		distance = 0
	}
	return Breakdown{
		BaseFare:         t.BaseFare,
		DistanceCharge:   distance,
		DriverAdjustment: t.Price - t.BaseFare - distance,
		Total:            t.Price,
		Currency:         t.Currency,
	}
}
