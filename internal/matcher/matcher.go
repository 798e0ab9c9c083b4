package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ride-booking/internal/eta"
	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/pricing"
)

const DefaultTopN = 4

var ErrUnknownDriver = errors.New("driver not offered for this pickup")

type Geo interface {
	Nearby(ctx context.Context, lat, lng float64, limit int) ([]models.Driver, error)
}

// Service turns the drivers nearest to a pickup into priced offers for a
// class quote. Candidates come back from Geo ordered by distance, which
// fixes each driver's index for the price variation.
type Service struct {
	Geo      Geo
	Pricing  *pricing.Calculator
	TopN     int
	SpeedKmh float64
}

// Offers fails only when the roster cannot be read; no nearby driver is an
// empty list.
func (s *Service) Offers(ctx context.Context, pickup models.Coord, quote models.Quote) ([]models.DriverOffer, error) {
	topN := s.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	calc := s.Pricing
	if calc == nil {
		calc = pricing.NewCalculator()
	}
	cands, err := s.Geo.Nearby(ctx, pickup.Lat, pickup.Lng, topN)
	if err != nil {
		return nil, fmt.Errorf("nearby drivers: %w", err)
	}
	offers := make([]models.DriverOffer, 0, len(cands))
	for _, d := range cands {
		if !d.Online {
			continue
		}
		offers = append(offers, models.DriverOffer{
			DriverID:   d.ID,
			Name:       d.Name,
			Car:        d.Car,
			License:    d.License,
			Rating:     d.Rating,
			Trips:      d.Trips,
			DistanceKm: geo.DistanceKm(d.Loc, pickup),
			Price:      calc.DriverPrice(quote.Price, len(offers)),
			ETAMinutes: eta.PickupMinutes(d.Loc, pickup, s.SpeedKmh),
		})
	}
	return offers, nil
}

// FindOffer re-derives the offers for pickup and returns the one made by
// driverID, so a confirmation can never carry a client-chosen price.
func (s *Service) FindOffer(ctx context.Context, pickup models.Coord, quote models.Quote, driverID string) (models.DriverOffer, error) {
	offers, err := s.Offers(ctx, pickup, quote)
	if err != nil {
		return models.DriverOffer{}, err
	}
	for _, o := range offers {
		if o.DriverID == driverID {
			return o, nil
		}
	}
	return models.DriverOffer{}, ErrUnknownDriver
}
