// Package trips builds trip records, reconciles them into a user's trip
// collection and applies lifecycle transitions. Everything here is pure;
// storage backends call into it under their own per-user serialization.
package trips

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-booking/internal/eta"
	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/models"
)

// DefaultDuplicateWindow is how close two creation times must be for
// otherwise identical bookings to count as one.
const DefaultDuplicateWindow = 60 * time.Second

var (
	ErrInvalidTrip       = errors.New("invalid trip")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrInvalidTransition = errors.New("invalid trip status transition")
)

type BuildInput struct {
	UserID         string
	Pickup         geo.Place
	Destination    geo.Place
	DistanceKm     float64
	Class          models.VehicleClass
	Offer          models.DriverOffer
	QuotedPrice    int64
	BaseFare       int64
	Currency       string
	IdempotencyKey string
	Now            time.Time
}

// Build assembles an upcoming trip with a fresh UUID.
func Build(in BuildInput) (models.Trip, error) {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return models.Trip{}, fmt.Errorf("%w: missing user", ErrInvalidTrip)
	case in.Pickup.Name == "":
		return models.Trip{}, fmt.Errorf("%w: missing pickup", ErrInvalidTrip)
	case in.Destination.Name == "":
		return models.Trip{}, fmt.Errorf("%w: missing destination", ErrInvalidTrip)
	case in.Class.ID == "":
		return models.Trip{}, fmt.Errorf("%w: missing vehicle class", ErrInvalidTrip)
	case in.Offer.DriverID == "":
		return models.Trip{}, fmt.Errorf("%w: missing driver", ErrInvalidTrip)
	}
	if _, err := geo.Validate(in.Pickup.Coord); err != nil {
		return models.Trip{}, fmt.Errorf("%w: pickup: %v", ErrInvalidTrip, err)
	}
	if _, err := geo.Validate(in.Destination.Coord); err != nil {
		return models.Trip{}, fmt.Errorf("%w: destination: %v", ErrInvalidTrip, err)
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return models.Trip{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
		Pickup:           in.Pickup.Name,
		Destination:      in.Destination.Name,
		PickupCoord:      in.Pickup.Coord,
		DestinationCoord: in.Destination.Coord,
		ClassID:          in.Class.ID,
		Driver: models.TripDriver{
			ID:      in.Offer.DriverID,
			Name:    in.Offer.Name,
			Car:     in.Offer.Car,
			License: in.Offer.License,
			Rating:  in.Offer.Rating,
		},
		QuotedPrice:    in.QuotedPrice,
		Price:          in.Offer.Price,
		BaseFare:       in.BaseFare,
		Currency:       in.Currency,
		Status:         models.TripUpcoming,
		Duration:       eta.TripDuration(in.DistanceKm),
		DistanceKm:     in.DistanceKm,
		IdempotencyKey: in.IdempotencyKey,
	}, nil
}
