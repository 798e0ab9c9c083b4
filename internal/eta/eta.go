package eta

import (
	"math"

	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/models"
)

// DefaultSpeedKmh is the assumed city speed for a driver heading to pickup.
const DefaultSpeedKmh = 30.0

// Trip duration heuristics: 2.5 to 3.5 minutes per km (roughly 17 to 24 km/h
// door to door). Not routing-aware.
const (
	minMinutesPerKm = 2.5
	maxMinutesPerKm = 3.5
)

// TripDuration estimates the ride length as a range of whole minutes.
func TripDuration(distanceKm float64) models.DurationRange {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		distanceKm = 0
	}
	return models.DurationRange{
		MinMinutes: roundHalfUp(distanceKm * minMinutesPerKm),
		MaxMinutes: roundHalfUp(distanceKm * maxMinutesPerKm),
	}
}

// PickupMinutes is a naive distance / speed ETA, at least one minute.
func PickupMinutes(from, to models.Coord, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	km := geo.Haversine(from.Lat, from.Lng, to.Lat, to.Lng) / 1000
	m := int(math.Ceil(km / speedKmh * 60))
	if m < 1 {
		return 1
	}
	return m
}

func roundHalfUp(x float64) int { return int(math.Floor(x + 0.5)) }
