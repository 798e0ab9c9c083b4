package models

import (
	"bytes"
	"encoding/json"
	"time"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is what a caller sends for pickup or destination: a gazetteer
// name, a raw coordinate, or both (the name then labels the coordinate).
type Location struct {
	Name string   `json:"name,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

// UnmarshalJSON accepts either a bare string ("Ikeja") or an object.
func (l *Location) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*l = Location{Name: name}
		return nil
	}
	type plain Location
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = Location(p)
	return nil
}

// HasCoord reports whether both coordinate components were supplied.
func (l Location) HasCoord() bool { return l.Lat != nil && l.Lng != nil }

func (l Location) IsZero() bool { return l.Name == "" && l.Lat == nil && l.Lng == nil }

type VehicleClass struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	RatePerKm   int64    `json:"rate_per_km"`
	Capacity    int      `json:"capacity"`
	ETAMinutes  int      `json:"eta_minutes"`
	Features    []string `json:"features"`
	Popular     bool     `json:"popular,omitempty"`
}

type Quote struct {
	ClassID    string  `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Price      int64   `json:"price"`
	Currency   string  `json:"currency"`
	ETAMinutes int     `json:"eta_minutes"`
	DistanceKm float64 `json:"distance_km"`
}

type Driver struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Car     string    `json:"car"`
	License string    `json:"license"`
	Rating  float64   `json:"rating"` // 0..5
	Trips   int       `json:"trips"`
	Loc     Coord     `json:"loc"`
	Online  bool      `json:"online"`
	Updated time.Time `json:"updated"`
}

type DriverOffer struct {
	DriverID   string  `json:"driver_id"`
	Name       string  `json:"name"`
	Car        string  `json:"car"`
	License    string  `json:"license"`
	Rating     float64 `json:"rating"`
	Trips      int     `json:"trips"`
	DistanceKm float64 `json:"distance_km"`
	Price      int64   `json:"price"`
	ETAMinutes int     `json:"eta_minutes"`
}

type TripStatus string

const (
	TripUpcoming  TripStatus = "upcoming"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// TripDriver is the snapshot of the chosen driver kept on the trip record.
type TripDriver struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Car     string  `json:"car"`
	License string  `json:"license"`
	Rating  float64 `json:"rating"`
}

type DurationRange struct {
	MinMinutes int `json:"min_minutes"`
	MaxMinutes int `json:"max_minutes"`
}

type Trip struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	CreatedAt        time.Time     `json:"created_at"`
	Pickup           string        `json:"pickup"`
	Destination      string        `json:"destination"`
	PickupCoord      Coord         `json:"pickup_coord"`
	DestinationCoord Coord         `json:"destination_coord"`
	ClassID          string        `json:"class_id"`
	Driver           TripDriver    `json:"driver"`
	QuotedPrice      int64         `json:"quoted_price"`
	Price            int64         `json:"price"`
	BaseFare         int64         `json:"base_fare"`
	Currency         string        `json:"currency"`
	Status           TripStatus    `json:"status"`
	Rating           *int          `json:"rating,omitempty"`
	Duration         DurationRange `json:"duration"`
	DistanceKm       float64       `json:"distance_km"`
	IdempotencyKey   string        `json:"idempotency_key,omitempty"`
	PaymentRef       string        `json:"payment_ref,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TripEvent is published on every trip state change.
type TripEvent struct {
	Type string    `json:"type"`
	Trip Trip      `json:"trip"`
	At   time.Time `json:"at"`
}

const (
	EventTripCreated   = "trip.created"
	EventTripCompleted = "trip.completed"
	EventTripCancelled = "trip.cancelled"
)
