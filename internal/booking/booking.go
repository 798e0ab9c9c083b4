// Package booking runs the passenger flow: quote every class for a route,
// list driver offers, confirm a trip and move it through its lifecycle.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/ride-booking/internal/catalog"
	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/matcher"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/observability"
	"github.com/example/ride-booking/internal/payments"
	"github.com/example/ride-booking/internal/pricing"
	"github.com/example/ride-booking/internal/storage"
	"github.com/example/ride-booking/internal/trips"
)

var ErrBadRequest = errors.New("bad request")

const sideEffectTimeout = 5 * time.Second

type Publisher interface {
	Publish(ctx context.Context, ev models.TripEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, userID string, ev models.TripEvent) error
}

type Service struct {
	Places   *geo.Gazetteer
	Catalog  *catalog.Catalog
	Pricing  *pricing.Calculator
	Matcher  *matcher.Service
	Store    storage.TripStore
	Events   Publisher
	Notify   Notifier
	Payments payments.Payments
	Log      *slog.Logger
	Now      func() time.Time
}

type RouteRequest struct {
	Pickup      models.Location `json:"pickup"`
	Destination models.Location `json:"destination"`
}

type Route struct {
	Pickup      geo.Place `json:"pickup"`
	Destination geo.Place `json:"destination"`
	DistanceKm  float64   `json:"distance_km"`
}

type QuoteResult struct {
	Route
	Quotes []models.Quote `json:"quotes"`
}

type OfferRequest struct {
	RouteRequest
	ClassID string `json:"class_id"`
}

type OfferResult struct {
	Route
	Quote  models.Quote         `json:"quote"`
	Offers []models.DriverOffer `json:"offers"`
}

type ConfirmRequest struct {
	OfferRequest
	DriverID       string `json:"driver_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type ConfirmResult struct {
	Trip     models.Trip `json:"trip"`
	Inserted bool        `json:"inserted"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) Locations() ([]string, string) {
	return s.Places.Names(), s.Places.Default().Name
}

func (s *Service) Classes() []models.VehicleClass { return s.Catalog.List() }

func (s *Service) route(req RouteRequest) (Route, error) {
	pickup, err := s.Places.Resolve(req.Pickup)
	if err != nil {
		return Route{}, fmt.Errorf("pickup: %w", err)
	}
	dest, err := s.Places.Resolve(req.Destination)
	if err != nil {
		return Route{}, fmt.Errorf("destination: %w", err)
	}
	for _, p := range []geo.Place{pickup, dest} {
		if p.Fallback {
			observability.LocationFallback.Inc()
			s.logger().Warn("location fell back to default", "resolved", p.Name)
		}
	}
	return Route{Pickup: pickup, Destination: dest, DistanceKm: geo.DistanceKm(pickup.Coord, dest.Coord)}, nil
}

// Quote prices every catalog class for the route.
func (s *Service) Quote(_ context.Context, req RouteRequest) (QuoteResult, error) {
	r, err := s.route(req)
	if err != nil {
		return QuoteResult{}, err
	}
	classes := s.Catalog.List()
	out := QuoteResult{Route: r, Quotes: make([]models.Quote, 0, len(classes))}
	for _, vc := range classes {
		out.Quotes = append(out.Quotes, s.Pricing.Quote(vc, r.DistanceKm))
	}
	observability.QuotesTotal.Inc()
	return out, nil
}

func (s *Service) offers(req OfferRequest) (Route, models.VehicleClass, models.Quote, error) {
	r, err := s.route(req.RouteRequest)
	if err != nil {
		return Route{}, models.VehicleClass{}, models.Quote{}, err
	}
	vc, err := s.Catalog.Get(req.ClassID)
	if err != nil {
		return Route{}, models.VehicleClass{}, models.Quote{}, err
	}
	return r, vc, s.Pricing.Quote(vc, r.DistanceKm), nil
}

func (s *Service) Offers(ctx context.Context, req OfferRequest) (OfferResult, error) {
	r, _, q, err := s.offers(req)
	if err != nil {
		return OfferResult{}, err
	}
	offers, err := s.Matcher.Offers(ctx, r.Pickup.Coord, q)
	if err != nil {
		return OfferResult{}, fmt.Errorf("driver roster: %w", err)
	}
	observability.OffersTotal.Inc()
	if len(offers) == 0 {
		observability.OffersEmpty.Inc()
	}
	return OfferResult{Route: r, Quote: q, Offers: offers}, nil
}

// Confirm books the chosen driver. Prices are re-derived server side; a
// repeated submission returns the stored trip with Inserted false.
func (s *Service) Confirm(ctx context.Context, userID string, req ConfirmRequest) (ConfirmResult, error) {
	start := time.Now()
	defer func() { observability.ConfirmLatency.Observe(time.Since(start).Seconds()) }()

	if strings.TrimSpace(req.DriverID) == "" {
		return ConfirmResult{}, fmt.Errorf("%w: driver_id is required", ErrBadRequest)
	}
	r, vc, q, err := s.offers(req.OfferRequest)
	if err != nil {
		return ConfirmResult{}, err
	}
	offer, err := s.Matcher.FindOffer(ctx, r.Pickup.Coord, q, req.DriverID)
	if err != nil {
		return ConfirmResult{}, err
	}
	t, err := trips.Build(trips.BuildInput{
		UserID:         userID,
		Pickup:         r.Pickup,
		Destination:    r.Destination,
		DistanceKm:     r.DistanceKm,
		Class:          vc,
		Offer:          offer,
		QuotedPrice:    q.Price,
		BaseFare:       s.Pricing.BaseFare,
		Currency:       q.Currency,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Now:            s.now(),
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	stored, inserted, err := s.Store.Insert(ctx, t)
	if err != nil {
		observability.TripsConfirmed.WithLabelValues("error").Inc()
		return ConfirmResult{}, fmt.Errorf("store trip: %w", err)
	}
	if !inserted {
		observability.TripsConfirmed.WithLabelValues("duplicate").Inc()
		s.logger().Info("duplicate trip submission absorbed", "user_id", userID, "trip_id", stored.ID, "driver_id", offer.DriverID)
		return ConfirmResult{Trip: stored, Inserted: false}, nil
	}
	observability.TripsConfirmed.WithLabelValues("inserted").Inc()
	s.logger().Info("trip confirmed", "user_id", userID, "trip_id", stored.ID, "class", vc.ID, "driver_id", offer.DriverID, "price", stored.Price)

	if held, ok := s.hold(ctx, stored); ok {
		stored = held
	}
	s.emit(ctx, models.EventTripCreated, stored)
	return ConfirmResult{Trip: stored, Inserted: true}, nil
}

func (s *Service) hold(ctx context.Context, t models.Trip) (models.Trip, bool) {
	if s.Payments == nil {
		return t, false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	ref, err := s.Payments.Hold(ctx, t)
	if err != nil {
		s.sideEffectFailed("payment_hold", t, err)
		return t, false
	}
	if ref == "" {
		return t, false
	}
	updated, err := s.Store.Update(ctx, t.UserID, t.ID, func(x *models.Trip) error {
		x.PaymentRef = ref
		return nil
	})
	if err != nil {
		s.sideEffectFailed("payment_ref", t, err)
		return t, false
	}
	return updated, true
}

func (s *Service) Complete(ctx context.Context, userID, tripID string, rating int) (models.Trip, error) {
	now := s.now()
	t, err := s.Store.Update(ctx, userID, tripID, func(x *models.Trip) error {
		return trips.Complete(x, rating, now)
	})
	if err != nil {
		return models.Trip{}, err
	}
	observability.TripTransitions.WithLabelValues(string(t.Status)).Inc()
	if t.PaymentRef != "" && s.Payments != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
		if err := s.Payments.Capture(pctx, t.PaymentRef); err != nil {
			s.sideEffectFailed("payment_capture", t, err)
		}
		cancel()
	}
	s.emit(ctx, models.EventTripCompleted, t)
	return t, nil
}

func (s *Service) Cancel(ctx context.Context, userID, tripID string) (models.Trip, error) {
	now := s.now()
	t, err := s.Store.Update(ctx, userID, tripID, func(x *models.Trip) error {
		return trips.Cancel(x, now)
	})
	if err != nil {
		return models.Trip{}, err
	}
	observability.TripTransitions.WithLabelValues(string(t.Status)).Inc()
	if t.PaymentRef != "" && s.Payments != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
		if err := s.Payments.Release(pctx, t.PaymentRef); err != nil {
			s.sideEffectFailed("payment_release", t, err)
		}
		cancel()
	}
	s.emit(ctx, models.EventTripCancelled, t)
	return t, nil
}

// List returns the user's trips newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID string, status models.TripStatus) ([]models.Trip, error) {
	switch status {
	case "", models.TripUpcoming, models.TripCompleted, models.TripCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, status)
	}
	all, err := s.Store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return trips.FilterStatus(trips.Sanitize(all), status), nil
}

func (s *Service) Get(ctx context.Context, userID, tripID string) (models.Trip, error) {
	return s.Store.Get(ctx, userID, tripID)
}

func (s *Service) Receipt(ctx context.Context, userID, tripID string) (pricing.Breakdown, error) {
	t, err := s.Store.Get(ctx, userID, tripID)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return pricing.Receipt(t), nil
}

func (s *Service) emit(ctx context.Context, typ string, t models.Trip) {
	ev := models.TripEvent{Type: typ, Trip: t, At: s.now().UTC()}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if s.Events != nil {
		if err := s.Events.Publish(ctx, ev); err != nil {
			s.sideEffectFailed("publish", t, err)
		}
	}
	if s.Notify != nil {
		if err := s.Notify.Notify(ctx, t.UserID, ev); err != nil {
			// a user without a live session is normal
			s.logger().Debug("trip notify skipped", "user_id", t.UserID, "trip_id", t.ID, "error", err)
		}
	}
}

func (s *Service) sideEffectFailed(kind string, t models.Trip, err error) {
	observability.SideEffectFailures.WithLabelValues(kind).Inc()
	s.logger().Error("trip side effect failed", "kind", kind, "user_id", t.UserID, "trip_id", t.ID, "error", err)
}
