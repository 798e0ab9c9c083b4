package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ride-booking/internal/catalog"
	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/matcher"
	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/pricing"
	"github.com/example/ride-booking/internal/storage"
	"github.com/example/ride-booking/internal/trips"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []models.TripEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, ev models.TripEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

type fakePayments struct {
	holdErr  error
	held     []string
	captured []string
	released []string
}

func (f *fakePayments) Hold(_ context.Context, t models.Trip) (string, error) {
	if f.holdErr != nil {
		return "", f.holdErr
	}
	f.held = append(f.held, t.ID)
	return "pi_" + t.ID, nil
}

func (f *fakePayments) Capture(_ context.Context, ref string) error {
	f.captured = append(f.captured, ref)
	return nil
}

func (f *fakePayments) Release(_ context.Context, ref string) error {
	f.released = append(f.released, ref)
	return nil
}

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *fakePublisher, *fakePayments) {
	t.Helper()
	places, err := geo.NewLagosGazetteer("Ikeja", false)
	if err != nil {
		t.Fatal(err)
	}
	idx := geo.NewIndex()
	if err := geo.Seed(context.Background(), idx, geo.DemoRoster()); err != nil {
		t.Fatal(err)
	}
	calc := pricing.NewCalculator()
	pub := &fakePublisher{}
	pay := &fakePayments{}
	return &Service{
		Places:   places,
		Catalog:  catalog.Default(),
		Pricing:  calc,
		Matcher:  &matcher.Service{Geo: idx, Pricing: calc},
		Store:    storage.NewMemoryStore(0),
		Events:   pub,
		Payments: pay,
		Now:      func() time.Time { return fixedNow },
	}, pub, pay
}

func named(pickup, dest string) RouteRequest {
	return RouteRequest{Pickup: models.Location{Name: pickup}, Destination: models.Location{Name: dest}}
}

func confirmReq(driverID string) ConfirmRequest {
	return ConfirmRequest{
		OfferRequest: OfferRequest{RouteRequest: named("Ikeja", "Victoria Island"), ClassID: "economy"},
		DriverID:     driverID,
	}
}

func TestQuoteIkejaToVictoriaIsland(t *testing.T) {
	s, _, _ := newService(t)
	res, err := s.Quote(context.Background(), named("Ikeja", "Victoria Island"))
	if err != nil {
		t.Fatal(err)
	}
	if res.DistanceKm != 21.3 {
		t.Fatalf("distance: got %.1f", res.DistanceKm)
	}
	want := map[string]int64{"economy": 4800, "comfort": 6900, "premium": 10100, "xl": 8000}
	if len(res.Quotes) != len(want) {
		t.Fatalf("expected %d quotes, got %d", len(want), len(res.Quotes))
	}
	for _, q := range res.Quotes {
		if q.Price != want[q.ClassID] {
			t.Errorf("%s: got %d want %d", q.ClassID, q.Price, want[q.ClassID])
		}
		if q.Currency != "NGN" {
			t.Errorf("%s: currency %q", q.ClassID, q.Currency)
		}
	}
}

func TestQuoteZeroDistance(t *testing.T) {
	s, _, _ := newService(t)
	res, err := s.Quote(context.Background(), named("Yaba", "Yaba"))
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range res.Quotes {
		if q.Price != 500 {
			t.Fatalf("%s: got %d want 500", q.ClassID, q.Price)
		}
	}
}

func TestQuoteUnknownNameFallsBack(t *testing.T) {
	s, _, _ := newService(t)
	res, err := s.Quote(context.Background(), named("Atlantis", "Victoria Island"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Pickup.Fallback || res.Pickup.Name != "Ikeja" {
		t.Fatalf("expected Ikeja fallback, got %+v", res.Pickup)
	}
	if res.DistanceKm != 21.3 {
		t.Fatalf("fallback should price as Ikeja, got %.1f km", res.DistanceKm)
	}
}

func TestQuoteMissingLocation(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Quote(context.Background(), RouteRequest{Destination: models.Location{Name: "Yaba"}})
	if !errors.Is(err, geo.ErrMissingLocation) {
		t.Fatalf("expected ErrMissingLocation, got %v", err)
	}
}

func TestOffers(t *testing.T) {
	s, _, _ := newService(t)
	res, err := s.Offers(context.Background(), OfferRequest{RouteRequest: named("Ikeja", "Victoria Island"), ClassID: "economy"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Quote.Price != 4800 || len(res.Offers) != 4 {
		t.Fatalf("quote %d offers %d", res.Quote.Price, len(res.Offers))
	}
	if res.Offers[0].DriverID != "drv-1" || res.Offers[0].Price != 4700 {
		t.Fatalf("nearest driver should lead at 4700, got %+v", res.Offers[0])
	}
	if _, err := s.Offers(context.Background(), OfferRequest{RouteRequest: named("Ikeja", "Yaba"), ClassID: "helicopter"}); !errors.Is(err, catalog.ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}

func TestOffersFromEveryArea(t *testing.T) {
	s, _, _ := newService(t)
	for _, name := range s.Places.Names() {
		res, err := s.Offers(context.Background(), OfferRequest{RouteRequest: named(name, "Ikeja"), ClassID: "economy"})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(res.Offers) == 0 {
			t.Errorf("%s: no offers", name)
		}
	}
}

type downGeo struct{}

func (downGeo) Nearby(context.Context, float64, float64, int) ([]models.Driver, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestRosterOutageIsNotAnEmptyList(t *testing.T) {
	s, _, _ := newService(t)
	s.Matcher = &matcher.Service{Geo: downGeo{}, Pricing: s.Pricing}
	if _, err := s.Offers(context.Background(), OfferRequest{RouteRequest: named("Ikeja", "Yaba"), ClassID: "economy"}); err == nil {
		t.Fatal("expected roster error")
	}
	_, err := s.Confirm(context.Background(), "u1", confirmReq("drv-1"))
	if err == nil || errors.Is(err, matcher.ErrUnknownDriver) {
		t.Fatalf("expected roster error, got %v", err)
	}
}

func TestConfirmAndDuplicate(t *testing.T) {
	s, pub, pay := newService(t)
	ctx := context.Background()

	first, err := s.Confirm(ctx, "u1", confirmReq("drv-1"))
	if err != nil {
		t.Fatal(err)
	}
	if !first.Inserted {
		t.Fatal("first confirm must insert")
	}
	tr := first.Trip
	if tr.Price != 4700 || tr.QuotedPrice != 4800 || tr.BaseFare != 500 {
		t.Fatalf("prices: %+v", tr)
	}
	if tr.Duration.MinMinutes != 53 || tr.Duration.MaxMinutes != 75 {
		t.Fatalf("duration: %+v", tr.Duration)
	}
	if tr.Status != models.TripUpcoming || tr.PaymentRef != "pi_"+tr.ID {
		t.Fatalf("status %s payment %q", tr.Status, tr.PaymentRef)
	}

	second, err := s.Confirm(ctx, "u1", confirmReq("drv-1"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Inserted || second.Trip.ID != tr.ID {
		t.Fatalf("duplicate must return the stored trip, got %+v", second)
	}

	list, err := s.List(ctx, "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one trip, got %d", len(list))
	}
	if got := pub.types(); len(got) != 1 || got[0] != models.EventTripCreated {
		t.Fatalf("events: %v", got)
	}
	if len(pay.held) != 1 {
		t.Fatalf("expected one hold, got %d", len(pay.held))
	}
}

func TestConfirmConcurrentSubmissions(t *testing.T) {
	s, _, _ := newService(t)
	const n = 10
	var wg sync.WaitGroup
	results := make([]ConfirmResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Confirm(context.Background(), "u1", confirmReq("drv-2"))
			if err != nil {
				t.Errorf("confirm: %v", err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()
	inserted := 0
	for _, r := range results {
		if r.Inserted {
			inserted++
		}
	}
	if inserted != 1 {
		t.Fatalf("expected one insert, got %d", inserted)
	}
}

func TestConfirmRejects(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	if _, err := s.Confirm(ctx, "u1", confirmReq("")); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing driver: %v", err)
	}
	if _, err := s.Confirm(ctx, "u1", confirmReq("drv-99")); !errors.Is(err, matcher.ErrUnknownDriver) {
		t.Fatalf("unknown driver: %v", err)
	}
	if _, err := s.Confirm(ctx, "", confirmReq("drv-1")); !errors.Is(err, trips.ErrInvalidTrip) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestConfirmSurvivesPaymentFailure(t *testing.T) {
	s, pub, pay := newService(t)
	pay.holdErr = errors.New("card declined")
	pub.err = errors.New("broker down")
	res, err := s.Confirm(context.Background(), "u1", confirmReq("drv-1"))
	if err != nil {
		t.Fatalf("side effects must not fail confirm: %v", err)
	}
	if !res.Inserted || res.Trip.PaymentRef != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLifecycle(t *testing.T) {
	s, pub, pay := newService(t)
	ctx := context.Background()
	a, _ := s.Confirm(ctx, "u1", confirmReq("drv-1"))
	b, _ := s.Confirm(ctx, "u1", confirmReq("drv-3"))

	done, err := s.Complete(ctx, "u1", a.Trip.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.TripCompleted || *done.Rating != 5 {
		t.Fatalf("complete: %+v", done)
	}
	if _, err := s.Complete(ctx, "u1", b.Trip.ID, 9); !errors.Is(err, trips.ErrInvalidRating) {
		t.Fatalf("bad rating: %v", err)
	}
	if _, err := s.Cancel(ctx, "u1", b.Trip.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Cancel(ctx, "u1", a.Trip.ID); !errors.Is(err, trips.ErrInvalidTransition) {
		t.Fatalf("cancel completed: %v", err)
	}
	if _, err := s.Complete(ctx, "u2", a.Trip.ID, 5); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("other user: %v", err)
	}

	completed, _ := s.List(ctx, "u1", models.TripCompleted)
	cancelled, _ := s.List(ctx, "u1", models.TripCancelled)
	if len(completed) != 1 || len(cancelled) != 1 {
		t.Fatalf("completed %d cancelled %d", len(completed), len(cancelled))
	}
	if _, err := s.List(ctx, "u1", "archived"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("bad status filter: %v", err)
	}
	if len(pay.captured) != 1 || len(pay.released) != 1 {
		t.Fatalf("captured %v released %v", pay.captured, pay.released)
	}
	want := []string{models.EventTripCreated, models.EventTripCreated, models.EventTripCompleted, models.EventTripCancelled}
	got := pub.types()
	if len(got) != len(want) {
		t.Fatalf("events %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v", got)
		}
	}
}

func TestReceipt(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	res, _ := s.Confirm(ctx, "u1", confirmReq("drv-1"))
	r, err := s.Receipt(ctx, "u1", res.Trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.BaseFare != 500 || r.DistanceCharge != 4300 || r.DriverAdjustment != -100 || r.Total != 4700 {
		t.Fatalf("receipt %+v", r)
	}
	if r.BaseFare+r.DistanceCharge+r.DriverAdjustment != r.Total {
		t.Fatal("receipt parts must add up to total")
	}
}
