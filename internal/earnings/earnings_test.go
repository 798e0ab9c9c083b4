package earnings

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/models"
)

func completed(id string, price int64, rating int) models.TripEvent {
	return models.TripEvent{
		Type: models.EventTripCompleted,
		Trip: models.Trip{ID: id, Driver: models.TripDriver{ID: "drv-1"}, Price: price, Rating: &rating},
		At:   time.Now(),
	}
}

func TestDeltas(t *testing.T) {
	d, err := Deltas(completed("t1", 4700, 5))
	if err != nil {
		t.Fatal(err)
	}
	if d["completed"] != 1 || d["earned"] != 4700 || d["rating_sum"] != 5 {
		t.Fatalf("unexpected deltas %v", d)
	}

	d, err = Deltas(models.TripEvent{Type: models.EventTripCancelled, Trip: models.Trip{ID: "t2", Driver: models.TripDriver{ID: "drv-1"}}})
	if err != nil || d["cancelled"] != 1 || d["earned"] != 0 {
		t.Fatalf("cancel deltas %v err=%v", d, err)
	}

	if _, err := Deltas(models.TripEvent{Type: models.EventTripCreated, Trip: models.Trip{ID: "t3", Driver: models.TripDriver{ID: "drv-1"}}}); !errors.Is(err, ErrIgnored) {
		t.Fatalf("created events must be ignored, got %v", err)
	}
	if _, err := Deltas(models.TripEvent{Type: models.EventTripCompleted}); !errors.Is(err, ErrIgnored) {
		t.Fatalf("event without driver must be ignored, got %v", err)
	}
}

func TestRedisApplyIsIdempotent(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	p := NewRedis(rdb)
	ev := completed("earn-"+time.Now().Format("150405.000000"), 4700, 4)
	ev.Trip.Driver.ID = "drv-test-" + ev.Trip.ID
	defer rdb.Del(ctx, Key(ev.Trip.Driver.ID), markerKey(ev))

	for i, want := range []bool{true, false} {
		applied, err := p.Apply(ctx, ev)
		if err != nil {
			t.Fatal(err)
		}
		if applied != want {
			t.Fatalf("apply %d: got %v want %v", i, applied, want)
		}
	}
	s, err := p.Get(ctx, ev.Trip.Driver.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Completed != 1 || s.Earned != 4700 || s.Ratings != 4 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
