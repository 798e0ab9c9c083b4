package geo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/models"
)

func TestRedisGeoNearby(t *testing.T) {
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
	key := "test_geo_" + time.Now().Format("150405.000000")
	defer rdb.Del(ctx, key)

	g := NewRedisGeo(rdb, key, 0)
	drivers := DemoRoster()
	drivers[1].Online = false
	if err := Seed(ctx, g, drivers); err != nil {
		t.Fatal(err)
	}

	ikeja := models.Coord{Lat: 6.6059, Lng: 3.3491}
	got, err := g.Nearby(ctx, ikeja.Lat, ikeja.Lng, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].ID != "drv-1" || got[0].Name != "Tunde Adewale" {
		t.Fatalf("unexpected nearby result: %+v", got)
	}
	for _, d := range got {
		if d.ID == "drv-2" {
			t.Fatal("offline driver returned")
		}
	}

	places, err := NewLagosGazetteer("Ikeja", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range places.Names() {
		c, _ := places.Lookup(name)
		got, err := g.Nearby(ctx, c.Lat, c.Lng, 4)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) == 0 {
			t.Errorf("%s: no driver within %.0f km", name, g.RadiusKm())
		}
	}
}

func TestRedisGeoReportsOutage(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	g := NewRedisGeo(rdb, "drivers_geo", 0)
	if _, err := g.Nearby(context.Background(), 6.6, 3.3, 4); err == nil {
		t.Fatal("expected an error when redis is unreachable")
	}
}

func TestDefaultRadiusCoversGazetteer(t *testing.T) {
	g, err := NewLagosGazetteer("Ikeja", false)
	if err != nil {
		t.Fatal(err)
	}
	roster := DemoRoster()
	for _, name := range g.Names() {
		c, _ := g.Lookup(name)
		nearest := -1.0
		for _, d := range roster {
			if km := DistanceKm(c, d.Loc); nearest < 0 || km < nearest {
				nearest = km
			}
		}
		if nearest > DefaultSearchRadiusKm {
			t.Errorf("%s: nearest driver %.1f km, search radius %.0f km", name, nearest, DefaultSearchRadiusKm)
		}
	}
}
