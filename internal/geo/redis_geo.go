package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/models"
)

// DefaultSearchRadiusKm covers the whole gazetteer from the demo roster;
// Badagry is the farthest area at about 54 km from its nearest driver.
const DefaultSearchRadiusKm = 60.0

// RedisGeo implements Geo using Redis GEO commands plus a metadata hash per
// driver. Drivers farther than radiusKm from the pickup are not offered.
type RedisGeo struct {
	client   redis.UniversalClient
	key      string
	radiusKm float64
}

func NewRedisGeo(client redis.UniversalClient, key string, radiusKm float64) *RedisGeo {
	if radiusKm <= 0 {
		radiusKm = DefaultSearchRadiusKm
	}
	return &RedisGeo{client: client, key: key, radiusKm: radiusKm}
}

func (r *RedisGeo) RadiusKm() float64 { return r.radiusKm }

func (r *RedisGeo) Upsert(ctx context.Context, d models.Driver) error {
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: d.Loc.Lng, Latitude: d.Loc.Lat, Name: d.ID}).Err(); err != nil {
		return fmt.Errorf("geoadd %s: %w", d.ID, err)
	}
	return r.client.HSet(ctx, metaKey(d.ID), map[string]interface{}{
		"name":    d.Name,
		"car":     d.Car,
		"license": d.License,
		"rating":  strconv.FormatFloat(d.Rating, 'f', 2, 64),
		"trips":   strconv.Itoa(d.Trips),
		"online":  strconv.FormatBool(d.Online),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisGeo) Nearby(ctx context.Context, lat, lng float64, limit int) ([]models.Driver, error) {
	res, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     r.radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geosearch: %w", err)
	}
	out := make([]models.Driver, 0, len(res))
	for _, g := range res {
		d := models.Driver{ID: g.Name, Loc: models.Coord{Lat: g.Latitude, Lng: g.Longitude}}
		m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result()
		if err != nil {
			return nil, fmt.Errorf("driver meta %s: %w", g.Name, err)
		}
		d.Name = m["name"]
		d.Car = m["car"]
		d.License = m["license"]
		if f, err := strconv.ParseFloat(m["rating"], 64); err == nil {
			d.Rating = f
		}
		if n, err := strconv.Atoi(m["trips"]); err == nil {
			d.Trips = n
		}
		d.Online = m["online"] == "true"
		if !d.Online {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func metaKey(id string) string { return "driver:meta:" + id }
