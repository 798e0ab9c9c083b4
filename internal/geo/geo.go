package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-booking/internal/models"
)

const earthRadiusKm = 6371.0

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Geo is the driver roster the matcher draws offers from.
type Geo interface {
	Nearby(ctx context.Context, lat, lng float64, limit int) ([]models.Driver, error)
	Upsert(ctx context.Context, d models.Driver) error
}

type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.Driver)}
}

func (g *Index) Upsert(_ context.Context, d models.Driver) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d.Updated = time.Now()
	g.drivers[d.ID] = d
	return nil
}

// Nearby returns up to limit online drivers ordered by distance, ties by id.
// Naive scan; the roster is small.
func (g *Index) Nearby(_ context.Context, lat, lng float64, limit int) ([]models.Driver, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		d    models.Driver
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for _, d := range g.drivers {
		if !d.Online {
			continue
		}
		arr = append(arr, pair{d, Haversine(lat, lng, d.Loc.Lat, d.Loc.Lng)})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].dist != arr[j].dist {
			return arr[i].dist < arr[j].dist
		}
		return arr[i].d.ID < arr[j].d.ID
	})
	n := limit
	if n <= 0 || n > len(arr) {
		n = len(arr)
	}
	out := make([]models.Driver, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].d)
	}
	return out, nil
}

// Haversine distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	return haversineKm(lat1, lng1, lat2, lng2) * 1000
}

// DistanceKm is the great-circle distance between a and b rounded half-up
// to 0.1 km. NaN inputs yield NaN; validate at the boundary.
func DistanceKm(a, b models.Coord) float64 {
	return math.Floor(haversineKm(a.Lat, a.Lng, b.Lat, b.Lng)*10+0.5) / 10
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Validate rejects non-finite components and clamps the rest into
// [-90,90] / [-180,180].
func Validate(c models.Coord) (models.Coord, error) {
	if !finite(c.Lat) || !finite(c.Lng) {
		return models.Coord{}, fmt.Errorf("%w: %v,%v", ErrInvalidCoordinate, c.Lat, c.Lng)
	}
	return models.Coord{Lat: clamp(c.Lat, -90, 90), Lng: clamp(c.Lng, -180, 180)}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
