package earnings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/models"
)

var ErrIgnored = errors.New("event does not affect earnings")

// Summary is a driver's running totals, built from trip events.
type Summary struct {
	DriverID  string `json:"driver_id"`
	Completed int64  `json:"completed_trips"`
	Cancelled int64  `json:"cancelled_trips"`
	Earned    int64  `json:"earned"`
	Ratings   int64  `json:"rating_sum"`
}

// Redis projects trip events into one hash per driver. Each event is applied
// at most once: a marker key with a TTL is set in the same script that
// increments the totals.
type Redis struct {
	rdb       redis.UniversalClient
	markerTTL time.Duration
}

func NewRedis(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb, markerTTL: 7 * 24 * time.Hour}
}

func Key(driverID string) string { return "driver:earnings:" + driverID }

func markerKey(ev models.TripEvent) string {
	return "driver:earnings:applied:" + ev.Type + ":" + ev.Trip.ID
}

// applyScript: KEYS[1]=marker KEYS[2]=hash ARGV[1]=ttl seconds, then field/delta pairs.
var applyScript = redis.NewScript(`
if redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[1]) == false then
  return 0
end
for i = 2, #ARGV, 2 do
  redis.call('HINCRBY', KEYS[2], ARGV[i], ARGV[i+1])
end
return 1
`)

// Deltas maps an event to the hash increments it implies.
func Deltas(ev models.TripEvent) (map[string]int64, error) {
	if ev.Trip.Driver.ID == "" || ev.Trip.ID == "" {
		return nil, ErrIgnored
	}
	switch ev.Type {
	case models.EventTripCompleted:
		d := map[string]int64{"completed": 1, "earned": ev.Trip.Price}
		if ev.Trip.Rating != nil {
			d["rating_sum"] = int64(*ev.Trip.Rating)
		}
		return d, nil
	case models.EventTripCancelled:
		return map[string]int64{"cancelled": 1}, nil
	default:
		return nil, ErrIgnored
	}
}

// Apply reports whether the event changed the projection. Events already
// applied, or that carry nothing to project, return false.
func (r *Redis) Apply(ctx context.Context, ev models.TripEvent) (bool, error) {
	deltas, err := Deltas(ev)
	if errors.Is(err, ErrIgnored) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	args := []any{int64(r.markerTTL / time.Second)}
	for _, f := range []string{"completed", "cancelled", "earned", "rating_sum"} {
		if v, ok := deltas[f]; ok {
			args = append(args, f, v)
		}
	}
	n, err := applyScript.Run(ctx, r.rdb, []string{markerKey(ev), Key(ev.Trip.Driver.ID)}, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) Get(ctx context.Context, driverID string) (Summary, error) {
	vals, err := r.rdb.HGetAll(ctx, Key(driverID)).Result()
	if err != nil {
		return Summary{}, err
	}
	s := Summary{DriverID: driverID}
	s.Completed = parse(vals["completed"])
	s.Cancelled = parse(vals["cancelled"])
	s.Earned = parse(vals["earned"])
	s.Ratings = parse(vals["rating_sum"])
	return s, nil
}

func parse(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
