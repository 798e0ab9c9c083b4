package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/trips"
)

const maxTxRetries = 8

var errTxConflict = errors.New("trip collection changed concurrently")

// RedisStore keeps each user's collection as one JSON array under
// "trips:<user>". Writes use WATCH/MULTI so a concurrent writer forces a
// retry instead of a lost update.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	window time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, window time.Duration) *RedisStore {
	if window <= 0 {
		window = trips.DefaultDuplicateWindow
	}
	return &RedisStore{rdb: rdb, prefix: "trips:", window: window}
}

func (r *RedisStore) key(userID string) string { return r.prefix + userID }

func (r *RedisStore) Insert(ctx context.Context, t models.Trip) (models.Trip, bool, error) {
	var (
		result   models.Trip
		inserted bool
	)
	err := r.withRetry(ctx, t.UserID, func(current []models.Trip) ([]models.Trip, error) {
		if dup, ok := trips.FindDuplicate(current, t, r.window); ok {
			result, inserted = dup, false
			return nil, nil
		}
		next, _ := trips.Merge(current, t, r.window)
		result, inserted = t, true
		return next, nil
	})
	if err != nil {
		return models.Trip{}, false, err
	}
	return result, inserted, nil
}

func (r *RedisStore) List(ctx context.Context, userID string) ([]models.Trip, error) {
	return r.load(ctx, r.rdb, userID)
}

func (r *RedisStore) Get(ctx context.Context, userID, tripID string) (models.Trip, error) {
	all, err := r.load(ctx, r.rdb, userID)
	if err != nil {
		return models.Trip{}, err
	}
	for _, t := range all {
		if t.ID == tripID {
			return t, nil
		}
	}
	return models.Trip{}, ErrNotFound
}

func (r *RedisStore) Update(ctx context.Context, userID, tripID string, fn func(*models.Trip) error) (models.Trip, error) {
	var updated models.Trip
	err := r.withRetry(ctx, userID, func(current []models.Trip) ([]models.Trip, error) {
		for i := range current {
			if current[i].ID != tripID {
				continue
			}
			next := cloneTrip(current[i])
			if err := fn(&next); err != nil {
				return nil, err
			}
			out := make([]models.Trip, len(current))
			copy(out, current)
			out[i] = next
			updated = next
			return out, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return models.Trip{}, err
	}
	return updated, nil
}

// withRetry runs fn against the watched collection and writes back the
// returned slice. A nil slice means nothing to write.
func (r *RedisStore) withRetry(ctx context.Context, userID string, fn func([]models.Trip) ([]models.Trip, error)) error {
	key := r.key(userID)
	txf := func(tx *redis.Tx) error {
		current, err := r.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}
		b, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 5 * time.Millisecond):
			}
			continue
		}
		return err
	}
	return fmt.Errorf("user %s: %w", userID, errTxConflict)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, c getter, userID string) ([]models.Trip, error) {
	b, err := c.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []models.Trip
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode trips for %s: %w", userID, err)
	}
	return out, nil
}
