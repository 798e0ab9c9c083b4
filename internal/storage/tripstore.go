package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/ride-booking/internal/models"
	"github.com/example/ride-booking/internal/trips"
)

var ErrNotFound = errors.New("trip not found")

// TripStore persists one trip collection per user, newest first. Insert
// must serialize the duplicate check and the write for a given user.
type TripStore interface {
	// Insert adds t to t.UserID's collection unless it duplicates an
	// existing record, in which case that record is returned with false.
	Insert(ctx context.Context, t models.Trip) (models.Trip, bool, error)
	List(ctx context.Context, userID string) ([]models.Trip, error)
	Get(ctx context.Context, userID, tripID string) (models.Trip, error)
	// Update applies fn to a copy of the trip and stores the result if fn
	// returns nil.
	Update(ctx context.Context, userID, tripID string, fn func(*models.Trip) error) (models.Trip, error)
}

type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]*userTrips
	window time.Duration
}

type userTrips struct {
	mu    sync.Mutex
	trips []models.Trip
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	if window <= 0 {
		window = trips.DefaultDuplicateWindow
	}
	return &MemoryStore{users: make(map[string]*userTrips), window: window}
}

func (m *MemoryStore) user(id string) *userTrips {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		u = &userTrips{}
		m.users[id] = u
	}
	return u
}

func (m *MemoryStore) lookup(id string) (*userTrips, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok
}

func (m *MemoryStore) Insert(ctx context.Context, t models.Trip) (models.Trip, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Trip{}, false, err
	}
	u := m.user(t.UserID)
	u.mu.Lock()
	defer u.mu.Unlock()
	if dup, ok := trips.FindDuplicate(u.trips, t, m.window); ok {
		return dup, false, nil
	}
	u.trips, _ = trips.Merge(u.trips, t, m.window)
	return t, true, nil
}

func (m *MemoryStore) List(ctx context.Context, userID string) ([]models.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := m.lookup(userID)
	if !ok {
		return nil, nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]models.Trip, len(u.trips))
	for i, t := range u.trips {
		out[i] = cloneTrip(t)
	}
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, userID, tripID string) (models.Trip, error) {
	if err := ctx.Err(); err != nil {
		return models.Trip{}, err
	}
	u, ok := m.lookup(userID)
	if !ok {
		return models.Trip{}, ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, t := range u.trips {
		if t.ID == tripID {
			return cloneTrip(t), nil
		}
	}
	return models.Trip{}, ErrNotFound
}

func (m *MemoryStore) Update(ctx context.Context, userID, tripID string, fn func(*models.Trip) error) (models.Trip, error) {
	if err := ctx.Err(); err != nil {
		return models.Trip{}, err
	}
	u, ok := m.lookup(userID)
	if !ok {
		return models.Trip{}, ErrNotFound
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, t := range u.trips {
		if t.ID != tripID {
			continue
		}
		next := cloneTrip(t)
		if err := fn(&next); err != nil {
			return models.Trip{}, err
		}
		u.trips[i] = next
		return cloneTrip(next), nil
	}
	return models.Trip{}, ErrNotFound
}

func cloneTrip(t models.Trip) models.Trip {
	if t.Rating != nil {
		r := *t.Rating
		t.Rating = &r
	}
	return t
}
