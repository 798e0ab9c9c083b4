package trips

import (
	"time"

	"github.com/example/ride-booking/internal/models"
)

// FindDuplicate reports the first record in existing that candidate would
// duplicate: same id, same idempotency key, or same driver, pickup and
// destination created less than window apart.
func FindDuplicate(existing []models.Trip, candidate models.Trip, window time.Duration) (models.Trip, bool) {
	for _, t := range existing {
		if IsDuplicate(t, candidate, window) {
			return t, true
		}
	}
	return models.Trip{}, false
}

func IsDuplicate(a, b models.Trip, window time.Duration) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	if a.IdempotencyKey != "" && a.IdempotencyKey == b.IdempotencyKey {
		return true
	}
	if a.Driver.ID != b.Driver.ID || a.Pickup != b.Pickup || a.Destination != b.Destination {
		return false
	}
	d := a.CreatedAt.Sub(b.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d < window
}

// Merge prepends candidate unless it duplicates an existing record. The
// input slice is never modified; when nothing is inserted existing is
// returned as is.
func Merge(existing []models.Trip, candidate models.Trip, window time.Duration) ([]models.Trip, bool) {
	if _, dup := FindDuplicate(existing, candidate, window); dup {
		return existing, false
	}
	out := make([]models.Trip, 0, len(existing)+1)
	out = append(out, candidate)
	out = append(out, existing...)
	return out, true
}

// Sanitize drops records missing a driver, pickup or destination and keeps
// only the first occurrence of each id.
func Sanitize(collection []models.Trip) []models.Trip {
	seen := make(map[string]struct{}, len(collection))
	out := make([]models.Trip, 0, len(collection))
	for _, t := range collection {
		if t.Driver.ID == "" || t.Pickup == "" || t.Destination == "" {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// FilterStatus returns the records in status, preserving order. An empty
// status returns everything.
func FilterStatus(collection []models.Trip, status models.TripStatus) []models.Trip {
	if status == "" {
		return collection
	}
	out := make([]models.Trip, 0, len(collection))
	for _, t := range collection {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}
