package trips

import (
	"fmt"
	"time"

	"github.com/example/ride-booking/internal/models"
)

// AllowedTransitions is the trip state flow; completed and cancelled are terminal.
var AllowedTransitions = map[models.TripStatus][]models.TripStatus{
	models.TripUpcoming: {models.TripCompleted, models.TripCancelled},
}

func CanTransition(from, to models.TripStatus) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Complete marks an upcoming trip completed with a rating from 1 to 5. A
// trip that is no longer upcoming fails with ErrInvalidTransition whatever
// the rating.
func Complete(t *models.Trip, rating int, now time.Time) error {
	if !CanTransition(t.Status, models.TripCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, models.TripCompleted)
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	t.Status = models.TripCompleted
	t.Rating = &rating
	t.UpdatedAt = now.UTC()
	return nil
}

func Cancel(t *models.Trip, now time.Time) error {
	if !CanTransition(t.Status, models.TripCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, models.TripCancelled)
	}
	t.Status = models.TripCancelled
	t.UpdatedAt = now.UTC()
	return nil
}
