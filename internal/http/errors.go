package httpapi

import (
	"errors"
	"net/http"

	"github.com/example/ride-booking/internal/auth"
	"github.com/example/ride-booking/internal/booking"
	"github.com/example/ride-booking/internal/catalog"
	"github.com/example/ride-booking/internal/geo"
	"github.com/example/ride-booking/internal/matcher"
	"github.com/example/ride-booking/internal/storage"
	"github.com/example/ride-booking/internal/trips"
)

var badRequest = []error{
	errDecode,
	booking.ErrBadRequest,
	geo.ErrInvalidCoordinate,
	geo.ErrMissingLocation,
	geo.ErrUnknownLocation,
	catalog.ErrUnknownClass,
	matcher.ErrUnknownDriver,
	trips.ErrInvalidTrip,
	trips.ErrInvalidRating,
}

func statusFor(err error) int {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, trips.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": ...}. Unmapped errors are logged and
// hidden behind a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
