package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-booking/internal/auth"
	"github.com/example/ride-booking/internal/booking"
	"github.com/example/ride-booking/internal/dispatch"
	"github.com/example/ride-booking/internal/earnings"
	"github.com/example/ride-booking/internal/models"
)

const maxBodyBytes = 1 << 20

type EarningsReader interface {
	Get(ctx context.Context, driverID string) (earnings.Summary, error)
}

// Options wires a Server. Earnings and Ready are optional.
type Options struct {
	Booking  *booking.Service
	Auth     *auth.Verifier
	WS       *dispatch.WSRegistry
	Earnings EarningsReader
	Ready    func(ctx context.Context) error
	Logger   *slog.Logger
}

type Server struct {
	booking  *booking.Service
	auth     *auth.Verifier
	ws       *dispatch.WSRegistry
	earnings EarningsReader
	ready    func(ctx context.Context) error
	logger   *slog.Logger
	mux      *mux.Router
	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	verifier := opts.Auth
	if verifier == nil {
		verifier = auth.NewVerifier("")
	}
	s := &Server{
		booking:  opts.Booking,
		auth:     verifier,
		ws:       opts.WS,
		earnings: opts.Earnings,
		ready:    opts.Ready,
		logger:   logger,
		mux:      mux.NewRouter(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/locations", s.handleLocations).Methods(http.MethodGet)
	api.HandleFunc("/ride-classes", s.handleClasses).Methods(http.MethodGet)
	api.HandleFunc("/quotes", s.handleQuote).Methods(http.MethodPost)
	api.HandleFunc("/offers", s.handleOffers).Methods(http.MethodPost)
	api.HandleFunc("/trips", s.handleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/trips", s.handleListTrips).Methods(http.MethodGet)
	api.HandleFunc("/trips/{id}", s.handleGetTrip).Methods(http.MethodGet)
	api.HandleFunc("/trips/{id}/receipt", s.handleReceipt).Methods(http.MethodGet)
	api.HandleFunc("/trips/{id}/complete", s.handleComplete).Methods(http.MethodPost)
	api.HandleFunc("/trips/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{id}/earnings", s.handleEarnings).Methods(http.MethodGet)

	s.mux.Handle("/ws", s.authMiddleware(http.HandlerFunc(s.handleWS))).Methods(http.MethodGet)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	names, def := s.booking.Locations()
	writeJSON(w, http.StatusOK, map[string]any{"locations": names, "default": def})
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"classes": s.booking.Classes()})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req booking.RouteRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.booking.Quote(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	var req booking.OfferRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.booking.Offers(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req booking.ConfirmRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	res, err := s.booking.Confirm(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Inserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	status := models.TripStatus(strings.ToLower(r.URL.Query().Get("status")))
	list, err := s.booking.List(r.Context(), userID(r), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": list})
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.booking.Get(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	b, err := s.booking.Receipt(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating int `json:"rating"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	t, err := s.booking.Complete(r.Context(), userID(r), mux.Vars(r)["id"], req.Rating)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	t, err := s.booking.Cancel(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	if s.earnings == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	// Drivers authenticate under their driver id and may only read their own
	// totals.
	id := mux.Vars(r)["id"]
	if id != userID(r) {
		s.writeError(w, r, fmt.Errorf("earnings for %s: %w", id, auth.ErrForbidden))
		return
	}
	sum, err := s.earnings.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleWS keeps the connection registered until the client goes away.
// Incoming frames are read and discarded.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.ws == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	uid := userID(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "user_id", uid, "error", err)
		return
	}
	remove := s.ws.Add(uid, conn)
	defer func() {
		remove()
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

var (
	errUnavailable = errors.New("feature not configured")
	errDecode      = errors.New("invalid request body")
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errDecode, err))
		return false
	}
	return true
}

func userID(r *http.Request) string {
	id, _ := auth.UserIDFrom(r.Context())
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { return uuid.NewString() }
