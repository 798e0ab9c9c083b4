package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ride-booking/internal/models"
)

var ErrNoSession = errors.New("no ws session")

// WSSession is one live connection of a user's trip feed.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ev models.TripEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// WSRegistry holds user sessions. A user may have several tabs open, so
// every session of the user receives the event.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[*WSSession]struct{}
	log      *slog.Logger
}

func NewWSRegistry(log *slog.Logger) *WSRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]map[*WSSession]struct{}), log: log}
}

// Add registers conn for userID and returns a func that removes it.
func (r *WSRegistry) Add(userID string, conn *websocket.Conn) func() {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	if r.sessions[userID] == nil {
		r.sessions[userID] = make(map[*WSSession]struct{})
	}
	r.sessions[userID][s] = struct{}{}
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.sessions[userID], s)
		if len(r.sessions[userID]) == 0 {
			delete(r.sessions, userID)
		}
	}
}

func (r *WSRegistry) Sessions(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}

func (r *WSRegistry) Notify(_ context.Context, userID string, ev models.TripEvent) error {
	r.mu.RLock()
	targets := make([]*WSSession, 0, len(r.sessions[userID]))
	for s := range r.sessions[userID] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()
	if len(targets) == 0 {
		return ErrNoSession
	}
	var errs []error
	for _, s := range targets {
		if err := s.Send(ev); err != nil {
			r.log.Warn("ws send failed", "user_id", userID, "event", ev.Type, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(targets) {
		return errors.Join(errs...)
	}
	return nil
}
