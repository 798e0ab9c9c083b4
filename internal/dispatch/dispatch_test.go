package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-booking/internal/models"
)

func event(user string) models.TripEvent {
	return models.TripEvent{
		Type: models.EventTripCreated,
		Trip: models.Trip{ID: "t-1", UserID: user, Status: models.TripUpcoming},
		At:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestWSRegistryNotifiesEveryUserSession(t *testing.T) {
	reg := NewWSRegistry(nil)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		reg.Add(r.URL.Query().Get("user"), conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func(user string) *websocket.Conn {
		c, _, err := websocket.DefaultDialer.Dial(url+"?user="+user, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		return c
	}
	a1, a2, b := dial("alice"), dial("alice"), dial("bob")
	defer a1.Close()
	defer a2.Close()
	defer b.Close()

	deadline := time.Now().Add(2 * time.Second)
	for reg.Sessions("alice") < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := reg.Notify(context.Background(), "alice", event("alice")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	for _, c := range []*websocket.Conn{a1, a2} {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got models.TripEvent
		if err := c.ReadJSON(&got); err != nil {
			t.Fatalf("read: %v", err)
		}
		if got.Trip.ID != "t-1" || got.Type != models.EventTripCreated {
			t.Fatalf("unexpected event %+v", got)
		}
	}
	_ = b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var none models.TripEvent
	if err := b.ReadJSON(&none); err == nil {
		t.Fatalf("bob must not receive alice's event")
	}
}

func TestWSRegistryRemove(t *testing.T) {
	reg := NewWSRegistry(nil)
	remove := reg.Add("u", nil)
	if reg.Sessions("u") != 1 {
		t.Fatal("expected one session")
	}
	remove()
	if err := reg.Notify(context.Background(), "u", event("u")); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

type recordingNotifier struct{ users []string }

func (r *recordingNotifier) Notify(_ context.Context, userID string, _ models.TripEvent) error {
	r.users = append(r.users, userID)
	return nil
}

func TestPushFallsBackWithoutSession(t *testing.T) {
	fb := &recordingNotifier{}
	p := &Push{WS: NewWSRegistry(nil), Fallback: fb}
	if err := p.Notify(context.Background(), "u1", event("u1")); err != nil {
		t.Fatal(err)
	}
	if len(fb.users) != 1 || fb.users[0] != "u1" {
		t.Fatalf("fallback not used: %v", fb.users)
	}
}

func TestWebhookPostsEvent(t *testing.T) {
	var body struct {
		UserID string           `json:"user_id"`
		Event  models.TripEvent `json:"event"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL).Notify(context.Background(), "u9", event("u9")); err != nil {
		t.Fatal(err)
	}
	if body.UserID != "u9" || body.Event.Trip.ID != "t-1" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewWebhook(srv.URL).Notify(context.Background(), "u", event("u")); err == nil {
		t.Fatal("expected error on 502")
	}
}
