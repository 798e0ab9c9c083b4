package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-booking/internal/models"
)

type Notifier interface {
	Notify(ctx context.Context, userID string, ev models.TripEvent) error
}

// Webhook posts trip events to an HTTP endpoint, for users with no live
// websocket session.
type Webhook struct {
	Endpoint string
	Client   *http.Client
}

func NewWebhook(endpoint string) *Webhook {
	return &Webhook{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (w *Webhook) Notify(ctx context.Context, userID string, ev models.TripEvent) error {
	b, err := json.Marshal(map[string]any{"user_id": userID, "event": ev})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", w.Endpoint, resp.StatusCode)
	}
	return nil
}

// Push tries the websocket registry first and falls back to the webhook
// when the user has no session.
type Push struct {
	WS       *WSRegistry
	Fallback Notifier
}

func (p *Push) Notify(ctx context.Context, userID string, ev models.TripEvent) error {
	if p.WS != nil {
		err := p.WS.Notify(ctx, userID, ev)
		if err == nil || !errors.Is(err, ErrNoSession) || p.Fallback == nil {
			return err
		}
	}
	if p.Fallback == nil {
		return ErrNoSession
	}
	return p.Fallback.Notify(ctx, userID, ev)
}
