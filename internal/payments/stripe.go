package payments

import (
	"context"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/example/ride-booking/internal/models"
)

// Payments holds the fare at confirmation and settles it when the trip
// ends. Hold returns a reference stored on the trip.
type Payments interface {
	Hold(ctx context.Context, t models.Trip) (string, error)
	Capture(ctx context.Context, ref string) error
	Release(ctx context.Context, ref string) error
}

// StripeClient is a thin wrapper around stripe-go for PaymentIntent hold/capture/cancel flows.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(apiKey string) *StripeClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeClient{api: api}
}

// MinorUnits converts a whole-currency fare to the smallest unit Stripe
// expects (kobo for NGN).
func MinorUnits(amount int64) int64 { return amount * 100 }

// Hold creates a PaymentIntent with capture_method=manual for the trip price.
func (s *StripeClient) Hold(ctx context.Context, t models.Trip) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(MinorUnits(t.Price)),
		Currency:      stripe.String(strings.ToLower(t.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("hold-" + t.ID)
	params.AddMetadata("trip_id", t.ID)
	params.AddMetadata("user_id", t.UserID)
	params.AddMetadata("driver_id", t.Driver.ID)
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeClient) Capture(ctx context.Context, ref string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	_, err := s.api.PaymentIntents.Capture(ref, params)
	return err
}

func (s *StripeClient) Release(ctx context.Context, ref string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := s.api.PaymentIntents.Cancel(ref, params)
	return err
}

// Noop is used when no payment provider is configured.
type Noop struct{}

func (Noop) Hold(context.Context, models.Trip) (string, error) { return "", nil }
func (Noop) Capture(context.Context, string) error             { return nil }
func (Noop) Release(context.Context, string) error             { return nil }
