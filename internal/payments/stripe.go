package payments

import (
	"context"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/sudo-init-do/bazaar/internal/config"
)

// Stripe talks to the Stripe API through its own client instance; the
// package-level stripe.Key is never set.
type Stripe struct {
	sc            *client.API
	webhookSecret string
	timeout       time.Duration
	successURL    string
	cancelURL     string
}

func NewStripe(cfg config.PaymentsConfig) *Stripe {
	return newStripe(cfg, "")
}

// newStripe points every backend at baseURL when it is set.
func newStripe(cfg config.PaymentsConfig, baseURL string) *Stripe {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	backend := func(t stripe.SupportedBackend) stripe.Backend {
		bc := &stripe.BackendConfig{
			HTTPClient: httpClient,
			// Retries are left to the client.
			MaxNetworkRetries: stripe.Int64(0),
		}
		if baseURL != "" {
			bc.URL = stripe.String(baseURL)
		}
		return stripe.GetBackendWithConfig(t, bc)
	}

	sc := &client.API{}
	sc.Init(cfg.StripeSecretKey, &stripe.Backends{
		API:     backend(stripe.APIBackend),
		Connect: backend(stripe.ConnectBackend),
		Uploads: backend(stripe.UploadsBackend),
	})

	return &Stripe{
		sc:            sc,
		webhookSecret: cfg.WebhookSecret,
		timeout:       cfg.Timeout,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (s *Stripe) CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)

	pi, err := s.sc.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, providerErr("create payment intent", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Title),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)

	cs, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, providerErr("create checkout session", err)
	}
	return Session{ID: cs.ID, URL: cs.URL}, nil
}

// Outcome asks Stripe for the current state of an intent or session.
func (s *Stripe) Outcome(ctx context.Context, reference string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if IsSessionReference(reference) {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		cs, err := s.sc.CheckoutSessions.Get(reference, params)
		if err != nil {
			return "", providerErr("fetch checkout session", err)
		}
		switch {
		case cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
			return OutcomeSucceeded, nil
		case cs.Status == stripe.CheckoutSessionStatusExpired:
			return OutcomeFailed, nil
		default:
			return OutcomePending, nil
		}
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.sc.PaymentIntents.Get(reference, params)
	if err != nil {
		return "", providerErr("fetch payment intent", err)
	}
	return intentOutcome(pi.Status), nil
}

// Cancel cancels an intent or expires a session. Stripe refuses both once
// the payment has succeeded.
func (s *Stripe) Cancel(ctx context.Context, reference string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if IsSessionReference(reference) {
		params := &stripe.CheckoutSessionExpireParams{}
		params.Context = ctx
		if _, err := s.sc.CheckoutSessions.Expire(reference, params); err != nil {
			return providerErr("expire checkout session", err)
		}
		return nil
	}

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := s.sc.PaymentIntents.Cancel(reference, params); err != nil {
		return providerErr("cancel payment intent", err)
	}
	return nil
}

func intentOutcome(status stripe.PaymentIntentStatus) Outcome {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return OutcomeSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	return decodeEvent(payload, signature, s.webhookSecret)
}
