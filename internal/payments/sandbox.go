package payments

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sudo-init-do/bazaar/internal/apperr"
)

const DefaultSandboxSecret = "whsec_sandbox"

// Sandbox is an in-process gateway for development and tests. It issues
// deterministic references and emits Stripe-format signed webhooks.
type Sandbox struct {
	mu       sync.Mutex
	seq      int
	secret   string
	baseURL  string
	outcomes map[string]Outcome
	orders   map[string]string
}

func NewSandbox(webhookSecret, baseURL string) *Sandbox {
	if webhookSecret == "" {
		webhookSecret = DefaultSandboxSecret
	}
	return &Sandbox{
		secret:   webhookSecret,
		baseURL:  baseURL,
		outcomes: make(map[string]Outcome),
		orders:   make(map[string]string),
	}
}

func (s *Sandbox) next(prefix, orderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := prefix + "_sandbox_" + strconv.Itoa(s.seq)
	s.outcomes[id] = OutcomePending
	s.orders[id] = orderID
	return id
}

func (s *Sandbox) CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, providerErr("create payment intent", err)
	}
	if req.AmountMinor < 0 {
		return Intent{}, apperr.PaymentProvider("amount must not be negative", nil)
	}
	id := s.next("pi", req.OrderID)
	return Intent{ID: id, ClientSecret: id + "_secret_" + randomHex(8)}, nil
}

func (s *Sandbox) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, providerErr("create checkout session", err)
	}
	id := s.next("cs", req.OrderID)
	return Session{ID: id, URL: fmt.Sprintf("%s/sandbox/checkout/%s", s.baseURL, id)}, nil
}

func (s *Sandbox) Outcome(_ context.Context, reference string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[reference]
	if !ok {
		return "", apperr.PaymentProvider("unknown payment reference", nil)
	}
	return o, nil
}

// Cancel voids an open reference. A reference that already collected money
// cannot be canceled.
func (s *Sandbox) Cancel(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.outcomes[reference] {
	case "":
		return apperr.PaymentProvider("unknown payment reference", nil)
	case OutcomeSucceeded:
		return apperr.PaymentProvider("payment already succeeded", nil)
	}
	s.outcomes[reference] = OutcomeFailed
	return nil
}

// Settle records the provider-side result for reference, as a customer
// completing or abandoning payment would.
func (s *Sandbox) Settle(reference string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[reference] = outcome
}

func (s *Sandbox) ParseWebhook(payload []byte, signature string) (Event, error) {
	return decodeEvent(payload, signature, s.secret)
}

// WebhookFor settles reference and returns the signed event Stripe would send.
func (s *Sandbox) WebhookFor(reference string, outcome Outcome) (payload []byte, signature string, err error) {
	s.Settle(reference, outcome)
	s.mu.Lock()
	orderID := s.orders[reference]
	s.mu.Unlock()

	payload, err = SandboxEvent(reference, orderID, outcome)
	if err != nil {
		return nil, "", err
	}
	return payload, Sign(payload, s.secret, time.Now()), nil
}

// DeclineWebhook returns the signed event for a declined attempt on an
// intent. The intent stays open, so its outcome is unchanged.
func (s *Sandbox) DeclineWebhook(reference string) (payload []byte, signature string, err error) {
	s.mu.Lock()
	orderID := s.orders[reference]
	s.mu.Unlock()

	payload, err = eventBody(eventIntentFailed, intentObject(reference, orderID))
	if err != nil {
		return nil, "", err
	}
	return payload, Sign(payload, s.secret, time.Now()), nil
}

// SandboxEvent builds a minimal Stripe-shaped event body.
func SandboxEvent(reference, orderID string, outcome Outcome) ([]byte, error) {
	var (
		typ    string
		object map[string]any
	)
	if IsSessionReference(reference) {
		object = map[string]any{"id": reference, "object": "checkout.session", "client_reference_id": orderID}
		switch outcome {
		case OutcomeSucceeded:
			typ = eventSessionCompleted
			object["payment_status"] = "paid"
		case OutcomeFailed:
			typ = eventSessionExpired
			object["payment_status"] = "unpaid"
		default:
			typ = eventSessionCompleted
			object["payment_status"] = "unpaid"
		}
	} else {
		object = intentObject(reference, orderID)
		switch outcome {
		case OutcomeSucceeded:
			typ = eventIntentSucceeded
		case OutcomeFailed:
			typ = eventIntentCanceled
		default:
			typ = "payment_intent.processing"
		}
	}
	return eventBody(typ, object)
}

func intentObject(reference, orderID string) map[string]any {
	return map[string]any{"id": reference, "object": "payment_intent", "metadata": map[string]string{"order_id": orderID}}
}

func eventBody(typ string, object map[string]any) ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":     "evt_" + randomHex(12),
		"object": "event",
		"type":   typ,
		"data":   map[string]any{"object": object},
	})
}

// Sign produces a Stripe-Signature header value for payload.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b)
}
