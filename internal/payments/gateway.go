// Package payments wraps the external payment processor. Amounts cross this
// boundary in integer minor units; callers do the conversion.
package payments

import (
	"context"
	"strings"
)

type IntentRequest struct {
	OrderID     string
	AmountMinor int64
	Currency    string
}

// Intent is an opaque payment token. ClientSecret is handed to the frontend.
type Intent struct {
	ID           string
	ClientSecret string
}

type SessionRequest struct {
	OrderID     string
	Title       string
	AmountMinor int64
	Currency    string
}

type Session struct {
	ID  string
	URL string
}

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Event is a verified provider notification reduced to what orders need.
// OrderID may be empty when the provider did not echo it back.
type Event struct {
	ID        string
	Type      string
	Outcome   Outcome
	Reference string
	OrderID   string
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error)
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
	Outcome(ctx context.Context, reference string) (Outcome, error)
	// Cancel voids an intent or expires a session so it can no longer be paid.
	Cancel(ctx context.Context, reference string) error
	ParseWebhook(payload []byte, signature string) (Event, error)
}

// IsSessionReference reports whether ref names a checkout session rather than an intent.
func IsSessionReference(ref string) bool {
	return strings.HasPrefix(ref, "cs_")
}
