package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/sudo-init-do/bazaar/internal/apperr"
)

// Webhook event types acted upon. Everything else is acknowledged and ignored.
const (
	eventIntentSucceeded       = "payment_intent.succeeded"
	eventIntentFailed          = "payment_intent.payment_failed"
	eventIntentCanceled        = "payment_intent.canceled"
	eventSessionCompleted      = "checkout.session.completed"
	eventSessionAsyncSucceeded = "checkout.session.async_payment_succeeded"
	eventSessionAsyncFailed    = "checkout.session.async_payment_failed"
	eventSessionExpired        = "checkout.session.expired"
)

// decodeEvent verifies a Stripe-Signature header and reduces the event.
// Unknown types decode with OutcomePending so callers can acknowledge them.
func decodeEvent(payload []byte, signature, secret string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, apperr.Validation("invalid webhook signature", err)
	}

	out := Event{ID: evt.ID, Type: string(evt.Type), Outcome: OutcomePending}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case eventIntentSucceeded, eventIntentFailed, eventIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return Event{}, apperr.Validation("malformed payment intent payload", err)
		}
		out.Reference = pi.ID
		out.OrderID = pi.Metadata["order_id"]
		switch out.Type {
		case eventIntentSucceeded:
			out.Outcome = OutcomeSucceeded
		case eventIntentCanceled:
			out.Outcome = OutcomeFailed
		default:
			// A declined attempt leaves the intent open for another
			// payment method; only cancellation is terminal.
		}

	case eventSessionCompleted, eventSessionAsyncSucceeded, eventSessionAsyncFailed, eventSessionExpired:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
			return Event{}, apperr.Validation("malformed checkout session payload", err)
		}
		out.Reference = cs.ID
		out.OrderID = cs.ClientReferenceID
		switch out.Type {
		case eventSessionCompleted:
			// Delayed methods complete the session before the money arrives.
			if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
				out.Outcome = OutcomeSucceeded
			}
		case eventSessionAsyncSucceeded:
			out.Outcome = OutcomeSucceeded
		default:
			out.Outcome = OutcomeFailed
		}
	}
	return out, nil
}

func providerErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.PaymentProvider(fmt.Sprintf("%s timed out", op), err)
	}
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return apperr.PaymentProvider(fmt.Sprintf("%s failed: %s", op, se.Msg), err)
	}
	return apperr.PaymentProvider(fmt.Sprintf("%s failed", op), err)
}
