package orders

import (
	"context"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/logger"
	"github.com/sudo-init-do/bazaar/internal/payments"
	"github.com/sudo-init-do/bazaar/internal/pricing"
)

// payable loads an order the buyer may still pay for and its amount in minor units.
func (s *Service) payable(ctx context.Context, buyer identity.Account, orderID string) (Order, int64, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, 0, err
	}
	if o.BuyerID != buyer.ID {
		return Order{}, 0, apperr.Forbidden("only the buyer can pay for this order")
	}
	if o.Status != StatusPending {
		return Order{}, 0, apperr.InvalidTransition(string(o.Status), string(StatusPaid))
	}
	amount, err := pricing.ToMinorUnits(o.TotalPrice, o.Currency)
	if err != nil {
		return Order{}, 0, err
	}
	return o, amount, nil
}

// AttachPaymentIntent creates a provider intent for the persisted total and
// stores its id, retiring any earlier reference first. On provider failure
// the order is left untouched.
func (s *Service) AttachPaymentIntent(ctx context.Context, buyer identity.Account, orderID string) (Order, error) {
	o, amount, err := s.payable(ctx, buyer, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.retire(ctx, o); err != nil {
		return Order{}, err
	}
	intent, err := s.gateway.CreatePaymentIntent(ctx, payments.IntentRequest{
		OrderID:     o.ID,
		AmountMinor: amount,
		Currency:    o.Currency,
	})
	if err != nil {
		return Order{}, err
	}
	if err := s.attach(ctx, &o, intent.ID); err != nil {
		return Order{}, err
	}
	o.ClientSecret = intent.ClientSecret
	return o, nil
}

// AttachCheckoutSession is the hosted-checkout variant of AttachPaymentIntent.
func (s *Service) AttachCheckoutSession(ctx context.Context, buyer identity.Account, orderID string) (Order, error) {
	o, amount, err := s.payable(ctx, buyer, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.retire(ctx, o); err != nil {
		return Order{}, err
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, payments.SessionRequest{
		OrderID:     o.ID,
		Title:       o.ListingTitle,
		AmountMinor: amount,
		Currency:    o.Currency,
	})
	if err != nil {
		return Order{}, err
	}
	if err := s.attach(ctx, &o, session.ID); err != nil {
		return Order{}, err
	}
	o.CheckoutURL = session.URL
	return o, nil
}

// retire makes the order's current reference unpayable before a new one is
// issued, so at most one of them can collect money. A reference that has
// already been paid confirms the order instead.
func (s *Service) retire(ctx context.Context, o Order) error {
	if o.PaymentIntentID == nil {
		return nil
	}
	ref := *o.PaymentIntentID
	outcome, err := s.gateway.Outcome(ctx, ref)
	if err != nil {
		return err
	}
	switch outcome {
	case payments.OutcomeSucceeded:
		if _, err := s.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: ref}); err != nil {
			return err
		}
		return apperr.InvalidTransition(string(StatusPaid), string(StatusPaid))
	case payments.OutcomeFailed:
		return nil
	default:
		// Cancel is refused once paid, so a payment landing now fails the retry.
		return s.gateway.Cancel(ctx, ref)
	}
}

func (s *Service) attach(ctx context.Context, o *Order, ref string) error {
	ok, err := s.repo.AttachReference(ctx, o.ID, o.PaymentIntentID, ref)
	if err != nil {
		return err
	}
	if !ok {
		// Someone paid, canceled or re-attached while the provider call was in flight.
		if err := s.gateway.Cancel(ctx, ref); err != nil {
			logger.Warn("order %s: could not cancel unused reference %s: %v", o.ID, ref, err)
		}
		current, err := s.repo.Get(ctx, o.ID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return apperr.InvalidTransition(string(current.Status), string(StatusPaid))
		}
		return apperr.PaymentIntentMismatch("payment reference changed concurrently, retry")
	}
	o.PaymentIntentID = &ref
	return nil
}

// VerifyPayment asks the provider how the order's current reference settled
// and applies the result. A pending outcome leaves the order as it is.
func (s *Service) VerifyPayment(ctx context.Context, acc identity.Account, orderID string) (Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !o.IsParty(acc.ID) {
		return Order{}, apperr.Forbidden("not your order")
	}
	if o.Status != StatusPending || o.PaymentIntentID == nil {
		return o, nil
	}

	ref := *o.PaymentIntentID
	outcome, err := s.gateway.Outcome(ctx, ref)
	if err != nil {
		return Order{}, err
	}
	switch outcome {
	case payments.OutcomeSucceeded:
		return s.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: ref})
	case payments.OutcomeFailed:
		return s.FailPayment(ctx, Confirmation{OrderID: o.ID, Reference: ref})
	default:
		return o, nil
	}
}
