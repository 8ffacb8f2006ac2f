package orders

import (
	"context"

	"github.com/sudo-init-do/bazaar/internal/apperr"
)

// Confirmation identifies a provider success signal. OrderID is optional;
// without it the order is looked up by Reference.
type Confirmation struct {
	OrderID   string
	Reference string
}

// casAttempts bounds how often a lost compare-and-swap is re-evaluated.
const casAttempts = 3

func (s *Service) resolve(ctx context.Context, c Confirmation) (Order, error) {
	if c.Reference == "" {
		return Order{}, apperr.Validation("payment reference is required", nil)
	}
	var (
		o   Order
		err error
	)
	if c.OrderID != "" {
		o, err = s.repo.Get(ctx, c.OrderID)
	} else {
		o, err = s.repo.GetByReference(ctx, c.Reference)
	}
	if err != nil {
		return Order{}, err
	}
	if !o.HasReference(c.Reference) {
		return Order{}, apperr.PaymentIntentMismatch("payment reference does not belong to this order")
	}
	return o, nil
}

// ConfirmPayment moves a pending order to paid. Repeated confirmations with
// the same reference are no-ops; only the call that performs the transition
// notifies.
func (s *Service) ConfirmPayment(ctx context.Context, c Confirmation) (Order, error) {
	o, err := s.resolve(ctx, c)
	if err != nil {
		return Order{}, err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		switch o.Status {
		case StatusPaid:
			return o, nil
		case StatusCanceled:
			return Order{}, apperr.InvalidTransition(string(o.Status), string(StatusPaid))
		}

		at := s.now()
		won, err := s.repo.MarkPaid(ctx, o.ID, c.Reference, at)
		if err != nil {
			return Order{}, err
		}
		if won {
			o.Status = StatusPaid
			o.PaidAt = &at
			s.notify("paid", func() error { return s.notifier.OrderPaid(ctx, o) })
			return o, nil
		}

		if o, err = s.resolve(ctx, Confirmation{OrderID: o.ID, Reference: c.Reference}); err != nil {
			return Order{}, err
		}
	}
	return Order{}, apperr.Internal("order state kept changing during confirmation", nil)
}

// FailPayment cancels the order a failed reference belongs to.
func (s *Service) FailPayment(ctx context.Context, c Confirmation) (Order, error) {
	o, err := s.resolve(ctx, c)
	if err != nil {
		return Order{}, err
	}
	return s.cancel(ctx, o, "")
}
