package orders

import (
	"context"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
)

// Cancel lets either party withdraw a pending order.
func (s *Service) Cancel(ctx context.Context, acc identity.Account, orderID string) (Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !o.IsParty(acc.ID) {
		return Order{}, apperr.Forbidden("only the buyer or seller can cancel this order")
	}
	return s.cancel(ctx, o, acc.ID)
}

// cancel applies pending -> canceled. actorID is empty when the provider
// reported the failure.
func (s *Service) cancel(ctx context.Context, o Order, actorID string) (Order, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		switch o.Status {
		case StatusCanceled:
			return o, nil
		case StatusPaid:
			return Order{}, apperr.InvalidTransition(string(o.Status), string(StatusCanceled))
		}

		won, err := s.repo.MarkCanceled(ctx, o.ID)
		if err != nil {
			return Order{}, err
		}
		if won {
			o.Status = StatusCanceled
			s.notify("canceled", func() error { return s.notifier.OrderCanceled(ctx, o, actorID) })
			return o, nil
		}
		if o, err = s.repo.Get(ctx, o.ID); err != nil {
			return Order{}, err
		}
	}
	return Order{}, apperr.Internal("order state kept changing during cancellation", nil)
}
