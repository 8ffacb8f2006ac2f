// Package orders owns the order lifecycle: creation at a frozen total,
// payment token attachment, confirmation and cancellation.
package orders

import (
	"context"
	"time"

	"github.com/sudo-init-do/bazaar/internal/logger"
	"github.com/sudo-init-do/bazaar/internal/marketplace"
	"github.com/sudo-init-do/bazaar/internal/payments"
)

// ListingReader is the part of the listing store that orders depend on.
type ListingReader interface {
	GetByID(ctx context.Context, id string) (marketplace.Listing, error)
	IsOwner(ctx context.Context, listingID, accountID string) (bool, error)
	PaymentMethodByID(ctx context.Context, id string) (marketplace.PaymentMethod, error)
	OfferingsByIDs(ctx context.Context, ids []string) (map[string]marketplace.Offering, error)
}

// Notifier is told about lifecycle transitions after they commit. Errors are
// logged by the service and never undo the transition.
type Notifier interface {
	OrderCreated(ctx context.Context, o Order) error
	OrderPaid(ctx context.Context, o Order) error
	OrderCanceled(ctx context.Context, o Order, actorID string) error
}

type Service struct {
	repo     Repository
	listings ListingReader
	gateway  payments.Gateway
	notifier Notifier
	currency string
	now      func() time.Time
}

func New(repo Repository, listings ListingReader, gateway payments.Gateway, notifier Notifier, currency string) *Service {
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		repo:     repo,
		listings: listings,
		gateway:  gateway,
		notifier: notifier,
		currency: currency,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) notify(event string, fn func() error) {
	if s.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn("order %s notification failed: %v", event, err)
	}
}
