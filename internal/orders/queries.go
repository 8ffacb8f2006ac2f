package orders

import (
	"context"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/marketplace"
)

func (s *Service) Get(ctx context.Context, acc identity.Account, orderID string) (Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !o.IsParty(acc.ID) {
		return Order{}, apperr.Forbidden("not your order")
	}
	return o, nil
}

// ListForBuyer returns the caller's purchases, newest first.
func (s *Service) ListForBuyer(ctx context.Context, acc identity.Account, limit, offset int) ([]Order, error) {
	return s.repo.ListByBuyer(ctx, acc.ID, limit, offset)
}

// ListSales returns orders placed on the caller's listings, newest first.
func (s *Service) ListSales(ctx context.Context, acc identity.Account, limit, offset int) ([]Order, error) {
	return s.repo.ListBySeller(ctx, acc.ID, limit, offset)
}

func (s *Service) ListForListing(ctx context.Context, acc identity.Account, listingID string, limit, offset int) ([]Order, error) {
	if err := marketplace.RequireOwner(ctx, s.listings, listingID, acc.ID); err != nil {
		return nil, err
	}
	return s.repo.ListByListing(ctx, listingID, limit, offset)
}
