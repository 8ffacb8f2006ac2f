package orders

import (
	"context"
	"encoding/json"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/pricing"
)

type CreateInput struct {
	ListingID       string          `json:"listing_id" validate:"required"`
	PaymentMethodID string          `json:"payment_method_id" validate:"required"`
	OfferingIDs     []string        `json:"offering_ids"`
	AddressDetails  json.RawMessage `json:"address_details"`
}

// Create prices the listing and persists a pending order. No provider call is
// made here; the buyer attaches an intent or checkout session afterwards.
func (s *Service) Create(ctx context.Context, buyer identity.Account, in CreateInput) (Order, error) {
	address, err := normalizeAddress(in.AddressDetails)
	if err != nil {
		return Order{}, err
	}

	listing, err := s.listings.GetByID(ctx, in.ListingID)
	if err != nil {
		return Order{}, err
	}
	if listing.OwnerID == buyer.ID {
		return Order{}, apperr.Validation("you cannot order your own listing", nil)
	}

	method, err := s.listings.PaymentMethodByID(ctx, in.PaymentMethodID)
	if err != nil {
		return Order{}, err
	}
	if !listing.AcceptsPaymentMethod(method.ID) {
		return Order{}, apperr.Validation("listing does not accept this payment method", nil)
	}

	catalog, err := s.listings.OfferingsByIDs(ctx, in.OfferingIDs)
	if err != nil {
		return Order{}, err
	}
	selected, err := pricing.Resolve(in.OfferingIDs, catalog)
	if err != nil {
		return Order{}, err
	}
	for _, off := range selected {
		if !listing.Offers(off.ID) {
			return Order{}, apperr.Validation("listing does not offer "+off.Name, nil)
		}
	}

	total, err := pricing.ComputeTotal(listing, selected)
	if err != nil {
		return Order{}, err
	}
	// An order that can never be charged is not worth persisting.
	if _, err := pricing.ToMinorUnits(total, s.currency); err != nil {
		return Order{}, err
	}

	listingID, methodID := listing.ID, method.ID
	o := Order{
		BuyerID:           buyer.ID,
		SellerID:          listing.OwnerID,
		ListingID:         &listingID,
		ListingTitle:      listing.Title,
		PaymentMethodID:   &methodID,
		PaymentMethodName: method.Name,
		Offerings:         make([]OrderOffering, 0, len(selected)),
		TotalPrice:        total,
		Currency:          s.currency,
		AddressDetails:    address,
		Status:            StatusPending,
	}
	for _, off := range selected {
		o.Offerings = append(o.Offerings, OrderOffering{OfferingID: off.ID, Name: off.Name, ExtraCost: off.ExtraCost})
	}

	if err := s.repo.Insert(ctx, &o); err != nil {
		return Order{}, err
	}
	s.notify("created", func() error { return s.notifier.OrderCreated(ctx, o) })
	return o, nil
}

// normalizeAddress accepts a JSON object or nothing at all.
func normalizeAddress(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`), nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperr.Validation("address_details must be an object", err)
	}
	return raw, nil
}
