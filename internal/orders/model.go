package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// Order is a buyer's commitment to a listing at a frozen total. Listing,
// seller and payment method details are snapshotted so the row outlives them.
type Order struct {
	ID                string          `json:"id"`
	BuyerID           string          `json:"buyer_id"`
	SellerID          string          `json:"seller_id"`
	ListingID         *string         `json:"listing_id"`
	ListingTitle      string          `json:"listing_title"`
	PaymentMethodID   *string         `json:"payment_method_id"`
	PaymentMethodName string          `json:"payment_method_name"`
	Offerings         []OrderOffering `json:"offerings"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Currency          string          `json:"currency"`
	AddressDetails    json.RawMessage `json:"address_details"`
	Status            Status          `json:"status"`
	PaymentIntentID   *string         `json:"payment_intent_id"`
	CreatedAt         time.Time       `json:"created_at"`
	PaidAt            *time.Time      `json:"paid_at"`

	// Returned once by the payment endpoints, never stored.
	ClientSecret string `json:"client_secret,omitempty"`
	CheckoutURL  string `json:"checkout_url,omitempty"`
}

// OrderOffering is the add-on as priced when the order was placed.
type OrderOffering struct {
	OfferingID string          `json:"offering_id"`
	Name       string          `json:"name"`
	ExtraCost  decimal.Decimal `json:"extra_cost"`
}

// HasReference reports whether ref is the order's current payment token.
func (o Order) HasReference(ref string) bool {
	return o.PaymentIntentID != nil && *o.PaymentIntentID == ref
}

// IsParty reports whether accountID is the buyer or the seller.
func (o Order) IsParty(accountID string) bool {
	return accountID == o.BuyerID || accountID == o.SellerID
}
