package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a sellable posting. Price is nil when the owner has not set one.
type Listing struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	CategoryID       *string          `json:"category_id,omitempty"`
	Price            *decimal.Decimal `json:"price"`
	Location         string           `json:"location"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Images           []Image          `json:"images"`
	Tags             []Tag            `json:"tags"`
	PaymentMethodIDs []string         `json:"payment_method_ids"`
	OfferingIDs      []string         `json:"offering_ids"`
}

// AcceptsPaymentMethod reports whether id may be used. A listing with no
// restriction accepts every method.
func (l Listing) AcceptsPaymentMethod(id string) bool {
	return len(l.PaymentMethodIDs) == 0 || contains(l.PaymentMethodIDs, id)
}

// Offers reports whether the add-on may be selected for this listing. A
// listing with no restriction offers the whole catalog.
func (l Listing) Offers(offeringID string) bool {
	return len(l.OfferingIDs) == 0 || contains(l.OfferingIDs, offeringID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type Image struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PaymentMethod is immutable reference data.
type PaymentMethod struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Icon *string `json:"icon,omitempty"`
}

// Offering is an add-on with a non-negative extra cost. Immutable reference data.
type Offering struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ExtraCost   decimal.Decimal `json:"extra_cost"`
}

type Favorite struct {
	ListingID string    `json:"listing_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	OwnerID    string
	CategoryID string
	TagID      string
	Query      string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Limit      int
	Offset     int
}

// ListingInput carries create and update fields. Nil pointers leave a field unchanged on update.
type ListingInput struct {
	Title            *string
	Description      *string
	CategoryID       *string
	Price            *decimal.Decimal
	ClearPrice       bool
	Location         *string
	PaymentMethodIDs []string
	OfferingIDs      []string
}
