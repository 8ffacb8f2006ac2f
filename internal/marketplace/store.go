package marketplace

import "context"

// Store is the persistence boundary for listings and their reference data.
// Missing rows surface as apperr NOT_FOUND.
type Store interface {
	GetByID(ctx context.Context, id string) (Listing, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Listing, error)
	List(ctx context.Context, f Filter) ([]Listing, error)
	IsOwner(ctx context.Context, listingID, accountID string) (bool, error)
	Create(ctx context.Context, ownerID string, in ListingInput) (Listing, error)
	Update(ctx context.Context, id string, in ListingInput) (Listing, error)
	Delete(ctx context.Context, id string) error
	AddImage(ctx context.Context, listingID, url string) (Image, error)
	AttachTag(ctx context.Context, listingID, tagID string) error
	DetachTag(ctx context.Context, listingID, tagID string) error

	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (Category, error)
	Tags(ctx context.Context) ([]Tag, error)
	CreateTag(ctx context.Context, name string) (Tag, error)
	PaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	PaymentMethodByID(ctx context.Context, id string) (PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, name string, icon *string) (PaymentMethod, error)
	Offerings(ctx context.Context) ([]Offering, error)
	OfferingsByIDs(ctx context.Context, ids []string) (map[string]Offering, error)
	CreateOffering(ctx context.Context, o Offering) (Offering, error)

	Favorites(ctx context.Context, accountID string) ([]Favorite, error)
	AddFavorite(ctx context.Context, accountID, listingID string) error
	RemoveFavorite(ctx context.Context, accountID, listingID string) error
}

// cascadeStep is one statement run, in order, inside the delete transaction.
type cascadeStep struct {
	name string
	sql  string
}

// deleteCascade is the explicit delete rule for a listing. Orders are detached
// rather than removed: their buyer, seller, title and totals were snapshotted
// at creation so the purchase history survives.
var deleteCascade = []cascadeStep{
	{"images", `DELETE FROM listing_images WHERE listing_id = $1`},
	{"tags", `DELETE FROM listing_tags WHERE listing_id = $1`},
	{"payment methods", `DELETE FROM listing_payment_methods WHERE listing_id = $1`},
	{"offerings", `DELETE FROM listing_offerings WHERE listing_id = $1`},
	{"favorites", `DELETE FROM favorites WHERE listing_id = $1`},
	{"messages", `DELETE FROM messages WHERE listing_id = $1`},
	{"orders", `UPDATE orders SET listing_id = NULL, updated_at = NOW() WHERE listing_id = $1`},
	{"listing", `DELETE FROM listings WHERE id = $1`},
}
