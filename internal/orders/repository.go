package orders

import (
	"context"
	"time"
)

// Repository persists orders. State-changing methods are compare-and-swap on
// status and report whether this call performed the transition.
type Repository interface {
	// Insert stores the order and its offerings atomically and fills ID and CreatedAt.
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (Order, error)
	GetByReference(ctx context.Context, ref string) (Order, error)
	ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]Order, error)
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]Order, error)
	ListByListing(ctx context.Context, listingID string, limit, offset int) ([]Order, error)

	// AttachReference replaces prev with ref while the order is pending.
	AttachReference(ctx context.Context, id string, prev *string, ref string) (bool, error)
	// MarkPaid moves pending -> paid when the stored reference equals ref.
	MarkPaid(ctx context.Context, id, ref string, at time.Time) (bool, error)
	// MarkCanceled moves pending -> canceled.
	MarkCanceled(ctx context.Context, id string) (bool, error)
}
