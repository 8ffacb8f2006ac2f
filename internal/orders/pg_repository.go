package orders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const orderColumns = `
	id::text, buyer_id, seller_id, listing_id::text, listing_title,
	payment_method_id::text, payment_method_name, total_price::text, currency,
	address_details::text, status, payment_intent_id, created_at, paid_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o       Order
		total   string
		address string
		status  string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ListingID, &o.ListingTitle,
		&o.PaymentMethodID, &o.PaymentMethodName, &total, &o.Currency,
		&address, &status, &o.PaymentIntentID, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		return Order{}, err
	}
	if o.TotalPrice, err = db.ParseMoney(total); err != nil {
		return Order{}, err
	}
	o.AddressDetails = []byte(address)
	o.Status = Status(status)
	return o, nil
}

func (r *PgRepository) Insert(ctx context.Context, o *Order) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (buyer_id, seller_id, listing_id, listing_title, payment_method_id,
				payment_method_name, total_price, currency, address_details, status, payment_intent_id)
			VALUES ($1, $2, $3::uuid, $4, $5::uuid, $6, $7::numeric, $8, $9::jsonb, $10, $11)
			RETURNING id::text, created_at`,
			o.BuyerID, o.SellerID, o.ListingID, o.ListingTitle, o.PaymentMethodID,
			o.PaymentMethodName, o.TotalPrice.String(), o.Currency, string(o.AddressDetails), string(o.Status), o.PaymentIntentID,
		).Scan(&o.ID, &o.CreatedAt)
		if err != nil {
			return err
		}
		for _, off := range o.Offerings {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_offerings (order_id, offering_id, name, extra_cost)
				VALUES ($1::uuid, $2::uuid, $3, $4::numeric)`,
				o.ID, off.OfferingID, off.Name, off.ExtraCost.String()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.NotFound("listing or payment method", err)
		}
		return apperr.Internal("failed to create order", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id string) (Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id::text = $1`, id)
}

func (r *PgRepository) GetByReference(ctx context.Context, ref string) (Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, ref)
}

func (r *PgRepository) getOne(ctx context.Context, query string, arg string) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, query, arg))
	if db.IsNoRows(err) {
		return Order{}, apperr.NotFound("order", err)
	}
	if err != nil {
		return Order{}, apperr.Internal("failed to fetch order", err)
	}
	page := []Order{o}
	if err := r.loadOfferings(ctx, page); err != nil {
		return Order{}, err
	}
	return page[0], nil
}

func (r *PgRepository) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]Order, error) {
	return r.list(ctx, `buyer_id = $1`, buyerID, limit, offset)
}

func (r *PgRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]Order, error) {
	return r.list(ctx, `seller_id = $1`, sellerID, limit, offset)
}

func (r *PgRepository) ListByListing(ctx context.Context, listingID string, limit, offset int) ([]Order, error) {
	return r.list(ctx, `listing_id::text = $1`, listingID, limit, offset)
}

func (r *PgRepository) list(ctx context.Context, where, arg string, limit, offset int) ([]Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where+` ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		arg, limit, offset)
	if err != nil {
		return nil, apperr.Internal("failed to fetch orders", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperr.Internal("failed to parse order record", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("failed to fetch orders", err)
	}
	if err := r.loadOfferings(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) loadOfferings(ctx context.Context, page []Order) error {
	if len(page) == 0 {
		return nil
	}
	ids := make([]string, len(page))
	index := make(map[string]int, len(page))
	for i := range page {
		ids[i] = page[i].ID
		index[page[i].ID] = i
		page[i].Offerings = []OrderOffering{}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT order_id::text, offering_id::text, name, extra_cost::text
		FROM order_offerings WHERE order_id::text = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return apperr.Internal("failed to fetch order offerings", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			off     OrderOffering
			cost    string
		)
		if err := rows.Scan(&orderID, &off.OfferingID, &off.Name, &cost); err != nil {
			return apperr.Internal("failed to parse order offering", err)
		}
		if off.ExtraCost, err = db.ParseMoney(cost); err != nil {
			return apperr.Internal("failed to parse order offering", err)
		}
		i := index[orderID]
		page[i].Offerings = append(page[i].Offerings, off)
	}
	return rows.Err()
}

func (r *PgRepository) AttachReference(ctx context.Context, id string, prev *string, ref string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_intent_id = $2, updated_at = NOW()
		WHERE id::text = $1 AND status = 'pending' AND payment_intent_id IS NOT DISTINCT FROM $3`,
		id, ref, prev)
	if err != nil {
		return false, apperr.Internal("failed to store payment reference", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) MarkPaid(ctx context.Context, id, ref string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'paid', paid_at = $3, updated_at = NOW()
		WHERE id::text = $1 AND status = 'pending' AND payment_intent_id = $2`,
		id, ref, at)
	if err != nil {
		return false, apperr.Internal("failed to mark order paid", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) MarkCanceled(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'canceled', updated_at = NOW()
		WHERE id::text = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, apperr.Internal("failed to cancel order", err)
	}
	return tag.RowsAffected() == 1, nil
}
