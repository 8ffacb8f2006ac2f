package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bazaar/internal/logger"
)

// Migrate creates the schema idempotently. Order matters: referenced tables first.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	steps := []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"accounts", ensureAccountsTable},
		{"reference data", ensureReferenceTables},
		{"listings", ensureListingTables},
		{"favorites", ensureFavoritesTable},
		{"messages", ensureMessagesTable},
		{"orders", ensureOrdersSchema},
		{"notifications", ensureNotificationsTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx, pool); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	logger.Info("schema ensured")
	return nil
}

// ensureAccountsTable mirrors verified identities so emails can be looked up later.
func ensureAccountsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

func ensureReferenceTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS tags (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS payment_methods (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL UNIQUE,
			icon TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS offerings (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			extra_cost NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (extra_cost >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func ensureListingTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category_id UUID NULL REFERENCES categories(id) ON DELETE SET NULL,
			price NUMERIC(12,2) NULL CHECK (price IS NULL OR price >= 0),
			location TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id);
		CREATE INDEX IF NOT EXISTS idx_listings_created ON listings(created_at DESC);

		CREATE TABLE IF NOT EXISTS listing_images (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			listing_id UUID NOT NULL REFERENCES listings(id),
			url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS listing_tags (
			listing_id UUID NOT NULL REFERENCES listings(id),
			tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (listing_id, tag_id)
		);
		CREATE TABLE IF NOT EXISTS listing_payment_methods (
			listing_id UUID NOT NULL REFERENCES listings(id),
			payment_method_id UUID NOT NULL REFERENCES payment_methods(id) ON DELETE CASCADE,
			PRIMARY KEY (listing_id, payment_method_id)
		);
		CREATE TABLE IF NOT EXISTS listing_offerings (
			listing_id UUID NOT NULL REFERENCES listings(id),
			offering_id UUID NOT NULL REFERENCES offerings(id) ON DELETE CASCADE,
			PRIMARY KEY (listing_id, offering_id)
		);
	`)
	return err
}

func ensureFavoritesTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS favorites (
			account_id TEXT NOT NULL,
			listing_id UUID NOT NULL REFERENCES listings(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (account_id, listing_id)
		)`)
	return err
}

func ensureMessagesTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			listing_id UUID NOT NULL REFERENCES listings(id),
			sender_id TEXT NOT NULL,
			recipient_id TEXT NULL,
			parent_id UUID NULL REFERENCES messages(id) ON DELETE SET NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			read_at TIMESTAMPTZ NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_listing_created ON messages(listing_id, created_at, id);
		CREATE INDEX IF NOT EXISTS idx_messages_recipient_unread ON messages(recipient_id) WHERE read_at IS NULL;
	`)
	return err
}

// ensureOrdersSchema keeps orders independent of the listing row: listing_id is
// nullable and the columns needed for history are snapshotted at creation.
func ensureOrdersSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			buyer_id TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			listing_id UUID NULL REFERENCES listings(id) ON DELETE SET NULL,
			listing_title TEXT NOT NULL,
			payment_method_id UUID NULL REFERENCES payment_methods(id) ON DELETE SET NULL,
			payment_method_name TEXT NOT NULL DEFAULT '',
			total_price NUMERIC(12,2) NOT NULL CHECK (total_price >= 0),
			currency TEXT NOT NULL,
			address_details JSONB NOT NULL DEFAULT '{}'::jsonb,
			status TEXT NOT NULL DEFAULT 'pending',
			payment_intent_id TEXT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			paid_at TIMESTAMPTZ NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders(seller_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_orders_listing ON orders(listing_id);

		CREATE TABLE IF NOT EXISTS order_offerings (
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			offering_id UUID NOT NULL,
			name TEXT NOT NULL,
			extra_cost NUMERIC(12,2) NOT NULL,
			PRIMARY KEY (order_id, offering_id)
		);
	`)
	if err != nil {
		return err
	}

	// Status and paid_at constraints are replaced by name so older databases pick them up.
	_, _ = pool.Exec(ctx, `ALTER TABLE orders DROP CONSTRAINT IF EXISTS orders_status_check`)
	if _, err := pool.Exec(ctx, `
		ALTER TABLE orders
		ADD CONSTRAINT orders_status_check
		CHECK (status IN ('pending', 'paid', 'canceled'))`); err != nil {
		return err
	}
	_, _ = pool.Exec(ctx, `ALTER TABLE orders DROP CONSTRAINT IF EXISTS orders_paid_at_check`)
	_, err = pool.Exec(ctx, `
		ALTER TABLE orders
		ADD CONSTRAINT orders_paid_at_check
		CHECK ((status = 'paid') = (paid_at IS NOT NULL))`)
	return err
}

// ensureNotificationsTable creates the in-app notifications table.
func ensureNotificationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT,
			reference UUID NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			read_at TIMESTAMPTZ NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
	`)
	return err
}
