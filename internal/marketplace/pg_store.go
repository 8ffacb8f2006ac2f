package marketplace

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/db"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const listingColumns = `
	l.id, l.owner_id, l.title, l.description, l.category_id::text, l.price::text, l.location,
	l.created_at, l.updated_at,
	COALESCE((SELECT array_agg(payment_method_id::text) FROM listing_payment_methods WHERE listing_id = l.id), '{}'),
	COALESCE((SELECT array_agg(offering_id::text) FROM listing_offerings WHERE listing_id = l.id), '{}')`

func scanListing(row pgx.Row) (Listing, error) {
	var (
		l     Listing
		price *string
	)
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.CategoryID, &price, &l.Location,
		&l.CreatedAt, &l.UpdatedAt, &l.PaymentMethodIDs, &l.OfferingIDs); err != nil {
		return Listing{}, err
	}
	p, err := db.ParseNullMoney(price)
	if err != nil {
		return Listing{}, err
	}
	l.Price = p
	return l, nil
}

func (s *PgStore) GetByID(ctx context.Context, id string) (Listing, error) {
	l, err := scanListing(s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings l WHERE l.id::text = $1`, id))
	if db.IsNoRows(err) {
		return Listing{}, apperr.NotFound("listing", err)
	}
	if err != nil {
		return Listing{}, apperr.Internal("could not fetch listing", err)
	}
	out := []Listing{l}
	if err := s.loadMedia(ctx, out); err != nil {
		return Listing{}, err
	}
	return out[0], nil
}

func (s *PgStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Listing, error) {
	return s.List(ctx, Filter{OwnerID: ownerID, Limit: limit, Offset: offset})
}

// List builds the WHERE clause positionally, newest first.
func (s *PgStore) List(ctx context.Context, f Filter) ([]Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings l`
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.OwnerID != "" {
		add("l.owner_id = $%d", f.OwnerID)
	}
	if f.CategoryID != "" {
		add("l.category_id::text = $%d", f.CategoryID)
	}
	if f.TagID != "" {
		add("EXISTS (SELECT 1 FROM listing_tags t WHERE t.listing_id = l.id AND t.tag_id::text = $%d)", f.TagID)
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf("(l.title ILIKE $%d OR l.description ILIKE $%d)", len(args), len(args)))
	}
	if f.MinPrice != nil {
		add("l.price >= $%d::numeric", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		add("l.price <= $%d::numeric", f.MaxPrice.String())
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY l.created_at DESC, l.id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal("could not fetch listings", err)
	}
	defer rows.Close()

	listings := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, apperr.Internal("failed to parse listing record", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("could not fetch listings", err)
	}
	if err := s.loadMedia(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// loadMedia fills images and tags for a page of listings with two queries.
func (s *PgStore) loadMedia(ctx context.Context, listings []Listing) error {
	if len(listings) == 0 {
		return nil
	}
	ids := make([]string, len(listings))
	index := make(map[string]int, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
		index[listings[i].ID] = i
		listings[i].Images = []Image{}
		listings[i].Tags = []Tag{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT listing_id::text, id, url, created_at FROM listing_images
		WHERE listing_id::text = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return apperr.Internal("could not fetch listing images", err)
	}
	for rows.Next() {
		var (
			listingID string
			img       Image
		)
		if err := rows.Scan(&listingID, &img.ID, &img.URL, &img.CreatedAt); err != nil {
			rows.Close()
			return apperr.Internal("failed to parse image record", err)
		}
		i := index[listingID]
		listings[i].Images = append(listings[i].Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperr.Internal("could not fetch listing images", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT lt.listing_id::text, t.id, t.name FROM listing_tags lt
		JOIN tags t ON t.id = lt.tag_id
		WHERE lt.listing_id::text = ANY($1) ORDER BY t.name`, ids)
	if err != nil {
		return apperr.Internal("could not fetch listing tags", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			listingID string
			tag       Tag
		)
		if err := rows.Scan(&listingID, &tag.ID, &tag.Name); err != nil {
			return apperr.Internal("failed to parse tag record", err)
		}
		i := index[listingID]
		listings[i].Tags = append(listings[i].Tags, tag)
	}
	return rows.Err()
}

// IsOwner returns NOT_FOUND when the listing does not exist.
func (s *PgStore) IsOwner(ctx context.Context, listingID, accountID string) (bool, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT owner_id FROM listings WHERE id::text = $1`, listingID).Scan(&owner)
	if db.IsNoRows(err) {
		return false, apperr.NotFound("listing", err)
	}
	if err != nil {
		return false, apperr.Internal("could not check listing owner", err)
	}
	return owner == accountID, nil
}

func (s *PgStore) Create(ctx context.Context, ownerID string, in ListingInput) (Listing, error) {
	var id string
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO listings (owner_id, title, description, category_id, price, location)
			VALUES ($1, $2, $3, $4::uuid, $5::numeric, $6)
			RETURNING id::text`,
			ownerID, deref(in.Title), deref(in.Description), in.CategoryID, db.MoneyArg(in.Price), deref(in.Location),
		).Scan(&id)
		if err != nil {
			return err
		}
		return replaceLinks(ctx, tx, id, in)
	})
	if err != nil {
		return Listing{}, mapWriteErr("could not create listing", err)
	}
	return s.GetByID(ctx, id)
}

// Update applies the non-nil fields of in. Link sets are replaced only when provided.
func (s *PgStore) Update(ctx context.Context, id string, in ListingInput) (Listing, error) {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var sets []string
		var args []any
		set := func(col string, v any) {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
		if in.Title != nil {
			set("title", *in.Title)
		}
		if in.Description != nil {
			set("description", *in.Description)
		}
		if in.CategoryID != nil {
			args = append(args, *in.CategoryID)
			sets = append(sets, fmt.Sprintf("category_id = $%d::uuid", len(args)))
		}
		if in.ClearPrice {
			sets = append(sets, "price = NULL")
		} else if in.Price != nil {
			args = append(args, in.Price.String())
			sets = append(sets, fmt.Sprintf("price = $%d::numeric", len(args)))
		}
		if in.Location != nil {
			set("location", *in.Location)
		}
		sets = append(sets, "updated_at = NOW()")
		args = append(args, id)

		tag, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE listings SET %s WHERE id::text = $%d`, strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("listing", nil)
		}
		return replaceLinks(ctx, tx, id, in)
	})
	if err != nil {
		return Listing{}, mapWriteErr("could not update listing", err)
	}
	return s.GetByID(ctx, id)
}

// replaceLinks rewrites accepted payment methods and offered add-ons when the input carries them.
func replaceLinks(ctx context.Context, tx pgx.Tx, listingID string, in ListingInput) error {
	if in.PaymentMethodIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM listing_payment_methods WHERE listing_id::text = $1`, listingID); err != nil {
			return err
		}
		for _, pm := range in.PaymentMethodIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO listing_payment_methods (listing_id, payment_method_id)
				VALUES ($1::uuid, $2::uuid) ON CONFLICT DO NOTHING`, listingID, pm); err != nil {
				return err
			}
		}
	}
	if in.OfferingIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM listing_offerings WHERE listing_id::text = $1`, listingID); err != nil {
			return err
		}
		for _, off := range in.OfferingIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO listing_offerings (listing_id, offering_id)
				VALUES ($1::uuid, $2::uuid) ON CONFLICT DO NOTHING`, listingID, off); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete runs deleteCascade in one transaction.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id::text FROM listings WHERE id::text = $1 FOR UPDATE`, id).Scan(&locked)
		if db.IsNoRows(err) {
			return apperr.NotFound("listing", err)
		}
		if err != nil {
			return err
		}
		for _, step := range deleteCascade {
			if _, err := tx.Exec(ctx, step.sql, id); err != nil {
				return fmt.Errorf("delete %s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return mapWriteErr("could not delete listing", err)
	}
	return nil
}

func (s *PgStore) AddImage(ctx context.Context, listingID, url string) (Image, error) {
	var img Image
	err := s.pool.QueryRow(ctx, `
		INSERT INTO listing_images (listing_id, url) VALUES ($1::uuid, $2)
		RETURNING id::text, url, created_at`, listingID, url).Scan(&img.ID, &img.URL, &img.CreatedAt)
	if err != nil {
		return Image{}, mapWriteErr("could not add image", err)
	}
	return img, nil
}

func (s *PgStore) AttachTag(ctx context.Context, listingID, tagID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO listing_tags (listing_id, tag_id) VALUES ($1::uuid, $2::uuid)
		ON CONFLICT DO NOTHING`, listingID, tagID)
	if err != nil {
		return mapWriteErr("could not attach tag", err)
	}
	return nil
}

func (s *PgStore) DetachTag(ctx context.Context, listingID, tagID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listing_tags WHERE listing_id::text = $1 AND tag_id::text = $2`, listingID, tagID)
	if err != nil {
		return apperr.Internal("could not detach tag", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("listing tag", nil)
	}
	return nil
}

func (s *PgStore) Categories(ctx context.Context) ([]Category, error) {
	return queryNamed(ctx, s.pool, `SELECT id::text, name FROM categories ORDER BY name`, func(id, name string) Category {
		return Category{ID: id, Name: name}
	})
}

func (s *PgStore) CreateCategory(ctx context.Context, name string) (Category, error) {
	var c Category
	err := s.pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id::text, name`, name).Scan(&c.ID, &c.Name)
	if err != nil {
		return Category{}, mapWriteErr("could not create category", err)
	}
	return c, nil
}

func (s *PgStore) Tags(ctx context.Context) ([]Tag, error) {
	return queryNamed(ctx, s.pool, `SELECT id::text, name FROM tags ORDER BY name`, func(id, name string) Tag {
		return Tag{ID: id, Name: name}
	})
}

func (s *PgStore) CreateTag(ctx context.Context, name string) (Tag, error) {
	var t Tag
	err := s.pool.QueryRow(ctx, `INSERT INTO tags (name) VALUES ($1) RETURNING id::text, name`, name).Scan(&t.ID, &t.Name)
	if err != nil {
		return Tag{}, mapWriteErr("could not create tag", err)
	}
	return t, nil
}

func (s *PgStore) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, name, icon FROM payment_methods ORDER BY name`)
	if err != nil {
		return nil, apperr.Internal("could not fetch payment methods", err)
	}
	defer rows.Close()
	out := []PaymentMethod{}
	for rows.Next() {
		var pm PaymentMethod
		if err := rows.Scan(&pm.ID, &pm.Name, &pm.Icon); err != nil {
			return nil, apperr.Internal("failed to parse payment method", err)
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}

func (s *PgStore) PaymentMethodByID(ctx context.Context, id string) (PaymentMethod, error) {
	var pm PaymentMethod
	err := s.pool.QueryRow(ctx, `SELECT id::text, name, icon FROM payment_methods WHERE id::text = $1`, id).
		Scan(&pm.ID, &pm.Name, &pm.Icon)
	if db.IsNoRows(err) {
		return PaymentMethod{}, apperr.NotFound("payment method", err)
	}
	if err != nil {
		return PaymentMethod{}, apperr.Internal("could not fetch payment method", err)
	}
	return pm, nil
}

func (s *PgStore) CreatePaymentMethod(ctx context.Context, name string, icon *string) (PaymentMethod, error) {
	var pm PaymentMethod
	err := s.pool.QueryRow(ctx, `
		INSERT INTO payment_methods (name, icon) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET icon = EXCLUDED.icon
		RETURNING id::text, name, icon`, name, icon).Scan(&pm.ID, &pm.Name, &pm.Icon)
	if err != nil {
		return PaymentMethod{}, mapWriteErr("could not create payment method", err)
	}
	return pm, nil
}

func (s *PgStore) Offerings(ctx context.Context) ([]Offering, error) {
	return s.queryOfferings(ctx, `SELECT id::text, name, description, extra_cost::text FROM offerings ORDER BY name`)
}

// OfferingsByIDs returns the subset of ids that exist. Callers decide what a missing id means.
func (s *PgStore) OfferingsByIDs(ctx context.Context, ids []string) (map[string]Offering, error) {
	out := make(map[string]Offering, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	offs, err := s.queryOfferings(ctx, `
		SELECT id::text, name, description, extra_cost::text FROM offerings
		WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range offs {
		out[o.ID] = o
	}
	return out, nil
}

func (s *PgStore) queryOfferings(ctx context.Context, query string, args ...any) ([]Offering, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal("could not fetch offerings", err)
	}
	defer rows.Close()
	out := []Offering{}
	for rows.Next() {
		var (
			o    Offering
			cost string
		)
		if err := rows.Scan(&o.ID, &o.Name, &o.Description, &cost); err != nil {
			return nil, apperr.Internal("failed to parse offering", err)
		}
		if o.ExtraCost, err = db.ParseMoney(cost); err != nil {
			return nil, apperr.Internal("failed to parse offering cost", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PgStore) CreateOffering(ctx context.Context, o Offering) (Offering, error) {
	var cost string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO offerings (name, description, extra_cost) VALUES ($1, $2, $3::numeric)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, extra_cost = EXCLUDED.extra_cost
		RETURNING id::text, name, description, extra_cost::text`,
		o.Name, o.Description, o.ExtraCost.String(),
	).Scan(&o.ID, &o.Name, &o.Description, &cost)
	if err != nil {
		return Offering{}, mapWriteErr("could not create offering", err)
	}
	if o.ExtraCost, err = db.ParseMoney(cost); err != nil {
		return Offering{}, apperr.Internal("failed to parse offering cost", err)
	}
	return o, nil
}

func (s *PgStore) Favorites(ctx context.Context, accountID string) ([]Favorite, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.listing_id::text, l.title, f.created_at
		FROM favorites f JOIN listings l ON l.id = f.listing_id
		WHERE f.account_id = $1 ORDER BY f.created_at DESC`, accountID)
	if err != nil {
		return nil, apperr.Internal("could not fetch favorites", err)
	}
	defer rows.Close()
	out := []Favorite{}
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ListingID, &f.Title, &f.CreatedAt); err != nil {
			return nil, apperr.Internal("failed to parse favorite", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AddFavorite is idempotent.
func (s *PgStore) AddFavorite(ctx context.Context, accountID, listingID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO favorites (account_id, listing_id) VALUES ($1, $2::uuid)
		ON CONFLICT DO NOTHING`, accountID, listingID)
	if err != nil {
		return mapWriteErr("could not add favorite", err)
	}
	return nil
}

func (s *PgStore) RemoveFavorite(ctx context.Context, accountID, listingID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM favorites WHERE account_id = $1 AND listing_id::text = $2`, accountID, listingID)
	if err != nil {
		return apperr.Internal("could not remove favorite", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("favorite", nil)
	}
	return nil
}

func queryNamed[T any](ctx context.Context, pool *pgxpool.Pool, query string, build func(id, name string) T) ([]T, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, apperr.Internal("query failed", err)
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, apperr.Internal("failed to parse record", err)
		}
		out = append(out, build(id, name))
	}
	return out, rows.Err()
}

// mapWriteErr turns constraint violations into client errors and passes AppErrors through.
func mapWriteErr(msg string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("referenced resource", err)
	case db.IsUniqueViolation(err):
		return apperr.Validation("already exists", err)
	case db.IsInvalidInput(err):
		return apperr.Validation("malformed identifier", err)
	}
	return apperr.Internal(msg, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
