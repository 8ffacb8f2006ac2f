package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory mirrors verified accounts so other parties' emails can be resolved.
type Directory interface {
	Touch(ctx context.Context, acc Account) error
	Email(ctx context.Context, accountID string) (string, error)
}

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

// Touch upserts the account. A blank email never overwrites a known one.
func (d *PgDirectory) Touch(ctx context.Context, acc Account) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO accounts (id, email) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email = '' THEN accounts.email ELSE EXCLUDED.email END,
		    last_seen_at = NOW()`, acc.ID, acc.Email)
	return err
}

// Email returns "" without error for accounts never seen.
func (d *PgDirectory) Email(ctx context.Context, accountID string) (string, error) {
	var email string
	err := d.pool.QueryRow(ctx, `SELECT email FROM accounts WHERE id = $1`, accountID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return email, err
}
