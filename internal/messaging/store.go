package messaging

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/db"
)

type Store interface {
	// Create fills ID and CreatedAt.
	Create(ctx context.Context, m *Message) error
	Get(ctx context.Context, id string) (Message, error)
	// ListForListing returns the thread oldest first.
	ListForListing(ctx context.Context, listingID string, limit, offset int) ([]Message, error)
	// ListForAccount returns messages sent or received by the account, newest first.
	ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]Message, error)
	// MarkRead is allowed for the recipient only.
	MarkRead(ctx context.Context, id, accountID string) (Message, error)
	UnreadCount(ctx context.Context, accountID string) (int64, error)
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const messageColumns = `id::text, listing_id::text, sender_id, COALESCE(recipient_id, ''), parent_id::text, content, created_at, read_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ListingID, &m.SenderID, &m.RecipientID, &m.ParentID, &m.Content, &m.CreatedAt, &m.ReadAt)
	return m, err
}

func (s *PgStore) Create(ctx context.Context, m *Message) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (listing_id, sender_id, recipient_id, parent_id, content)
		VALUES ($1::uuid, $2, $3, $4::uuid, $5)
		RETURNING id::text, created_at`,
		m.ListingID, m.SenderID, m.RecipientID, m.ParentID, m.Content,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.NotFound("listing", err)
		}
		return apperr.Internal("failed to send message", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id string) (Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id::text = $1`, id))
	if db.IsNoRows(err) {
		return Message{}, apperr.NotFound("message", err)
	}
	if err != nil {
		return Message{}, apperr.Internal("failed to fetch message", err)
	}
	return m, nil
}

func (s *PgStore) list(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal("failed to list messages", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, apperr.Internal("failed to parse record", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("failed to list messages", err)
	}
	return msgs, nil
}

func (s *PgStore) ListForListing(ctx context.Context, listingID string, limit, offset int) ([]Message, error) {
	return s.list(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE listing_id::text = $1
		ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`, listingID, limit, offset)
}

func (s *PgStore) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]Message, error) {
	return s.list(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
}

func (s *PgStore) MarkRead(ctx context.Context, id, accountID string) (Message, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if m.RecipientID != accountID {
		return Message{}, apperr.Forbidden("only the recipient can mark a message read")
	}
	if m.ReadAt != nil {
		return m, nil
	}

	var readAt time.Time
	err = s.pool.QueryRow(ctx, `
		UPDATE messages SET read_at = COALESCE(read_at, NOW())
		WHERE id::text = $1 AND recipient_id = $2 RETURNING read_at`, id, accountID,
	).Scan(&readAt)
	if err != nil {
		return Message{}, apperr.Internal("failed to mark read", err)
	}
	m.ReadAt = &readAt
	return m, nil
}

func (s *PgStore) UnreadCount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read_at IS NULL`, accountID,
	).Scan(&count)
	if err != nil {
		return 0, apperr.Internal("failed to compute unread count", err)
	}
	return count, nil
}
