package alerts

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/bazaar/internal/apperr"
)

// Notification is an in-app feed item.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Reference *string    `json:"reference"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at"`
}

type Store interface {
	Create(ctx context.Context, n *Notification) error
	// List returns the user's notifications, newest first.
	List(ctx context.Context, userID string, limit, offset int) ([]Notification, error)
	// MarkRead fails with NOT_FOUND for someone else's or an already read notification.
	MarkRead(ctx context.Context, userID, id string) error
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Create(ctx context.Context, n *Notification) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, type, title, body, reference)
		VALUES ($1, $2, $3, $4, $5::uuid)
		RETURNING id::text, created_at`,
		n.UserID, n.Type, n.Title, n.Body, n.Reference,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return apperr.Internal("failed to create notification", err)
	}
	return nil
}

func (s *PgStore) List(ctx context.Context, userID string, limit, offset int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id, type, title, COALESCE(body, ''), reference::text, created_at, read_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("failed to load notifications", err)
	}
	defer rows.Close()

	items := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Reference, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, apperr.Internal("failed to parse notification", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("failed to load notifications", err)
	}
	return items, nil
}

func (s *PgStore) MarkRead(ctx context.Context, userID, id string) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read_at = NOW()
		WHERE id::text = $1 AND user_id = $2 AND read_at IS NULL`, id, userID)
	if err != nil {
		return apperr.Internal("failed to update notification", err)
	}
	if res.RowsAffected() == 0 {
		return apperr.NotFound("unread notification", nil)
	}
	return nil
}
