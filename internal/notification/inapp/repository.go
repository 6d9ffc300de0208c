package inapp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification is one per-user notification row.
type Notification struct {
	ID           uuid.UUID  `db:"id"`
	AgencyID     uuid.UUID  `db:"agency_id"`
	UserID       uuid.UUID  `db:"user_id"`
	Type         string     `db:"type"`
	Title        string     `db:"title"`
	Message      string     `db:"message"`
	EntityType   *string    `db:"entity_type"`
	EntityID     *uuid.UUID `db:"entity_id"`
	EventKey     string     `db:"event_key"`
	IsRead       bool       `db:"is_read"`
	IsDismissed  bool       `db:"is_dismissed"`
	SnoozedUntil *time.Time `db:"snoozed_until"`
	CreatedAt    time.Time  `db:"created_at"`
}

// CreateParams inserts one notification row for one user.
type CreateParams struct {
	AgencyID   uuid.UUID
	UserID     uuid.UUID
	Type       string
	Title      string
	Message    string
	EntityType *string
	EntityID   *uuid.UUID
	EventKey   string
}

// Repository provides database operations for notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a notifications repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts one notification unless the user already has an active
// (non-dismissed) one with the same event key. The partial unique index
// notifications_active_event_uniq makes the insert a no-op in that case, so
// repeated condition checks never stack duplicate alerts.
// Returns true when a row was inserted.
func (r *Repository) Create(ctx context.Context, p CreateParams) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (agency_id, user_id, type, title, message, entity_type, entity_id, event_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, event_key) WHERE NOT is_dismissed
		DO NOTHING
	`, p.AgencyID, p.UserID, p.Type, p.Title, p.Message, p.EntityType, p.EntityID, p.EventKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// List returns the user's notifications, newest first, excluding dismissed
// ones and ones snoozed into the future.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, agency_id, user_id, type, title, message, entity_type, entity_id, event_key,
		       is_read, is_dismissed, snoozed_until, created_at
		FROM notifications
		WHERE user_id = $1
		  AND NOT is_dismissed
		  AND (snoozed_until IS NULL OR snoozed_until <= now())
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.AgencyID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.EntityType, &n.EntityID, &n.EventKey, &n.IsRead, &n.IsDismissed, &n.SnoozedUntil, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE user_id = $1 AND NOT is_dismissed AND (snoozed_until IS NULL OR snoozed_until <= now())
	`, userID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountUnread returns the number of unread, active notifications.
func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE user_id = $1 AND NOT is_read AND NOT is_dismissed
		  AND (snoozed_until IS NULL OR snoozed_until <= now())
	`, userID).Scan(&count)
	return count, err
}

// MarkRead marks one notification read.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND id = $2`,
		userID, id)
	return err
}

// MarkAllRead marks every notification of the user read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND NOT is_read`,
		userID)
	return err
}

// Dismiss hides the notification permanently. A later occurrence of the same
// event key may then create a fresh row.
func (r *Repository) Dismiss(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_dismissed = true WHERE user_id = $1 AND id = $2`,
		userID, id)
	return err
}

// Snooze hides the notification until the given time.
func (r *Repository) Snooze(ctx context.Context, userID, id uuid.UUID, until time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET snoozed_until = $3 WHERE user_id = $1 AND id = $2`,
		userID, id, until)
	return err
}
