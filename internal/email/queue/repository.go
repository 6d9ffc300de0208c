// Package queue provides the email queue and the per-agency email templates
// that feed it. Rows are enqueued pending by the side-effect scheduler and
// delivered by the background dispatcher.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queue item statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusSent     = "sent"
	StatusFailed   = "failed"
)

// TriggerStageChange is the template trigger fired on confirmed transitions.
const TriggerStageChange = "stage_change"

// Template is one agency email template. TriggerStage is the typed trigger
// configuration: nil matches every stage of the trigger type.
type Template struct {
	ID           uuid.UUID `db:"id"`
	AgencyID     uuid.UUID `db:"agency_id"`
	Name         string    `db:"name"`
	TriggerType  string    `db:"trigger_type"`
	TripType     *string   `db:"trip_type"`
	TriggerStage *string   `db:"trigger_stage"`
	Subject      string    `db:"subject"`
	Body         string    `db:"body"`
	IsActive     bool      `db:"is_active"`
}

// Item is one email queue row.
type Item struct {
	ID          uuid.UUID  `db:"id"`
	AgencyID    uuid.UUID  `db:"agency_id"`
	TripID      *uuid.UUID `db:"trip_id"`
	TemplateID  *uuid.UUID `db:"template_id"`
	ToEmail     string     `db:"to_email"`
	Subject     string     `db:"subject"`
	Body        string     `db:"body"`
	Status      string     `db:"status"`
	ScheduledAt time.Time  `db:"scheduled_at"`
	SentAt      *time.Time `db:"sent_at"`
	LastError   *string    `db:"last_error"`
	Attempts    int        `db:"attempts"`
}

// EnqueueParams inserts one pending email.
type EnqueueParams struct {
	AgencyID    uuid.UUID
	TripID      *uuid.UUID
	TemplateID  *uuid.UUID
	ToEmail     string
	Subject     string
	Body        string
	ScheduledAt time.Time
}

// Repository provides database operations for templates and the queue.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates an email queue repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListStageTemplates returns the agency's active stage-change templates
// matching the trip type and stage. A template with a nil trip type or nil
// trigger stage matches any.
func (r *Repository) ListStageTemplates(ctx context.Context, agencyID uuid.UUID, tripType, stage string) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, agency_id, name, trigger_type, trip_type, trigger_stage, subject, body, is_active
		FROM email_templates
		WHERE agency_id = $1
		  AND trigger_type = $2
		  AND is_active
		  AND (trip_type IS NULL OR trip_type = $3)
		  AND (trigger_stage IS NULL OR trigger_stage = $4)
		ORDER BY name
	`, agencyID, TriggerStageChange, tripType, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.AgencyID, &t.Name, &t.TriggerType, &t.TripType,
			&t.TriggerStage, &t.Subject, &t.Body, &t.IsActive); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// Enqueue inserts one pending queue row.
func (r *Repository) Enqueue(ctx context.Context, p EnqueueParams) (uuid.UUID, error) {
	if p.ScheduledAt.IsZero() {
		p.ScheduledAt = time.Now().UTC()
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO email_queue (agency_id, trip_id, template_id, to_email, subject, body, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, p.AgencyID, p.TripID, p.TemplateID, p.ToEmail, p.Subject, p.Body, StatusPending, p.ScheduledAt).Scan(&id)
	return id, err
}

// ClaimDue atomically claims up to limit due deliverable rows by bumping
// their attempt counter in a single UPDATE, so two concurrent dispatcher runs
// can never claim the same row. Pending and approved rows are deliverable.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]Item, error) {
	if limit < 1 {
		limit = 25
	}

	rows, err := r.pool.Query(ctx, `
		UPDATE email_queue
		SET attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM email_queue
			WHERE status IN ($1, $2) AND scheduled_at <= now() AND attempts = 0
			ORDER BY scheduled_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, agency_id, trip_id, template_id, to_email, subject, body, status, scheduled_at, sent_at, last_error, attempts
	`, StatusPending, StatusApproved, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.AgencyID, &it.TripID, &it.TemplateID, &it.ToEmail,
			&it.Subject, &it.Body, &it.Status, &it.ScheduledAt, &it.SentAt, &it.LastError, &it.Attempts); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkSent flips one row to sent.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_queue SET status = $2, sent_at = now(), last_error = NULL WHERE id = $1`,
		id, StatusSent)
	return err
}

// MarkFailed flips one row to failed and records the error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, sendErr string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_queue SET status = $2, last_error = $3 WHERE id = $1`,
		id, StatusFailed, sendErr)
	return err
}
