// Package tasks provides the task store. The lifecycle engine generates
// system tasks on stage transitions; user-created tasks live outside this
// service and only share the table.
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Task categories.
const (
	CategoryFollowUp      = "follow_up"
	CategoryInternal      = "internal"
	CategoryPayment       = "payment"
	CategoryClientRequest = "client_request"
)

// Task statuses.
const (
	StatusOpen = "open"
	StatusDone = "done"
)

// Task is one task row.
type Task struct {
	ID                uuid.UUID  `db:"id"`
	AgencyID          uuid.UUID  `db:"agency_id"`
	TripID            *uuid.UUID `db:"trip_id"`
	AssignedUserID    *uuid.UUID `db:"assigned_user_id"`
	Title             string     `db:"title"`
	Description       string     `db:"description"`
	Category          string     `db:"category"`
	DueDate           time.Time  `db:"due_date"`
	IsSystemGenerated bool       `db:"is_system_generated"`
	Status            string     `db:"status"`
	CreatedAt         time.Time  `db:"created_at"`
}

// CreateParams inserts one task.
type CreateParams struct {
	AgencyID          uuid.UUID
	TripID            *uuid.UUID
	AssignedUserID    *uuid.UUID
	Title             string
	Description       string
	Category          string
	DueDate           time.Time
	IsSystemGenerated bool
}

// Repository provides database operations for tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a tasks repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts one task.
func (r *Repository) Create(ctx context.Context, p CreateParams) (Task, error) {
	var t Task
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (agency_id, trip_id, assigned_user_id, title, description, category, due_date, is_system_generated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, agency_id, trip_id, assigned_user_id, title, description, category, due_date, is_system_generated, status, created_at
	`, p.AgencyID, p.TripID, p.AssignedUserID, p.Title, p.Description, p.Category, p.DueDate, p.IsSystemGenerated).Scan(
		&t.ID, &t.AgencyID, &t.TripID, &t.AssignedUserID, &t.Title, &t.Description, &t.Category,
		&t.DueDate, &t.IsSystemGenerated, &t.Status, &t.CreatedAt,
	)
	return t, err
}

// ListByTrip returns the tasks of one trip, soonest due first.
func (r *Repository) ListByTrip(ctx context.Context, agencyID, tripID uuid.UUID) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, agency_id, trip_id, assigned_user_id, title, description, category, due_date, is_system_generated, status, created_at
		FROM tasks
		WHERE agency_id = $1 AND trip_id = $2
		ORDER BY due_date
	`, agencyID, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.AgencyID, &t.TripID, &t.AssignedUserID, &t.Title, &t.Description,
			&t.Category, &t.DueDate, &t.IsSystemGenerated, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// MarkDone completes one task.
func (r *Repository) MarkDone(ctx context.Context, agencyID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status = $3 WHERE agency_id = $1 AND id = $2`,
		agencyID, id, StatusDone)
	return err
}
