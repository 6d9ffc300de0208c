// Package audit provides the append-only audit trail: audit_logs for every
// mutation and trip_change_records for field-level diffs. Rows are written
// inside the same transaction as the primary state change and never updated.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Audit log actions.
const (
	ActionStageChange            = "stage_change"
	ActionBookingCascadeCanceled = "booking_cascade_canceled"
	ActionFieldUpdate            = "field_update"
	ActionLockedFieldOverride    = "locked_field_override"
	ActionBookingUpdate          = "booking_update"
	ActionCommissionUpdate       = "commission_update"
	ActionApprovalCreated        = "approval_request_created"
	ActionApprovalResolved       = "approval_request_resolved"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so audit writes can join the
// caller's transaction or run standalone.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Entry is one audit log row.
type Entry struct {
	ID         uuid.UUID
	AgencyID   uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Before     map[string]any
	After      map[string]any
	CreatedAt  time.Time
}

// LogParams captures one mutation for the audit trail. Before/After are typed
// maps marshaled to JSONB at the write boundary.
type LogParams struct {
	AgencyID   uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Before     map[string]any
	After      map[string]any
}

// ChangeRecord is one trip_change_records row: a single field diff.
type ChangeRecord struct {
	ID           uuid.UUID
	TripID       uuid.UUID
	AgencyID     uuid.UUID
	Field        string
	OldValue     *string
	NewValue     *string
	ChangedBy    uuid.UUID
	ChangeReason *string
	CreatedAt    time.Time
}

// ChangeRecordParams captures one field-level diff.
type ChangeRecordParams struct {
	TripID       uuid.UUID
	AgencyID     uuid.UUID
	Field        string
	OldValue     *string
	NewValue     *string
	ChangedBy    uuid.UUID
	ChangeReason *string
}

// Repository writes and reads the audit trail through the given querier.
type Repository struct {
	db DBTX
}

// New creates an audit repository over a pool or an open transaction.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// Log appends one audit entry.
func (r *Repository) Log(ctx context.Context, p LogParams) (uuid.UUID, error) {
	beforeJSON, err := json.Marshal(p.Before)
	if err != nil {
		return uuid.Nil, err
	}
	afterJSON, err := json.Marshal(p.After)
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err = r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (agency_id, actor_id, action, entity_type, entity_id, before, after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.AgencyID, p.ActorID, p.Action, p.EntityType, p.EntityID, beforeJSON, afterJSON).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// RecordChange appends one trip field diff.
func (r *Repository) RecordChange(ctx context.Context, p ChangeRecordParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO trip_change_records (trip_id, agency_id, field, old_value, new_value, changed_by, change_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.TripID, p.AgencyID, p.Field, p.OldValue, p.NewValue, p.ChangedBy, p.ChangeReason).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ListEntityLog returns the audit entries for one entity, newest first.
func (r *Repository) ListEntityLog(ctx context.Context, agencyID uuid.UUID, entityType string, entityID uuid.UUID, limit int) ([]Entry, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, agency_id, actor_id, action, entity_type, entity_id, before, after, created_at
		FROM audit_logs
		WHERE agency_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC
		LIMIT $4
	`, agencyID, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var beforeJSON, afterJSON []byte
		if err := rows.Scan(&e.ID, &e.AgencyID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &beforeJSON, &afterJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(beforeJSON) > 0 {
			if err := json.Unmarshal(beforeJSON, &e.Before); err != nil {
				return nil, err
			}
		}
		if len(afterJSON) > 0 {
			if err := json.Unmarshal(afterJSON, &e.After); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListTripChanges returns the field-level change history of a trip, newest first.
func (r *Repository) ListTripChanges(ctx context.Context, agencyID, tripID uuid.UUID, limit int) ([]ChangeRecord, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, trip_id, agency_id, field, old_value, new_value, changed_by, change_reason, created_at
		FROM trip_change_records
		WHERE agency_id = $1 AND trip_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, agencyID, tripID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ChangeRecord
	for rows.Next() {
		var rec ChangeRecord
		if err := rows.Scan(&rec.ID, &rec.TripID, &rec.AgencyID, &rec.Field, &rec.OldValue, &rec.NewValue, &rec.ChangedBy, &rec.ChangeReason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
