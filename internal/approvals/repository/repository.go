package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tripdesk_backend/internal/audit"
	"tripdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Approval request statuses. A request is created pending and reaches a
// terminal status exactly once.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

const requestNotFoundMsg = "approval request not found"

// Request is the database model for an approval request. Payload holds the
// proposed change captured at request time; resolution re-applies it verbatim.
type Request struct {
	ID           uuid.UUID       `db:"id"`
	AgencyID     uuid.UUID       `db:"agency_id"`
	RequestedBy  uuid.UUID       `db:"requested_by"`
	ActionType   string          `db:"action_type"`
	EntityType   string          `db:"entity_type"`
	EntityID     uuid.UUID       `db:"entity_id"`
	Payload      json.RawMessage `db:"payload"`
	Reason       *string         `db:"reason"`
	Status       string          `db:"status"`
	ResolvedBy   *uuid.UUID      `db:"resolved_by"`
	ResolvedAt   *time.Time      `db:"resolved_at"`
	ResponseNote *string         `db:"response_note"`
	CreatedAt    time.Time       `db:"created_at"`
}

// CreateParams captures a restricted action for later approval.
type CreateParams struct {
	AgencyID    uuid.UUID
	RequestedBy uuid.UUID
	ActionType  string
	EntityType  string
	EntityID    uuid.UUID
	Payload     any
	Reason      *string
}

// ResolveParams marks a pending request terminal.
type ResolveParams struct {
	AgencyID     uuid.UUID
	RequestID    uuid.UUID
	ResolvedBy   uuid.UUID
	Decision     string // StatusApproved or StatusDenied
	ResponseNote *string
}

// ApplyFunc re-applies the captured payload inside the resolution
// transaction. resolvedBy is the approving admin, recorded as the actor of
// the re-applied change.
type ApplyFunc func(ctx context.Context, tx audit.DBTX, req Request, resolvedBy uuid.UUID) error

// Repository provides database operations for approval requests.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates an approvals repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, agency_id, requested_by, action_type, entity_type, entity_id,
	payload, reason, status, resolved_by, resolved_at, response_note, created_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.AgencyID, &req.RequestedBy, &req.ActionType, &req.EntityType, &req.EntityID,
		&req.Payload, &req.Reason, &req.Status, &req.ResolvedBy, &req.ResolvedAt, &req.ResponseNote,
		&req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, apperr.NotFound(requestNotFoundMsg)
	}
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// CreateOrGetPending inserts a pending request, or returns the existing
// pending request for the same (agency, entity, action). The partial unique
// index approval_requests_pending_uniq resolves the check-then-insert race in
// the store: two concurrent requesters can never both insert.
func (r *Repository) CreateOrGetPending(ctx context.Context, p CreateParams) (Request, bool, error) {
	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return Request{}, false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Request{}, false, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO approval_requests (agency_id, requested_by, action_type, entity_type, entity_id, payload, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (agency_id, entity_type, entity_id, action_type) WHERE status = 'pending'
		DO NOTHING
		RETURNING `+requestColumns,
		p.AgencyID, p.RequestedBy, p.ActionType, p.EntityType, p.EntityID, payloadJSON, p.Reason)

	req, err := scanRequest(row)
	if err == nil {
		// Fresh insert: log creation in the same transaction.
		if _, logErr := audit.New(tx).Log(ctx, audit.LogParams{
			AgencyID:   p.AgencyID,
			ActorID:    p.RequestedBy,
			Action:     audit.ActionApprovalCreated,
			EntityType: p.EntityType,
			EntityID:   p.EntityID,
			After:      map[string]any{"actionType": p.ActionType, "approvalRequestId": req.ID.String()},
		}); logErr != nil {
			return Request{}, false, logErr
		}
		if err := tx.Commit(ctx); err != nil {
			return Request{}, false, err
		}
		return req, true, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return Request{}, false, err
	}

	// Conflict path: hand back the request already pending.
	row = tx.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM approval_requests
		WHERE agency_id = $1 AND entity_type = $2 AND entity_id = $3 AND action_type = $4 AND status = 'pending'`,
		p.AgencyID, p.EntityType, p.EntityID, p.ActionType)
	existing, err := scanRequest(row)
	if err != nil {
		return Request{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Request{}, false, err
	}
	return existing, false, nil
}

// GetByID returns one request scoped to the agency.
func (r *Repository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM approval_requests WHERE agency_id = $1 AND id = $2`,
		agencyID, id)
	return scanRequest(row)
}

// ListPending returns the agency's pending requests, oldest first.
func (r *Repository) ListPending(ctx context.Context, agencyID uuid.UUID) ([]Request, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM approval_requests
		 WHERE agency_id = $1 AND status = 'pending'
		 ORDER BY created_at`,
		agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Resolve flips a pending request to its terminal status and, for approvals,
// runs apply inside the same transaction so the request can never end up
// approved without the captured change (or vice versa).
func (r *Repository) Resolve(ctx context.Context, p ResolveParams, apply ApplyFunc) (Request, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Request{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM approval_requests WHERE agency_id = $1 AND id = $2 FOR UPDATE`,
		p.AgencyID, p.RequestID)
	req, err := scanRequest(row)
	if err != nil {
		return Request{}, err
	}

	if req.Status != StatusPending {
		return Request{}, apperr.Conflict("approval request already resolved").
			WithDetails(map[string]string{"status": req.Status})
	}

	if p.Decision == StatusApproved && apply != nil {
		if err := apply(ctx, tx, req, p.ResolvedBy); err != nil {
			return Request{}, err
		}
	}

	row = tx.QueryRow(ctx, `
		UPDATE approval_requests
		SET status = $3, resolved_by = $4, resolved_at = now(), response_note = $5
		WHERE agency_id = $1 AND id = $2
		RETURNING `+requestColumns,
		p.AgencyID, p.RequestID, p.Decision, p.ResolvedBy, p.ResponseNote)
	resolved, err := scanRequest(row)
	if err != nil {
		return Request{}, err
	}

	if _, err := audit.New(tx).Log(ctx, audit.LogParams{
		AgencyID:   p.AgencyID,
		ActorID:    p.ResolvedBy,
		Action:     audit.ActionApprovalResolved,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Before:     map[string]any{"status": StatusPending},
		After:      map[string]any{"status": p.Decision, "approvalRequestId": req.ID.String()},
	}); err != nil {
		return Request{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, err
	}
	return resolved, nil
}
