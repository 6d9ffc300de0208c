package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/trips/domain"
	"tripdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tripNotFoundMsg = "trip not found"

// Trip is the database model for a trip.
type Trip struct {
	ID                  uuid.UUID  `db:"id"`
	AgencyID            uuid.UUID  `db:"agency_id"`
	ClientID            uuid.UUID  `db:"client_id"`
	AssignedUserID      uuid.UUID  `db:"assigned_user_id"`
	Name                string     `db:"name"`
	Destination         string     `db:"destination"`
	TripType            string     `db:"trip_type"`
	Stage               string     `db:"stage"`
	IsLocked            bool       `db:"is_locked"`
	LockReason          *string    `db:"lock_reason"`
	StartDate           *time.Time `db:"start_date"`
	EndDate             *time.Time `db:"end_date"`
	DepositDueDate      *time.Time `db:"deposit_due_date"`
	FinalPaymentDueDate *time.Time `db:"final_payment_due_date"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// FieldChange is one resolved field mutation, string-encoded the way it is
// persisted in trip_change_records.
type FieldChange struct {
	Field    string
	OldValue *string
	NewValue *string
}

// ApplyStageChangeParams applies a stage transition atomically. The target
// stage is taken as-is: when re-applying an approved request it is the stage
// captured at request time, never re-derived.
type ApplyStageChangeParams struct {
	AgencyID uuid.UUID
	TripID   uuid.UUID
	ActorID  uuid.UUID
	ToStage  string
	Reason   *string
}

// StageChangeResult reports the applied transition.
type StageChangeResult struct {
	Trip             Trip
	PreviousStage    string
	NewStage         string
	CanceledBookings []uuid.UUID
}

// ApplyFieldUpdateParams applies resolved field changes atomically.
type ApplyFieldUpdateParams struct {
	AgencyID    uuid.UUID
	TripID      uuid.UUID
	ActorID     uuid.UUID
	Changes     []FieldChange
	AuditAction string // audit.ActionFieldUpdate or audit.ActionLockedFieldOverride
	Reason      *string
}

// updatableColumns whitelists the trip columns reachable through field updates.
var updatableColumns = map[string]string{
	domain.FieldDestination:         "destination",
	domain.FieldStartDate:           "start_date",
	domain.FieldEndDate:             "end_date",
	domain.FieldDepositDueDate:      "deposit_due_date",
	domain.FieldFinalPaymentDueDate: "final_payment_due_date",
	"name":                          "name",
	"assigned_user_id":              "assigned_user_id",
}

// Repository provides database operations for trips.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a trips repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tripColumns = `id, agency_id, client_id, assigned_user_id, name, destination, trip_type,
	stage, is_locked, lock_reason, start_date, end_date, deposit_due_date, final_payment_due_date,
	created_at, updated_at`

func scanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	err := row.Scan(
		&t.ID, &t.AgencyID, &t.ClientID, &t.AssignedUserID, &t.Name, &t.Destination, &t.TripType,
		&t.Stage, &t.IsLocked, &t.LockReason, &t.StartDate, &t.EndDate, &t.DepositDueDate,
		&t.FinalPaymentDueDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, apperr.NotFound(tripNotFoundMsg)
	}
	if err != nil {
		return Trip{}, err
	}
	return t, nil
}

// GetByID returns one trip scoped to the agency.
func (r *Repository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (Trip, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE agency_id = $1 AND id = $2`,
		agencyID, id)
	return scanTrip(row)
}

// ListPaymentStates returns the booking payment states feeding lock derivation.
func ListPaymentStates(ctx context.Context, q audit.DBTX, tripID uuid.UUID) ([]domain.BookingPaymentState, error) {
	rows, err := q.Query(ctx,
		`SELECT status, payment_status FROM bookings WHERE trip_id = $1`,
		tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []domain.BookingPaymentState
	for rows.Next() {
		var s domain.BookingPaymentState
		if err := rows.Scan(&s.Status, &s.PaymentStatus); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// RecomputeLock re-reads the trip's bookings inside the caller's transaction,
// derives the lock from scratch and overwrites the stored flag. A failure here
// must abort the enclosing transaction: the lock is never allowed to go stale.
func RecomputeLock(ctx context.Context, q audit.DBTX, tripID uuid.UUID, stage string) (domain.LockDecision, error) {
	states, err := ListPaymentStates(ctx, q, tripID)
	if err != nil {
		return domain.LockDecision{}, fmt.Errorf("read booking payment states: %w", err)
	}

	decision := domain.ComputeLock(stage, states)

	_, err = q.Exec(ctx,
		`UPDATE trips SET is_locked = $2, lock_reason = $3, updated_at = now() WHERE id = $1`,
		tripID, decision.Locked, decision.Reason)
	if err != nil {
		return domain.LockDecision{}, fmt.Errorf("persist lock decision: %w", err)
	}
	return decision, nil
}

// ApplyStageChange performs the full stage transition transaction: stage
// write, lock recompute, audit entry, change record, and the booking cascade
// when the trip is canceled. Everything commits or rolls back together.
func (r *Repository) ApplyStageChange(ctx context.Context, p ApplyStageChangeParams) (StageChangeResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return StageChangeResult{}, err
	}
	defer tx.Rollback(ctx)

	result, err := ApplyStageChangeTx(ctx, tx, p)
	if err != nil {
		return StageChangeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return StageChangeResult{}, err
	}
	return result, nil
}

// ApplyStageChangeTx is the transaction body of ApplyStageChange. It also runs
// inside the approval-resolution transaction when an approved request
// re-applies its captured target stage.
func ApplyStageChangeTx(ctx context.Context, tx audit.DBTX, p ApplyStageChangeParams) (StageChangeResult, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE agency_id = $1 AND id = $2 FOR UPDATE`,
		p.AgencyID, p.TripID)
	trip, err := scanTrip(row)
	if err != nil {
		return StageChangeResult{}, err
	}

	previousStage := trip.Stage

	_, err = tx.Exec(ctx,
		`UPDATE trips SET stage = $2, updated_at = now() WHERE id = $1`,
		p.TripID, p.ToStage)
	if err != nil {
		return StageChangeResult{}, err
	}

	auditRepo := audit.New(tx)

	result := StageChangeResult{PreviousStage: previousStage, NewStage: p.ToStage}

	// Cancel cascade runs before the lock recompute so the recompute sees the
	// canceled bookings.
	if p.ToStage == domain.StageCanceled {
		canceled, err := cascadeCancelBookings(ctx, tx, auditRepo, p)
		if err != nil {
			return StageChangeResult{}, err
		}
		result.CanceledBookings = canceled
	}

	if _, err := RecomputeLock(ctx, tx, p.TripID, p.ToStage); err != nil {
		return StageChangeResult{}, err
	}

	if _, err := auditRepo.Log(ctx, audit.LogParams{
		AgencyID:   p.AgencyID,
		ActorID:    p.ActorID,
		Action:     audit.ActionStageChange,
		EntityType: "trip",
		EntityID:   p.TripID,
		Before:     map[string]any{"stage": previousStage},
		After:      map[string]any{"stage": p.ToStage},
	}); err != nil {
		return StageChangeResult{}, err
	}

	if _, err := auditRepo.RecordChange(ctx, audit.ChangeRecordParams{
		TripID:       p.TripID,
		AgencyID:     p.AgencyID,
		Field:        "stage",
		OldValue:     &previousStage,
		NewValue:     &p.ToStage,
		ChangedBy:    p.ActorID,
		ChangeReason: p.Reason,
	}); err != nil {
		return StageChangeResult{}, err
	}

	row = tx.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE id = $1`, p.TripID)
	result.Trip, err = scanTrip(row)
	if err != nil {
		return StageChangeResult{}, err
	}
	return result, nil
}

// cascadeCancelBookings cancels every non-canceled booking of the trip and
// zeroes its expected commission. Each cascade is logged as its own entry.
func cascadeCancelBookings(ctx context.Context, tx audit.DBTX, auditRepo *audit.Repository, p ApplyStageChangeParams) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, status FROM bookings WHERE trip_id = $1 AND status <> $2 FOR UPDATE`,
		p.TripID, domain.BookingStatusCanceled)
	if err != nil {
		return nil, err
	}

	type target struct {
		id     uuid.UUID
		status string
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.status); err != nil {
			rows.Close()
			return nil, err
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	canceled := make([]uuid.UUID, 0, len(targets))
	for _, t := range targets {
		_, err := tx.Exec(ctx,
			`UPDATE bookings SET status = $2, commission_amount_expected = 0, updated_at = now() WHERE id = $1`,
			t.id, domain.BookingStatusCanceled)
		if err != nil {
			return nil, err
		}

		if _, err := auditRepo.Log(ctx, audit.LogParams{
			AgencyID:   p.AgencyID,
			ActorID:    p.ActorID,
			Action:     audit.ActionBookingCascadeCanceled,
			EntityType: "booking",
			EntityID:   t.id,
			Before:     map[string]any{"status": t.status},
			After:      map[string]any{"status": domain.BookingStatusCanceled},
		}); err != nil {
			return nil, err
		}
		canceled = append(canceled, t.id)
	}
	return canceled, nil
}

// ApplyFieldUpdate writes the resolved field changes, one change record per
// field plus a single audit entry, in one transaction.
func (r *Repository) ApplyFieldUpdate(ctx context.Context, p ApplyFieldUpdateParams) (Trip, error) {
	if len(p.Changes) == 0 {
		return r.GetByID(ctx, p.AgencyID, p.TripID)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Trip{}, err
	}
	defer tx.Rollback(ctx)

	updated, err := ApplyFieldUpdateTx(ctx, tx, p)
	if err != nil {
		return Trip{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Trip{}, err
	}
	return updated, nil
}

// ApplyFieldUpdateTx is the transaction body of ApplyFieldUpdate, shared with
// the approval-resolution path.
func ApplyFieldUpdateTx(ctx context.Context, tx audit.DBTX, p ApplyFieldUpdateParams) (Trip, error) {
	// Row lock only; the service already resolved old values into p.Changes.
	row := tx.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE agency_id = $1 AND id = $2 FOR UPDATE`,
		p.AgencyID, p.TripID)
	if _, err := scanTrip(row); err != nil {
		return Trip{}, err
	}

	before := make(map[string]any, len(p.Changes))
	after := make(map[string]any, len(p.Changes))

	auditRepo := audit.New(tx)
	for _, change := range p.Changes {
		column, ok := updatableColumns[change.Field]
		if !ok {
			return Trip{}, apperr.Validation("unknown trip field: " + change.Field)
		}

		_, err := tx.Exec(ctx,
			`UPDATE trips SET `+column+` = $2, updated_at = now() WHERE id = $1`,
			p.TripID, change.NewValue)
		if err != nil {
			return Trip{}, err
		}

		if _, err := auditRepo.RecordChange(ctx, audit.ChangeRecordParams{
			TripID:       p.TripID,
			AgencyID:     p.AgencyID,
			Field:        change.Field,
			OldValue:     change.OldValue,
			NewValue:     change.NewValue,
			ChangedBy:    p.ActorID,
			ChangeReason: p.Reason,
		}); err != nil {
			return Trip{}, err
		}

		before[change.Field] = derefOrNil(change.OldValue)
		after[change.Field] = derefOrNil(change.NewValue)
	}

	if _, err := auditRepo.Log(ctx, audit.LogParams{
		AgencyID:   p.AgencyID,
		ActorID:    p.ActorID,
		Action:     p.AuditAction,
		EntityType: "trip",
		EntityID:   p.TripID,
		Before:     before,
		After:      after,
	}); err != nil {
		return Trip{}, err
	}

	row = tx.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, p.TripID)
	return scanTrip(row)
}

func derefOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// UpcomingDeadline is a payment date coming due on an active trip.
type UpcomingDeadline struct {
	TripID         uuid.UUID
	AgencyID       uuid.UUID
	AssignedUserID uuid.UUID
	TripName       string
	DeadlineType   string // "deposit" or "final_payment"
	DueDate        time.Time
}

// ListUpcomingDeadlines returns deposits due on booked trips and final
// payments due on trips awaiting final payment, with a due date on or before
// the cutoff. Trips past the payment stages drop out of the result naturally.
func (r *Repository) ListUpcomingDeadlines(ctx context.Context, before time.Time) ([]UpcomingDeadline, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, agency_id, assigned_user_id, name, 'deposit', deposit_due_date
		FROM trips
		WHERE stage = $1 AND deposit_due_date IS NOT NULL AND deposit_due_date <= $3
		UNION ALL
		SELECT id, agency_id, assigned_user_id, name, 'final_payment', final_payment_due_date
		FROM trips
		WHERE stage = $2 AND final_payment_due_date IS NOT NULL AND final_payment_due_date <= $3
		ORDER BY 6`,
		domain.StageBooked, domain.StageFinalPaymentPending, before)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list upcoming deadlines", err)
	}
	defer rows.Close()

	var out []UpcomingDeadline
	for rows.Next() {
		var d UpcomingDeadline
		if err := rows.Scan(&d.TripID, &d.AgencyID, &d.AssignedUserID, &d.TripName, &d.DeadlineType, &d.DueDate); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to scan upcoming deadline", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
