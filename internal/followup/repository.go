package followup

import (
	"context"
	"errors"

	"tripdesk_backend/internal/trips/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutstandingCommission is one booking still owing commission.
type OutstandingCommission struct {
	BookingID     uuid.UUID
	SupplierName  string
	ExpectedCents int64
}

// ClientContact is the minimal client read model needed for client emails.
type ClientContact struct {
	Name  string
	Email string
}

// Repository provides the reads the side-effect scheduler needs.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a followup repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetTaskOffsets returns the agency's task offsets, falling back to the
// defaults when no settings row exists.
func (r *Repository) GetTaskOffsets(ctx context.Context, agencyID uuid.UUID) (TaskOffsets, error) {
	var o TaskOffsets
	err := r.pool.QueryRow(ctx, `
		SELECT task_offset_quoted, task_offset_booked, task_offset_final_payment, task_offset_traveling, task_offset_completed
		FROM agency_settings
		WHERE agency_id = $1
	`, agencyID).Scan(&o.Quoted, &o.Booked, &o.FinalPaymentPending, &o.Traveling, &o.Completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultTaskOffsets, nil
	}
	if err != nil {
		return TaskOffsets{}, err
	}
	return o, nil
}

// ListOutstandingCommissions returns the trip's non-canceled bookings still
// expecting a commission payout.
func (r *Repository) ListOutstandingCommissions(ctx context.Context, tripID uuid.UUID) ([]OutstandingCommission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, supplier_name, commission_amount_expected
		FROM bookings
		WHERE trip_id = $1
		  AND status <> $2
		  AND commission_status = $3
		  AND commission_amount_expected > 0
		ORDER BY supplier_name
	`, tripID, domain.BookingStatusCanceled, domain.CommissionExpected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OutstandingCommission
	for rows.Next() {
		var oc OutstandingCommission
		if err := rows.Scan(&oc.BookingID, &oc.SupplierName, &oc.ExpectedCents); err != nil {
			return nil, err
		}
		items = append(items, oc)
	}
	return items, rows.Err()
}

// GetClientContact returns the trip client's name and email address.
func (r *Repository) GetClientContact(ctx context.Context, clientID uuid.UUID) (ClientContact, error) {
	var c ClientContact
	err := r.pool.QueryRow(ctx,
		`SELECT name, email FROM clients WHERE id = $1`,
		clientID).Scan(&c.Name, &c.Email)
	if err != nil {
		return ClientContact{}, err
	}
	return c, nil
}
