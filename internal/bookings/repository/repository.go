package repository

import (
	"context"
	"errors"
	"time"

	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/trips/domain"
	triprepo "tripdesk_backend/internal/trips/repository"
	"tripdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingNotFoundMsg = "booking not found"

// Booking is the database model for a booking. Amounts are in cents.
// TripStage is joined from the parent trip for gating checks.
type Booking struct {
	ID                       uuid.UUID  `db:"id"`
	TripID                   uuid.UUID  `db:"trip_id"`
	AgencyID                 uuid.UUID  `db:"agency_id"`
	SupplierName             string     `db:"supplier_name"`
	Status                   string     `db:"status"`
	PaymentStatus            string     `db:"payment_status"`
	CommissionStatus         string     `db:"commission_status"`
	CommissionAmountExpected int64      `db:"commission_amount_expected"`
	CommissionAmountReceived *int64     `db:"commission_amount_received"`
	CommissionReceivedDate   *time.Time `db:"commission_received_date"`
	PaymentReference         *string    `db:"payment_reference"`
	VarianceNote             *string    `db:"variance_note"`
	CreatedAt                time.Time  `db:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"`

	TripStage string `db:"trip_stage"`
}

// ApplyUpdateParams writes booking status and detail changes. Nil fields are
// untouched.
type ApplyUpdateParams struct {
	AgencyID  uuid.UUID
	BookingID uuid.UUID
	ActorID   uuid.UUID

	SupplierName  *string
	Status        *string
	PaymentStatus *string
}

// ApplyCommissionParams writes commission tracking changes. Nil fields are
// untouched.
type ApplyCommissionParams struct {
	AgencyID  uuid.UUID
	BookingID uuid.UUID
	ActorID   uuid.UUID

	Status           *string
	AmountReceived   *int64
	ReceivedDate     *time.Time
	PaymentReference *string
	VarianceNote     *string
}

// Repository provides database operations for bookings.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a bookings repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bookingColumns = `b.id, b.trip_id, b.agency_id, b.supplier_name, b.status, b.payment_status,
	b.commission_status, b.commission_amount_expected, b.commission_amount_received,
	b.commission_received_date, b.payment_reference, b.variance_note, b.created_at, b.updated_at,
	t.stage`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.TripID, &b.AgencyID, &b.SupplierName, &b.Status, &b.PaymentStatus,
		&b.CommissionStatus, &b.CommissionAmountExpected, &b.CommissionAmountReceived,
		&b.CommissionReceivedDate, &b.PaymentReference, &b.VarianceNote, &b.CreatedAt, &b.UpdatedAt,
		&b.TripStage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, apperr.NotFound(bookingNotFoundMsg)
	}
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

const selectBooking = `SELECT ` + bookingColumns + `
	FROM bookings b JOIN trips t ON t.id = b.trip_id
	WHERE b.agency_id = $1 AND b.id = $2`

// GetByID returns one booking scoped to the agency, with the parent trip's stage.
func (r *Repository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, selectBooking, agencyID, id))
}

// ListByTrip returns the trip's bookings, oldest first.
func (r *Repository) ListByTrip(ctx context.Context, agencyID, tripID uuid.UUID) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+`
		FROM bookings b JOIN trips t ON t.id = b.trip_id
		WHERE b.agency_id = $1 AND b.trip_id = $2
		ORDER BY b.created_at`, agencyID, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ApplyUpdate runs ApplyUpdateTx in its own transaction.
func (r *Repository) ApplyUpdate(ctx context.Context, p ApplyUpdateParams) (Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Booking{}, err
	}
	defer tx.Rollback(ctx)

	updated, err := ApplyUpdateTx(ctx, tx, p)
	if err != nil {
		return Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}
	return updated, nil
}

// ApplyUpdateTx writes the booking changes, audit-logs them, and recomputes
// the parent trip's lock. Canceling a booking zeroes its expected commission.
// Shared with the approval-resolution path.
func ApplyUpdateTx(ctx context.Context, tx audit.DBTX, p ApplyUpdateParams) (Booking, error) {
	booking, err := lockBooking(ctx, tx, p.AgencyID, p.BookingID)
	if err != nil {
		return Booking{}, err
	}

	before := map[string]any{}
	after := map[string]any{}

	if p.SupplierName != nil && *p.SupplierName != booking.SupplierName {
		before["supplierName"] = booking.SupplierName
		after["supplierName"] = *p.SupplierName
		if _, err := tx.Exec(ctx,
			`UPDATE bookings SET supplier_name = $2, updated_at = now() WHERE id = $1`,
			p.BookingID, *p.SupplierName); err != nil {
			return Booking{}, err
		}
	}

	if p.Status != nil && *p.Status != booking.Status {
		before["status"] = booking.Status
		after["status"] = *p.Status
		if _, err := tx.Exec(ctx,
			`UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`,
			p.BookingID, *p.Status); err != nil {
			return Booking{}, err
		}

		// A canceled booking leaves the outstanding commission totals.
		if *p.Status == domain.BookingStatusCanceled {
			before["commissionAmountExpected"] = booking.CommissionAmountExpected
			after["commissionAmountExpected"] = 0
			if _, err := tx.Exec(ctx,
				`UPDATE bookings SET commission_amount_expected = 0, updated_at = now() WHERE id = $1`,
				p.BookingID); err != nil {
				return Booking{}, err
			}
		}
	}

	if p.PaymentStatus != nil && *p.PaymentStatus != booking.PaymentStatus {
		before["paymentStatus"] = booking.PaymentStatus
		after["paymentStatus"] = *p.PaymentStatus
		if _, err := tx.Exec(ctx,
			`UPDATE bookings SET payment_status = $2, updated_at = now() WHERE id = $1`,
			p.BookingID, *p.PaymentStatus); err != nil {
			return Booking{}, err
		}
	}

	if len(after) == 0 {
		return booking, nil
	}

	// Status and payment writes both feed lock derivation, so the lock is
	// recomputed inside this transaction whenever anything changed.
	if _, err := triprepo.RecomputeLock(ctx, tx, booking.TripID, booking.TripStage); err != nil {
		return Booking{}, err
	}

	if _, err := audit.New(tx).Log(ctx, audit.LogParams{
		AgencyID:   p.AgencyID,
		ActorID:    p.ActorID,
		Action:     audit.ActionBookingUpdate,
		EntityType: "booking",
		EntityID:   p.BookingID,
		Before:     before,
		After:      after,
	}); err != nil {
		return Booking{}, err
	}

	return scanBooking(tx.QueryRow(ctx, selectBooking, p.AgencyID, p.BookingID))
}

// ApplyCommission runs ApplyCommissionTx in its own transaction.
func (r *Repository) ApplyCommission(ctx context.Context, p ApplyCommissionParams) (Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Booking{}, err
	}
	defer tx.Rollback(ctx)

	updated, err := ApplyCommissionTx(ctx, tx, p)
	if err != nil {
		return Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}
	return updated, nil
}

// ApplyCommissionTx writes commission tracking changes and audit-logs them.
// The expected amount is never touched here; variance surfaces through the
// received amount and variance note only. Shared with the approval-resolution
// path.
func ApplyCommissionTx(ctx context.Context, tx audit.DBTX, p ApplyCommissionParams) (Booking, error) {
	booking, err := lockBooking(ctx, tx, p.AgencyID, p.BookingID)
	if err != nil {
		return Booking{}, err
	}

	before := map[string]any{}
	after := map[string]any{}

	set := func(field string, oldVal, newVal any, column string, value any) error {
		before[field] = oldVal
		after[field] = newVal
		_, err := tx.Exec(ctx,
			`UPDATE bookings SET `+column+` = $2, updated_at = now() WHERE id = $1`,
			p.BookingID, value)
		return err
	}

	if p.Status != nil && *p.Status != booking.CommissionStatus {
		if err := set("commissionStatus", booking.CommissionStatus, *p.Status, "commission_status", *p.Status); err != nil {
			return Booking{}, err
		}
	}
	if p.AmountReceived != nil {
		if err := set("commissionAmountReceived", booking.CommissionAmountReceived, *p.AmountReceived, "commission_amount_received", *p.AmountReceived); err != nil {
			return Booking{}, err
		}
	}
	if p.ReceivedDate != nil {
		if err := set("commissionReceivedDate", booking.CommissionReceivedDate, *p.ReceivedDate, "commission_received_date", *p.ReceivedDate); err != nil {
			return Booking{}, err
		}
	}
	if p.PaymentReference != nil {
		if err := set("paymentReference", booking.PaymentReference, *p.PaymentReference, "payment_reference", *p.PaymentReference); err != nil {
			return Booking{}, err
		}
	}
	if p.VarianceNote != nil {
		if err := set("varianceNote", booking.VarianceNote, *p.VarianceNote, "variance_note", *p.VarianceNote); err != nil {
			return Booking{}, err
		}
	}

	if len(after) == 0 {
		return booking, nil
	}

	if _, err := audit.New(tx).Log(ctx, audit.LogParams{
		AgencyID:   p.AgencyID,
		ActorID:    p.ActorID,
		Action:     audit.ActionCommissionUpdate,
		EntityType: "booking",
		EntityID:   p.BookingID,
		Before:     before,
		After:      after,
	}); err != nil {
		return Booking{}, err
	}

	return scanBooking(tx.QueryRow(ctx, selectBooking, p.AgencyID, p.BookingID))
}

func lockBooking(ctx context.Context, tx audit.DBTX, agencyID, bookingID uuid.UUID) (Booking, error) {
	return scanBooking(tx.QueryRow(ctx, selectBooking+` FOR UPDATE OF b`, agencyID, bookingID))
}
