package repository

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/trips/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeTx serves the transaction bodies from one in-memory booking, routed on
// the statement text the way the database would route on tables.
type fakeTx struct {
	booking Booking

	auditEntries []auditEntry
	lockWrites   []bool
}

type auditEntry struct {
	action string
	before []byte
	after  []byte
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "UPDATE bookings SET supplier_name"):
		f.booking.SupplierName = args[1].(string)
	case strings.Contains(sql, "UPDATE bookings SET status"):
		f.booking.Status = args[1].(string)
	case strings.Contains(sql, "UPDATE bookings SET payment_status"):
		f.booking.PaymentStatus = args[1].(string)
	case strings.Contains(sql, "UPDATE bookings SET commission_amount_expected = 0"):
		f.booking.CommissionAmountExpected = 0
	case strings.Contains(sql, "UPDATE trips SET is_locked"):
		f.lockWrites = append(f.lockWrites, args[1].(bool))
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	// Lock derivation re-reads the trip's bookings inside the transaction.
	if strings.Contains(sql, "status, payment_status") {
		return &fakeRows{rows: [][]any{{f.booking.Status, f.booking.PaymentStatus}}}, nil
	}
	return &fakeRows{}, nil
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if strings.Contains(sql, "INSERT INTO audit_logs") {
		f.auditEntries = append(f.auditEntries, auditEntry{
			action: args[2].(string),
			before: args[5].([]byte),
			after:  args[6].([]byte),
		})
		return &fakeRow{vals: []any{uuid.New()}}
	}

	b := f.booking
	return &fakeRow{vals: []any{
		b.ID, b.TripID, b.AgencyID, b.SupplierName, b.Status, b.PaymentStatus,
		b.CommissionStatus, b.CommissionAmountExpected, b.CommissionAmountReceived,
		b.CommissionReceivedDate, b.PaymentReference, b.VarianceNote, b.CreatedAt, b.UpdatedAt,
		b.TripStage,
	}}
}

type fakeRow struct{ vals []any }

func (r *fakeRow) Scan(dest ...any) error { return scanVals(dest, r.vals) }

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.idx++; return r.idx <= len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error                       { return scanVals(dest, r.rows[r.idx-1]) }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func scanVals(dest []any, vals []any) error {
	for i, d := range dest {
		out := reflect.ValueOf(d).Elem()
		if vals[i] == nil {
			out.Set(reflect.Zero(out.Type()))
			continue
		}
		out.Set(reflect.ValueOf(vals[i]))
	}
	return nil
}

func testFakeTx(status, paymentStatus, tripStage string, expected int64) *fakeTx {
	return &fakeTx{booking: Booking{
		ID:                       uuid.New(),
		TripID:                   uuid.New(),
		AgencyID:                 uuid.New(),
		SupplierName:             "Island Resort",
		Status:                   status,
		PaymentStatus:            paymentStatus,
		CommissionStatus:         domain.CommissionExpected,
		CommissionAmountExpected: expected,
		CreatedAt:                time.Now(),
		UpdatedAt:                time.Now(),
		TripStage:                tripStage,
	}}
}

func ptr[T any](v T) *T { return &v }

func TestApplyUpdateCancelZeroesExpectedCommission(t *testing.T) {
	tx := testFakeTx(domain.BookingStatusBooked, domain.PaymentPaidInFull, domain.StageBooked, 150000)

	updated, err := ApplyUpdateTx(context.Background(), tx, ApplyUpdateParams{
		AgencyID:  tx.booking.AgencyID,
		BookingID: tx.booking.ID,
		ActorID:   uuid.New(),
		Status:    ptr(domain.BookingStatusCanceled),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != domain.BookingStatusCanceled {
		t.Fatalf("expected a canceled booking, got %s", updated.Status)
	}
	if updated.CommissionAmountExpected != 0 {
		t.Fatalf("expected the expected commission zeroed, got %d", updated.CommissionAmountExpected)
	}

	if len(tx.auditEntries) != 1 || tx.auditEntries[0].action != audit.ActionBookingUpdate {
		t.Fatalf("expected exactly one booking_update audit entry, got %v", tx.auditEntries)
	}
	var after map[string]any
	if err := json.Unmarshal(tx.auditEntries[0].after, &after); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after["status"] != domain.BookingStatusCanceled {
		t.Fatalf("expected the audit entry to carry the cancellation, got %v", after)
	}
	if after["commissionAmountExpected"] != float64(0) {
		t.Fatalf("expected the audit entry to carry the zeroed commission, got %v", after)
	}

	// A booking fully paid on a booked trip would have locked it; the in-tx
	// recompute must see the cancellation and leave the trip unlocked.
	if len(tx.lockWrites) != 1 || tx.lockWrites[0] {
		t.Fatalf("expected one lock recompute leaving the trip unlocked, got %v", tx.lockWrites)
	}
}

func TestApplyUpdatePaidInFullLocksTripInSameTransaction(t *testing.T) {
	tx := testFakeTx(domain.BookingStatusBooked, domain.PaymentDepositPaid, domain.StageBooked, 150000)

	updated, err := ApplyUpdateTx(context.Background(), tx, ApplyUpdateParams{
		AgencyID:      tx.booking.AgencyID,
		BookingID:     tx.booking.ID,
		ActorID:       uuid.New(),
		PaymentStatus: ptr(domain.PaymentPaidInFull),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.PaymentStatus != domain.PaymentPaidInFull {
		t.Fatalf("expected the payment status applied, got %s", updated.PaymentStatus)
	}
	if len(tx.lockWrites) != 1 || !tx.lockWrites[0] {
		t.Fatalf("expected the lock recompute to lock the fully paid trip, got %v", tx.lockWrites)
	}
}

func TestApplyUpdateNoChangeSkipsAuditAndLockRecompute(t *testing.T) {
	tx := testFakeTx(domain.BookingStatusBooked, domain.PaymentDepositPaid, domain.StageBooked, 150000)

	_, err := ApplyUpdateTx(context.Background(), tx, ApplyUpdateParams{
		AgencyID:  tx.booking.AgencyID,
		BookingID: tx.booking.ID,
		ActorID:   uuid.New(),
		Status:    ptr(domain.BookingStatusBooked),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tx.auditEntries) != 0 {
		t.Fatalf("expected no audit entry for a no-op update, got %v", tx.auditEntries)
	}
	if len(tx.lockWrites) != 0 {
		t.Fatalf("expected no lock recompute for a no-op update, got %v", tx.lockWrites)
	}
}
