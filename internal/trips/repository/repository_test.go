package repository

import (
	"context"
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

// fakeTx serves the transaction bodies from in-memory state, routed on the
// statement text the way the database would route on tables.
type fakeTx struct {
	trip     Trip
	bookings []fakeBooking

	auditActions []string
	changeFields []string
	lockWrites   []lockWrite
}

type fakeBooking struct {
	id               uuid.UUID
	status           string
	paymentStatus    string
	commissionZeroed bool
}

type lockWrite struct {
	locked bool
	reason *string
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "UPDATE trips SET stage"):
		f.trip.Stage = args[1].(string)
	case strings.Contains(sql, "UPDATE trips SET is_locked"):
		w := lockWrite{locked: args[1].(bool)}
		if r, ok := args[2].(*string); ok {
			w.reason = r
		}
		f.trip.IsLocked = w.locked
		f.lockWrites = append(f.lockWrites, w)
	case strings.Contains(sql, "UPDATE bookings SET status"):
		id := args[0].(uuid.UUID)
		for i := range f.bookings {
			if f.bookings[i].id == id {
				f.bookings[i].status = args[1].(string)
				f.bookings[i].commissionZeroed = true
			}
		}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var rows [][]any
	switch {
	case strings.Contains(sql, "SELECT id, status FROM bookings"):
		for _, b := range f.bookings {
			if b.status != domain.BookingStatusCanceled {
				rows = append(rows, []any{b.id, b.status})
			}
		}
	case strings.Contains(sql, "status, payment_status"):
		for _, b := range f.bookings {
			rows = append(rows, []any{b.status, b.paymentStatus})
		}
	}
	return &fakeRows{rows: rows}, nil
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "INSERT INTO audit_logs"):
		f.auditActions = append(f.auditActions, args[2].(string))
		return &fakeRow{vals: []any{uuid.New()}}
	case strings.Contains(sql, "INSERT INTO trip_change_records"):
		f.changeFields = append(f.changeFields, args[2].(string))
		return &fakeRow{vals: []any{uuid.New()}}
	default:
		t := f.trip
		return &fakeRow{vals: []any{
			t.ID, t.AgencyID, t.ClientID, t.AssignedUserID, t.Name, t.Destination, t.TripType,
			t.Stage, t.IsLocked, t.LockReason, t.StartDate, t.EndDate, t.DepositDueDate,
			t.FinalPaymentDueDate, t.CreatedAt, t.UpdatedAt,
		}}
	}
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

func testFakeTx(stage string, bookings ...fakeBooking) *fakeTx {
	return &fakeTx{
		trip: Trip{
			ID:             uuid.New(),
			AgencyID:       uuid.New(),
			ClientID:       uuid.New(),
			AssignedUserID: uuid.New(),
			Name:           "Maldives getaway",
			Destination:    "Malé",
			TripType:       "leisure",
			Stage:          stage,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		},
		bookings: bookings,
	}
}

func countActions(actions []string, want string) int {
	n := 0
	for _, a := range actions {
		if a == want {
			n++
		}
	}
	return n
}

func TestApplyStageChangeWritesOneAuditEntryAndOneChangeRecord(t *testing.T) {
	tx := testFakeTx(domain.StageBooked,
		fakeBooking{id: uuid.New(), status: domain.BookingStatusBooked, paymentStatus: domain.PaymentDepositPaid})

	result, err := ApplyStageChangeTx(context.Background(), tx, ApplyStageChangeParams{
		AgencyID: tx.trip.AgencyID,
		TripID:   tx.trip.ID,
		ActorID:  uuid.New(),
		ToStage:  domain.StageFinalPaymentPending,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.PreviousStage != domain.StageBooked || result.NewStage != domain.StageFinalPaymentPending {
		t.Fatalf("unexpected transition %s -> %s", result.PreviousStage, result.NewStage)
	}
	if result.Trip.Stage != domain.StageFinalPaymentPending {
		t.Fatalf("expected the reselected trip in the new stage, got %s", result.Trip.Stage)
	}
	if len(tx.auditActions) != 1 || tx.auditActions[0] != audit.ActionStageChange {
		t.Fatalf("expected exactly one stage_change audit entry, got %v", tx.auditActions)
	}
	if len(tx.changeFields) != 1 || tx.changeFields[0] != "stage" {
		t.Fatalf("expected exactly one change record for the stage field, got %v", tx.changeFields)
	}
	if len(tx.lockWrites) != 1 {
		t.Fatalf("expected one lock recompute in the transaction, got %d", len(tx.lockWrites))
	}
}

func TestApplyStageChangeCancelCascadesOntoActiveBookings(t *testing.T) {
	active1 := fakeBooking{id: uuid.New(), status: domain.BookingStatusBooked, paymentStatus: domain.PaymentPaidInFull}
	active2 := fakeBooking{id: uuid.New(), status: domain.BookingStatusQuoted, paymentStatus: domain.PaymentDepositPaid}
	alreadyCanceled := fakeBooking{id: uuid.New(), status: domain.BookingStatusCanceled, paymentStatus: domain.PaymentDepositPaid}
	tx := testFakeTx(domain.StageBooked, active1, active2, alreadyCanceled)

	reason := "client withdrew"
	result, err := ApplyStageChangeTx(context.Background(), tx, ApplyStageChangeParams{
		AgencyID: tx.trip.AgencyID,
		TripID:   tx.trip.ID,
		ActorID:  uuid.New(),
		ToStage:  domain.StageCanceled,
		Reason:   &reason,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.CanceledBookings) != 2 {
		t.Fatalf("expected both active bookings canceled, got %d", len(result.CanceledBookings))
	}
	for _, b := range tx.bookings[:2] {
		if b.status != domain.BookingStatusCanceled {
			t.Fatalf("expected booking %s canceled, got %s", b.id, b.status)
		}
		if !b.commissionZeroed {
			t.Fatalf("expected booking %s expected commission zeroed", b.id)
		}
	}
	if tx.bookings[2].commissionZeroed {
		t.Fatal("expected the already-canceled booking untouched")
	}
	if got := countActions(tx.auditActions, audit.ActionBookingCascadeCanceled); got != 2 {
		t.Fatalf("expected one cascade audit entry per booking, got %d", got)
	}
	if got := countActions(tx.auditActions, audit.ActionStageChange); got != 1 {
		t.Fatalf("expected exactly one stage_change audit entry, got %d", got)
	}
	if len(tx.changeFields) != 1 || tx.changeFields[0] != "stage" {
		t.Fatalf("expected exactly one change record for the stage field, got %v", tx.changeFields)
	}
	if len(tx.lockWrites) != 1 || tx.lockWrites[0].locked {
		t.Fatalf("expected one lock recompute leaving the canceled trip unlocked, got %v", tx.lockWrites)
	}
}

func TestApplyFieldUpdateWritesOneRecordPerFieldAndOneAuditEntry(t *testing.T) {
	tx := testFakeTx(domain.StageQuoted)

	oldDest, newDest := "Malé", "Lisbon"
	oldName, newName := "Maldives getaway", "Lisbon city break"
	updated, err := ApplyFieldUpdateTx(context.Background(), tx, ApplyFieldUpdateParams{
		AgencyID: tx.trip.AgencyID,
		TripID:   tx.trip.ID,
		ActorID:  uuid.New(),
		Changes: []FieldChange{
			{Field: domain.FieldDestination, OldValue: &oldDest, NewValue: &newDest},
			{Field: "name", OldValue: &oldName, NewValue: &newName},
		},
		AuditAction: audit.ActionFieldUpdate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != tx.trip.ID {
		t.Fatalf("expected the updated trip back, got %s", updated.ID)
	}

	if len(tx.changeFields) != 2 {
		t.Fatalf("expected one change record per field, got %v", tx.changeFields)
	}
	if tx.changeFields[0] != domain.FieldDestination || tx.changeFields[1] != "name" {
		t.Fatalf("unexpected change record fields %v", tx.changeFields)
	}
	if len(tx.auditActions) != 1 || tx.auditActions[0] != audit.ActionFieldUpdate {
		t.Fatalf("expected exactly one field_update audit entry, got %v", tx.auditActions)
	}
}
