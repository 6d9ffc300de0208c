package service

import (
	"context"
	"testing"

	"tripdesk_backend/internal/approvals"
	"tripdesk_backend/internal/bookings/repository"
	"tripdesk_backend/internal/trips/domain"
	"tripdesk_backend/platform/apperr"
	"tripdesk_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	booking repository.Booking

	updateCalls     []repository.ApplyUpdateParams
	commissionCalls []repository.ApplyCommissionParams
}

func (f *fakeStore) GetByID(ctx context.Context, agencyID, id uuid.UUID) (repository.Booking, error) {
	return f.booking, nil
}

func (f *fakeStore) ListByTrip(ctx context.Context, agencyID, tripID uuid.UUID) ([]repository.Booking, error) {
	return []repository.Booking{f.booking}, nil
}

func (f *fakeStore) ApplyUpdate(ctx context.Context, p repository.ApplyUpdateParams) (repository.Booking, error) {
	f.updateCalls = append(f.updateCalls, p)
	return f.booking, nil
}

func (f *fakeStore) ApplyCommission(ctx context.Context, p repository.ApplyCommissionParams) (repository.Booking, error) {
	f.commissionCalls = append(f.commissionCalls, p)
	return f.booking, nil
}

type fakeGateway struct {
	calls     []ApprovalInput
	requestID uuid.UUID
}

func (f *fakeGateway) Park(ctx context.Context, agencyID, requestedBy uuid.UUID, in ApprovalInput) (uuid.UUID, error) {
	f.calls = append(f.calls, in)
	return f.requestID, nil
}

func testBooking() repository.Booking {
	return repository.Booking{
		ID:                       uuid.New(),
		TripID:                   uuid.New(),
		AgencyID:                 uuid.New(),
		SupplierName:             "Sunset Cruises",
		Status:                   domain.BookingStatusQuoted,
		PaymentStatus:            domain.PaymentDepositPaid,
		CommissionStatus:         domain.CommissionExpected,
		CommissionAmountExpected: 25000,
		TripStage:                domain.StageQuoted,
	}
}

func newService(booking repository.Booking) (*Service, *fakeStore, *fakeGateway) {
	store := &fakeStore{booking: booking}
	gateway := &fakeGateway{requestID: uuid.New()}
	return New(store, gateway, logger.New("test")), store, gateway
}

func TestUpdateBookingConfirmByAgentParks(t *testing.T) {
	booking := testBooking()
	svc, store, gateway := newService(booking)

	status := domain.BookingStatusBooked
	out, err := svc.UpdateBooking(context.Background(), UpdateParams{
		AgencyID:  booking.AgencyID,
		BookingID: booking.ID,
		Actor:     Actor{UserID: uuid.New()},
		Status:    &status,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied {
		t.Fatal("expected confirmation by an agent to be parked")
	}
	if out.ApprovalRequestID != gateway.requestID {
		t.Fatalf("expected the parked request ID, got %s", out.ApprovalRequestID)
	}
	if len(store.updateCalls) != 0 {
		t.Fatal("expected no direct apply when parked")
	}
	if len(gateway.calls) != 1 || gateway.calls[0].ActionType != approvals.ActionConfirmBooking {
		t.Fatalf("expected one confirm_booking request, got %+v", gateway.calls)
	}
}

func TestUpdateBookingConfirmByAdminApplies(t *testing.T) {
	booking := testBooking()
	svc, store, gateway := newService(booking)

	status := domain.BookingStatusBooked
	out, err := svc.UpdateBooking(context.Background(), UpdateParams{
		AgencyID:  booking.AgencyID,
		BookingID: booking.ID,
		Actor:     Actor{UserID: uuid.New(), IsAdmin: true},
		Status:    &status,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Applied {
		t.Fatal("expected admin confirmation to apply directly")
	}
	if len(gateway.calls) != 0 {
		t.Fatal("expected no approval request for an admin")
	}
	if len(store.updateCalls) != 1 {
		t.Fatalf("expected one apply, got %d", len(store.updateCalls))
	}
}

func TestUpdateBookingMarkPaidInFullByAgentParks(t *testing.T) {
	booking := testBooking()
	booking.Status = domain.BookingStatusBooked
	svc, _, gateway := newService(booking)

	payment := domain.PaymentPaidInFull
	out, err := svc.UpdateBooking(context.Background(), UpdateParams{
		AgencyID:      booking.AgencyID,
		BookingID:     booking.ID,
		Actor:         Actor{UserID: uuid.New()},
		PaymentStatus: &payment,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied {
		t.Fatal("expected marking paid in full by an agent to be parked")
	}
	if len(gateway.calls) != 1 || gateway.calls[0].ActionType != approvals.ActionMarkPaidInFull {
		t.Fatalf("expected one mark_paid_in_full request, got %+v", gateway.calls)
	}
}

func TestUpdateBookingStatusRuleWinsOverPaymentRule(t *testing.T) {
	booking := testBooking()
	svc, _, gateway := newService(booking)

	status := domain.BookingStatusBooked
	payment := domain.PaymentPaidInFull
	out, err := svc.UpdateBooking(context.Background(), UpdateParams{
		AgencyID:      booking.AgencyID,
		BookingID:     booking.ID,
		Actor:         Actor{UserID: uuid.New()},
		Status:        &status,
		PaymentStatus: &payment,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied {
		t.Fatal("expected the combined change to be parked")
	}
	if gateway.calls[0].ActionType != approvals.ActionConfirmBooking {
		t.Fatalf("expected the status rule to select the action, got %s", gateway.calls[0].ActionType)
	}
}

func TestUpdateBookingUnrestrictedChangesApply(t *testing.T) {
	booking := testBooking()
	svc, store, gateway := newService(booking)

	supplier := "Harbor Tours"
	status := domain.BookingStatusCanceled
	out, err := svc.UpdateBooking(context.Background(), UpdateParams{
		AgencyID:     booking.AgencyID,
		BookingID:    booking.ID,
		Actor:        Actor{UserID: uuid.New()},
		SupplierName: &supplier,
		Status:       &status,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Applied {
		t.Fatal("expected cancellation and supplier edits to apply for any role")
	}
	if len(gateway.calls) != 0 {
		t.Fatal("expected no approval request")
	}
	if len(store.updateCalls) != 1 {
		t.Fatalf("expected one apply, got %d", len(store.updateCalls))
	}
}

func TestUpdateBookingRejectsUnknownStatus(t *testing.T) {
	booking := testBooking()
	svc, _, _ := newService(booking)

	bad := "confirmed"
	_, err := svc.UpdateBooking(context.Background(), UpdateParams{
		AgencyID:  booking.AgencyID,
		BookingID: booking.ID,
		Actor:     Actor{UserID: uuid.New()},
		Status:    &bad,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestUpdateBookingRejectsArchivedTrip(t *testing.T) {
	booking := testBooking()
	booking.TripStage = domain.StageArchived
	svc, _, _ := newService(booking)

	supplier := "Harbor Tours"
	_, err := svc.UpdateBooking(context.Background(), UpdateParams{
		AgencyID:     booking.AgencyID,
		BookingID:    booking.ID,
		Actor:        Actor{UserID: uuid.New(), IsAdmin: true},
		SupplierName: &supplier,
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden error for archived trip, got %v", err)
	}
}

func TestUpdateCommissionStatusChangeByAgentParks(t *testing.T) {
	booking := testBooking()
	svc, store, gateway := newService(booking)

	status := domain.CommissionSubmitted
	out, err := svc.UpdateCommission(context.Background(), CommissionParams{
		AgencyID:  booking.AgencyID,
		BookingID: booking.ID,
		Actor:     Actor{UserID: uuid.New()},
		Status:    &status,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Applied {
		t.Fatal("expected commission status change by an agent to be parked")
	}
	if len(gateway.calls) != 1 || gateway.calls[0].ActionType != approvals.ActionUpdateCommission {
		t.Fatalf("expected one update_commission request, got %+v", gateway.calls)
	}
	if len(store.commissionCalls) != 0 {
		t.Fatal("expected no direct apply when parked")
	}
}

func TestUpdateCommissionDetailEditsApplyFreely(t *testing.T) {
	booking := testBooking()
	svc, store, gateway := newService(booking)

	amount := int64(24000)
	reference := "INV-2041"
	out, err := svc.UpdateCommission(context.Background(), CommissionParams{
		AgencyID:         booking.AgencyID,
		BookingID:        booking.ID,
		Actor:            Actor{UserID: uuid.New()},
		AmountReceived:   &amount,
		PaymentReference: &reference,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Applied {
		t.Fatal("expected detail edits without a status change to apply")
	}
	if len(gateway.calls) != 0 {
		t.Fatal("expected no approval request")
	}
	if len(store.commissionCalls) != 1 {
		t.Fatalf("expected one apply, got %d", len(store.commissionCalls))
	}
}

func TestUpdateCommissionPaidRequiresReceivedAmount(t *testing.T) {
	booking := testBooking()
	svc, _, _ := newService(booking)

	status := domain.CommissionPaid
	_, err := svc.UpdateCommission(context.Background(), CommissionParams{
		AgencyID:  booking.AgencyID,
		BookingID: booking.ID,
		Actor:     Actor{UserID: uuid.New(), IsAdmin: true},
		Status:    &status,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error without a received amount, got %v", err)
	}
}

func TestUpdateCommissionPaidAcceptsStoredReceivedAmount(t *testing.T) {
	booking := testBooking()
	received := int64(25000)
	booking.CommissionAmountReceived = &received
	svc, store, _ := newService(booking)

	status := domain.CommissionPaid
	out, err := svc.UpdateCommission(context.Background(), CommissionParams{
		AgencyID:  booking.AgencyID,
		BookingID: booking.ID,
		Actor:     Actor{UserID: uuid.New(), IsAdmin: true},
		Status:    &status,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Applied {
		t.Fatal("expected marking paid with a stored amount to apply")
	}
	if len(store.commissionCalls) != 1 {
		t.Fatalf("expected one apply, got %d", len(store.commissionCalls))
	}
}

func TestUpdateCommissionRejectsMalformedDate(t *testing.T) {
	booking := testBooking()
	svc, _, _ := newService(booking)

	bad := "15/01/2026"
	_, err := svc.UpdateCommission(context.Background(), CommissionParams{
		AgencyID:     booking.AgencyID,
		BookingID:    booking.ID,
		Actor:        Actor{UserID: uuid.New()},
		ReceivedDate: &bad,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for malformed date, got %v", err)
	}
}
