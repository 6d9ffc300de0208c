// Package service implements booking mutations and commission reconciliation,
// gated by the same restricted-action policy as the trip lifecycle.
package service

import (
	"context"
	"time"

	"tripdesk_backend/internal/approvals"
	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/bookings/repository"
	"tripdesk_backend/internal/bookings/transport"
	"tripdesk_backend/internal/trips/domain"
	"tripdesk_backend/platform/apperr"
	"tripdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the booking persistence the service depends on.
type Store interface {
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (repository.Booking, error)
	ListByTrip(ctx context.Context, agencyID, tripID uuid.UUID) ([]repository.Booking, error)
	ApplyUpdate(ctx context.Context, p repository.ApplyUpdateParams) (repository.Booking, error)
	ApplyCommission(ctx context.Context, p repository.ApplyCommissionParams) (repository.Booking, error)
}

// ApprovalInput is a restricted action handed to the gateway.
type ApprovalInput struct {
	ActionType string
	EntityType string
	EntityID   uuid.UUID
	Payload    any
	Reason     *string
}

// Gateway parks restricted actions as pending approval requests.
type Gateway interface {
	Park(ctx context.Context, agencyID, requestedBy uuid.UUID, in ApprovalInput) (uuid.UUID, error)
}

// Actor identifies who is performing a mutation and with what privilege.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Service handles booking updates and commission reconciliation.
type Service struct {
	store   Store
	gateway Gateway
	log     *logger.Logger

	applyUpdateTx     func(ctx context.Context, tx audit.DBTX, p repository.ApplyUpdateParams) (repository.Booking, error)
	applyCommissionTx func(ctx context.Context, tx audit.DBTX, p repository.ApplyCommissionParams) (repository.Booking, error)
}

// New creates a bookings service.
func New(store Store, gateway Gateway, log *logger.Logger) *Service {
	return &Service{
		store:             store,
		gateway:           gateway,
		log:               log,
		applyUpdateTx:     repository.ApplyUpdateTx,
		applyCommissionTx: repository.ApplyCommissionTx,
	}
}

// Outcome is either an applied mutation or a parked request.
type Outcome struct {
	Applied           bool
	Booking           repository.Booking
	ApprovalRequestID uuid.UUID
}

// UpdateParams carries a partial booking update.
type UpdateParams struct {
	AgencyID  uuid.UUID
	BookingID uuid.UUID
	Actor     Actor

	SupplierName  *string
	Status        *string
	PaymentStatus *string
}

// UpdateBooking validates and routes a booking update. Confirming a booking
// or marking it paid in full is restricted: non-admins are parked behind an
// approval request with the whole change set captured.
func (s *Service) UpdateBooking(ctx context.Context, p UpdateParams) (Outcome, error) {
	if p.Status != nil && !domain.IsKnownBookingStatus(*p.Status) {
		return Outcome{}, apperr.Validation("unknown booking status: " + *p.Status)
	}
	if p.PaymentStatus != nil && !domain.IsKnownPaymentStatus(*p.PaymentStatus) {
		return Outcome{}, apperr.Validation("unknown payment status: " + *p.PaymentStatus)
	}

	booking, err := s.store.GetByID(ctx, p.AgencyID, p.BookingID)
	if err != nil {
		return Outcome{}, err
	}
	if booking.TripStage == domain.StageArchived {
		return Outcome{}, apperr.Forbidden("bookings of archived trips cannot be modified")
	}

	if action := restrictedUpdateAction(booking, p); action != "" && !p.Actor.IsAdmin {
		requestID, err := s.gateway.Park(ctx, p.AgencyID, p.Actor.UserID, ApprovalInput{
			ActionType: action,
			EntityType: approvals.EntityBooking,
			EntityID:   p.BookingID,
			Payload: transport.BookingUpdatePayload{
				SupplierName:  p.SupplierName,
				Status:        p.Status,
				PaymentStatus: p.PaymentStatus,
			},
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{ApprovalRequestID: requestID}, nil
	}

	updated, err := s.store.ApplyUpdate(ctx, repository.ApplyUpdateParams{
		AgencyID:      p.AgencyID,
		BookingID:     p.BookingID,
		ActorID:       p.Actor.UserID,
		SupplierName:  p.SupplierName,
		Status:        p.Status,
		PaymentStatus: p.PaymentStatus,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: true, Booking: updated}, nil
}

// restrictedUpdateAction returns the action gating the update, or "" when the
// change set is unrestricted. When both the status and payment status hit a
// restricted rule, the status rule wins: the captured payload carries the
// whole change set either way.
func restrictedUpdateAction(booking repository.Booking, p UpdateParams) string {
	if p.Status != nil && *p.Status != booking.Status {
		if action, ok := approvals.RestrictedAction(approvals.EntityBooking, "status", booking.Status, *p.Status); ok {
			return action
		}
	}
	if p.PaymentStatus != nil && *p.PaymentStatus != booking.PaymentStatus {
		if action, ok := approvals.RestrictedAction(approvals.EntityBooking, "payment_status", booking.PaymentStatus, *p.PaymentStatus); ok {
			return action
		}
	}
	return ""
}

// CommissionParams carries a commission tracking update. The received date is
// a YYYY-MM-DD string.
type CommissionParams struct {
	AgencyID  uuid.UUID
	BookingID uuid.UUID
	Actor     Actor

	Status           *string
	AmountReceived   *int64
	ReceivedDate     *string
	PaymentReference *string
	VarianceNote     *string
}

// UpdateCommission validates and routes a commission update. Any commission
// status change is restricted; amount, reference and note edits without a
// status change apply freely. Marking the commission paid requires a received
// amount so the variance is always computable.
func (s *Service) UpdateCommission(ctx context.Context, p CommissionParams) (Outcome, error) {
	if p.Status != nil && !domain.IsKnownCommissionStatus(*p.Status) {
		return Outcome{}, apperr.Validation("unknown commission status: " + *p.Status)
	}

	var receivedDate *time.Time
	if p.ReceivedDate != nil {
		parsed, err := time.Parse(transport.DateLayout, *p.ReceivedDate)
		if err != nil {
			return Outcome{}, apperr.Validation("invalid received date: " + *p.ReceivedDate)
		}
		receivedDate = &parsed
	}

	booking, err := s.store.GetByID(ctx, p.AgencyID, p.BookingID)
	if err != nil {
		return Outcome{}, err
	}
	if booking.TripStage == domain.StageArchived {
		return Outcome{}, apperr.Forbidden("bookings of archived trips cannot be modified")
	}

	if p.Status != nil && *p.Status == domain.CommissionPaid &&
		p.AmountReceived == nil && booking.CommissionAmountReceived == nil {
		return Outcome{}, apperr.Validation("amountReceived is required to mark a commission paid")
	}

	if p.Status != nil && *p.Status != booking.CommissionStatus {
		if action, ok := approvals.RestrictedAction(approvals.EntityBooking, "commission_status", booking.CommissionStatus, *p.Status); ok && !p.Actor.IsAdmin {
			requestID, err := s.gateway.Park(ctx, p.AgencyID, p.Actor.UserID, ApprovalInput{
				ActionType: action,
				EntityType: approvals.EntityBooking,
				EntityID:   p.BookingID,
				Payload: transport.CommissionUpdatePayload{
					Status:           p.Status,
					AmountReceived:   p.AmountReceived,
					ReceivedDate:     p.ReceivedDate,
					PaymentReference: p.PaymentReference,
					VarianceNote:     p.VarianceNote,
				},
			})
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{ApprovalRequestID: requestID}, nil
		}
	}

	updated, err := s.store.ApplyCommission(ctx, repository.ApplyCommissionParams{
		AgencyID:         p.AgencyID,
		BookingID:        p.BookingID,
		ActorID:          p.Actor.UserID,
		Status:           p.Status,
		AmountReceived:   p.AmountReceived,
		ReceivedDate:     receivedDate,
		PaymentReference: p.PaymentReference,
		VarianceNote:     p.VarianceNote,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: true, Booking: updated}, nil
}

// GetBooking returns one booking scoped to the agency.
func (s *Service) GetBooking(ctx context.Context, agencyID, id uuid.UUID) (repository.Booking, error) {
	return s.store.GetByID(ctx, agencyID, id)
}

// ListTripBookings returns a trip's bookings.
func (s *Service) ListTripBookings(ctx context.Context, agencyID, tripID uuid.UUID) ([]repository.Booking, error) {
	return s.store.ListByTrip(ctx, agencyID, tripID)
}

// ReapplyUpdate applies an approved booking update inside the resolution
// transaction.
func (s *Service) ReapplyUpdate(ctx context.Context, tx audit.DBTX, agencyID, bookingID, approvedBy uuid.UUID, payload transport.BookingUpdatePayload) error {
	_, err := s.applyUpdateTx(ctx, tx, repository.ApplyUpdateParams{
		AgencyID:      agencyID,
		BookingID:     bookingID,
		ActorID:       approvedBy,
		SupplierName:  payload.SupplierName,
		Status:        payload.Status,
		PaymentStatus: payload.PaymentStatus,
	})
	return err
}

// ReapplyCommission applies an approved commission update inside the
// resolution transaction.
func (s *Service) ReapplyCommission(ctx context.Context, tx audit.DBTX, agencyID, bookingID, approvedBy uuid.UUID, payload transport.CommissionUpdatePayload) error {
	var receivedDate *time.Time
	if payload.ReceivedDate != nil {
		parsed, err := time.Parse(transport.DateLayout, *payload.ReceivedDate)
		if err != nil {
			return apperr.Validation("invalid received date in captured payload: " + *payload.ReceivedDate)
		}
		receivedDate = &parsed
	}

	_, err := s.applyCommissionTx(ctx, tx, repository.ApplyCommissionParams{
		AgencyID:         agencyID,
		BookingID:        bookingID,
		ActorID:          approvedBy,
		Status:           payload.Status,
		AmountReceived:   payload.AmountReceived,
		ReceivedDate:     receivedDate,
		PaymentReference: payload.PaymentReference,
		VarianceNote:     payload.VarianceNote,
	})
	return err
}
