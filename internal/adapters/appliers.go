package adapters

import (
	"context"
	"encoding/json"

	"tripdesk_backend/internal/approvals"
	"tripdesk_backend/internal/approvals/repository"
	approvalsvc "tripdesk_backend/internal/approvals/service"
	"tripdesk_backend/internal/audit"
	bookingsvc "tripdesk_backend/internal/bookings/service"
	bookingtransport "tripdesk_backend/internal/bookings/transport"
	tripsvc "tripdesk_backend/internal/trips/service"
	triptransport "tripdesk_backend/internal/trips/transport"
	"tripdesk_backend/platform/apperr"

	"github.com/google/uuid"
)

// RegisterTripAppliers binds the trip action types to re-apply functions on
// the lifecycle engine. Appliers run inside the resolution transaction; the
// captured payload is decoded and applied verbatim.
func RegisterTripAppliers(gw *approvalsvc.Service, trips *tripsvc.Service) {
	stageApplier := func(ctx context.Context, tx audit.DBTX, req repository.Request, resolvedBy uuid.UUID) (func(context.Context), error) {
		var payload triptransport.StageChangePayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "decode captured stage change", err)
		}
		return trips.ReapplyStageChange(ctx, tx, req.AgencyID, req.EntityID, resolvedBy, payload)
	}

	gw.RegisterApplier(approvals.ActionChangeStage, stageApplier)
	gw.RegisterApplier(approvals.ActionReopenTrip, stageApplier)

	gw.RegisterApplier(approvals.ActionModifyLockedTrip, func(ctx context.Context, tx audit.DBTX, req repository.Request, resolvedBy uuid.UUID) (func(context.Context), error) {
		var payload triptransport.FieldUpdatePayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "decode captured field update", err)
		}
		return trips.ReapplyFieldUpdate(ctx, tx, req.AgencyID, req.EntityID, resolvedBy, payload)
	})
}

// RegisterBookingAppliers binds the booking action types to re-apply
// functions on the bookings service.
func RegisterBookingAppliers(gw *approvalsvc.Service, bookings *bookingsvc.Service) {
	updateApplier := func(ctx context.Context, tx audit.DBTX, req repository.Request, resolvedBy uuid.UUID) (func(context.Context), error) {
		var payload bookingtransport.BookingUpdatePayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "decode captured booking update", err)
		}
		return nil, bookings.ReapplyUpdate(ctx, tx, req.AgencyID, req.EntityID, resolvedBy, payload)
	}

	gw.RegisterApplier(approvals.ActionConfirmBooking, updateApplier)
	gw.RegisterApplier(approvals.ActionMarkPaidInFull, updateApplier)

	gw.RegisterApplier(approvals.ActionUpdateCommission, func(ctx context.Context, tx audit.DBTX, req repository.Request, resolvedBy uuid.UUID) (func(context.Context), error) {
		var payload bookingtransport.CommissionUpdatePayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "decode captured commission update", err)
		}
		return nil, bookings.ReapplyCommission(ctx, tx, req.AgencyID, req.EntityID, resolvedBy, payload)
	})
}
