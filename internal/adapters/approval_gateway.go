// Package adapters wires modules together without letting them import each
// other's services directly. Each adapter implements one consumer-side
// interface on top of another module's service.
package adapters

import (
	"context"

	approvalsvc "tripdesk_backend/internal/approvals/service"
	bookingsvc "tripdesk_backend/internal/bookings/service"
	tripsvc "tripdesk_backend/internal/trips/service"

	"github.com/google/uuid"
)

// TripApprovalGateway adapts the approvals service to the trips module's
// gateway interface.
type TripApprovalGateway struct {
	svc *approvalsvc.Service
}

func NewTripApprovalGateway(svc *approvalsvc.Service) *TripApprovalGateway {
	return &TripApprovalGateway{svc: svc}
}

func (g *TripApprovalGateway) Park(ctx context.Context, agencyID, requestedBy uuid.UUID, in tripsvc.ApprovalInput) (uuid.UUID, error) {
	req, err := g.svc.CreateRequest(ctx, approvalsvc.CreateRequestParams{
		AgencyID:    agencyID,
		RequestedBy: requestedBy,
		ActionType:  in.ActionType,
		EntityType:  in.EntityType,
		EntityID:    in.EntityID,
		Payload:     in.Payload,
		Reason:      in.Reason,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return req.ID, nil
}

// BookingApprovalGateway adapts the approvals service to the bookings
// module's gateway interface.
type BookingApprovalGateway struct {
	svc *approvalsvc.Service
}

func NewBookingApprovalGateway(svc *approvalsvc.Service) *BookingApprovalGateway {
	return &BookingApprovalGateway{svc: svc}
}

func (g *BookingApprovalGateway) Park(ctx context.Context, agencyID, requestedBy uuid.UUID, in bookingsvc.ApprovalInput) (uuid.UUID, error) {
	req, err := g.svc.CreateRequest(ctx, approvalsvc.CreateRequestParams{
		AgencyID:    agencyID,
		RequestedBy: requestedBy,
		ActionType:  in.ActionType,
		EntityType:  in.EntityType,
		EntityID:    in.EntityID,
		Payload:     in.Payload,
		Reason:      in.Reason,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return req.ID, nil
}
