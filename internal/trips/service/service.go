// Package service implements the trip lifecycle engine: stage transitions,
// lock-aware field updates, and the routing of restricted actions through the
// approval gateway.
package service

import (
	"context"
	"strings"
	"time"

	"tripdesk_backend/internal/approvals"
	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/followup"
	"tripdesk_backend/internal/notification/inapp"
	"tripdesk_backend/internal/trips/domain"
	"tripdesk_backend/internal/trips/repository"
	"tripdesk_backend/internal/trips/transport"
	"tripdesk_backend/platform/apperr"
	"tripdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// EventTypeStageReached keys the assigned-agent notification for a stage
// change, so repeated transitions to the same stage never stack duplicates.
const EventTypeStageReached = "stage_reached"

// Store is the trip persistence the engine depends on.
type Store interface {
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (repository.Trip, error)
	ApplyStageChange(ctx context.Context, p repository.ApplyStageChangeParams) (repository.StageChangeResult, error)
	ApplyFieldUpdate(ctx context.Context, p repository.ApplyFieldUpdateParams) (repository.Trip, error)
}

// ApprovalInput is a restricted action handed to the gateway.
type ApprovalInput struct {
	ActionType string
	EntityType string
	EntityID   uuid.UUID
	Payload    any
	Reason     *string
}

// Gateway parks restricted actions as pending approval requests and returns
// the request ID. A pending request with a different captured payload
// surfaces as a conflict error.
type Gateway interface {
	Park(ctx context.Context, agencyID, requestedBy uuid.UUID, in ApprovalInput) (uuid.UUID, error)
}

// SideEffects receives confirmed stage transitions after commit.
type SideEffects interface {
	OnStageReached(ctx context.Context, ev followup.StageEvent)
}

// Notifier fans a notification out to a set of users.
type Notifier interface {
	CreateForUsers(ctx context.Context, p inapp.CreateForUsersParams) (int, error)
}

// Service is the trip lifecycle engine.
type Service struct {
	store       Store
	gateway     Gateway
	sideEffects SideEffects
	notifier    Notifier
	log         *logger.Logger

	// Transaction-scoped apply functions, swappable in tests. The approval
	// resolution path calls these inside its own transaction.
	applyStageTx func(ctx context.Context, tx audit.DBTX, p repository.ApplyStageChangeParams) (repository.StageChangeResult, error)
	applyFieldTx func(ctx context.Context, tx audit.DBTX, p repository.ApplyFieldUpdateParams) (repository.Trip, error)
}

// New creates the lifecycle engine.
func New(store Store, gateway Gateway, sideEffects SideEffects, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		store:        store,
		gateway:      gateway,
		sideEffects:  sideEffects,
		notifier:     notifier,
		log:          log,
		applyStageTx: repository.ApplyStageChangeTx,
		applyFieldTx: repository.ApplyFieldUpdateTx,
	}
}

// Actor identifies who is performing a mutation and with what privilege.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// StageChangeParams asks for a stage transition.
type StageChangeParams struct {
	AgencyID uuid.UUID
	TripID   uuid.UUID
	Actor    Actor
	ToStage  string
	Reason   *string
}

// StageChangeOutcome is either an applied transition or a parked request.
type StageChangeOutcome struct {
	Applied           bool
	Result            repository.StageChangeResult
	ApprovalRequestID uuid.UUID
}

// RequestStageChange validates and routes a stage transition. Plain
// transitions and admin actions apply immediately; financial and reopen
// transitions by non-admins are parked behind an approval request.
func (s *Service) RequestStageChange(ctx context.Context, p StageChangeParams) (StageChangeOutcome, error) {
	if !domain.IsKnownStage(p.ToStage) {
		return StageChangeOutcome{}, apperr.Validation("unknown stage: " + p.ToStage)
	}

	trip, err := s.store.GetByID(ctx, p.AgencyID, p.TripID)
	if err != nil {
		return StageChangeOutcome{}, err
	}

	if trip.Stage == domain.StageArchived {
		return StageChangeOutcome{}, apperr.Forbidden("archived trips cannot be modified")
	}
	if trip.Stage == p.ToStage {
		return StageChangeOutcome{}, apperr.Validation("trip is already in stage " + p.ToStage)
	}

	// Reopening needs a reason from everyone, admins included.
	if domain.ClassifyTransition(trip.Stage, p.ToStage) == domain.TransitionReopen && !hasText(p.Reason) {
		return StageChangeOutcome{}, apperr.Validation("a reason is required to reopen a closed trip")
	}

	if action, restricted := approvals.RestrictedAction(approvals.EntityTrip, "stage", trip.Stage, p.ToStage); restricted && !p.Actor.IsAdmin {
		requestID, err := s.gateway.Park(ctx, p.AgencyID, p.Actor.UserID, ApprovalInput{
			ActionType: action,
			EntityType: approvals.EntityTrip,
			EntityID:   p.TripID,
			Payload:    transport.StageChangePayload{TargetStage: p.ToStage, Reason: p.Reason},
			Reason:     p.Reason,
		})
		if err != nil {
			return StageChangeOutcome{}, err
		}
		return StageChangeOutcome{ApprovalRequestID: requestID}, nil
	}

	result, err := s.store.ApplyStageChange(ctx, repository.ApplyStageChangeParams{
		AgencyID: p.AgencyID,
		TripID:   p.TripID,
		ActorID:  p.Actor.UserID,
		ToStage:  p.ToStage,
		Reason:   p.Reason,
	})
	if err != nil {
		return StageChangeOutcome{}, err
	}

	s.afterStageChange(ctx, p.Actor.UserID, result)
	return StageChangeOutcome{Applied: true, Result: result}, nil
}

// afterStageChange runs the best-effort side effects of a committed
// transition: follow-up tasks, client emails, and the assigned-agent
// notification. Failures are logged, never surfaced.
func (s *Service) afterStageChange(ctx context.Context, actorID uuid.UUID, result repository.StageChangeResult) {
	trip := result.Trip
	s.log.StageTransition(trip.ID.String(), result.PreviousStage, result.NewStage, actorID.String())

	s.sideEffects.OnStageReached(ctx, followup.StageEvent{
		TripID:         trip.ID,
		AgencyID:       trip.AgencyID,
		ClientID:       trip.ClientID,
		AssignedUserID: trip.AssignedUserID,
		TripName:       trip.Name,
		Destination:    trip.Destination,
		TripType:       trip.TripType,
		Stage:          result.NewStage,
	})

	if trip.AssignedUserID == actorID {
		return
	}
	if _, err := s.notifier.CreateForUsers(ctx, inapp.CreateForUsersParams{
		AgencyID:   trip.AgencyID,
		UserIDs:    []uuid.UUID{trip.AssignedUserID},
		Type:       inapp.TypeNormal,
		Title:      "Trip stage changed",
		Message:    "Trip \"" + trip.Name + "\" moved from " + result.PreviousStage + " to " + result.NewStage + ".",
		EntityType: "trip",
		EntityID:   trip.ID,
		EventType:  EventTypeStageReached + ":" + result.NewStage,
	}); err != nil {
		s.log.SideEffectError("trips", "notify assigned user", err)
	}
}

// FieldUpdateParams carries a partial trip update. Nil fields are untouched;
// dates are YYYY-MM-DD strings.
type FieldUpdateParams struct {
	AgencyID uuid.UUID
	TripID   uuid.UUID
	Actor    Actor

	Name                *string
	AssignedUserID      *uuid.UUID
	Destination         *string
	StartDate           *string
	EndDate             *string
	DepositDueDate      *string
	FinalPaymentDueDate *string

	ChangeReason *string
}

// FieldUpdateOutcome is either an applied update or a parked request.
type FieldUpdateOutcome struct {
	Applied           bool
	Trip              repository.Trip
	ApprovalRequestID uuid.UUID
}

// RequestFieldUpdate diffs the requested values against the trip and routes
// the change set. On a locked trip, touched locked fields require either
// admin privilege (recorded as an override) or an approved request; the whole
// change set is parked together so a partial update never slips through.
func (s *Service) RequestFieldUpdate(ctx context.Context, p FieldUpdateParams) (FieldUpdateOutcome, error) {
	trip, err := s.store.GetByID(ctx, p.AgencyID, p.TripID)
	if err != nil {
		return FieldUpdateOutcome{}, err
	}

	if trip.Stage == domain.StageArchived {
		return FieldUpdateOutcome{}, apperr.Forbidden("archived trips cannot be modified")
	}

	changes, lockedTouched, err := diffChanges(trip, p)
	if err != nil {
		return FieldUpdateOutcome{}, err
	}
	if len(changes) == 0 {
		return FieldUpdateOutcome{Applied: true, Trip: trip}, nil
	}

	auditAction := audit.ActionFieldUpdate
	reason := p.ChangeReason

	if trip.IsLocked && len(lockedTouched) > 0 {
		if !p.Actor.IsAdmin {
			if !hasText(p.ChangeReason) {
				return FieldUpdateOutcome{}, apperr.Validation("trip is locked; a change reason is required to request changes to locked fields").
					WithDetails(map[string]any{"lockedFields": lockedTouched})
			}

			payload := transport.FieldUpdatePayload{Reason: p.ChangeReason}
			for _, c := range changes {
				payload.Changes = append(payload.Changes, transport.FieldChangePayload{
					Field:    c.Field,
					OldValue: c.OldValue,
					NewValue: c.NewValue,
				})
			}

			requestID, err := s.gateway.Park(ctx, p.AgencyID, p.Actor.UserID, ApprovalInput{
				ActionType: approvals.ActionModifyLockedTrip,
				EntityType: approvals.EntityTrip,
				EntityID:   p.TripID,
				Payload:    payload,
				Reason:     p.ChangeReason,
			})
			if err != nil {
				return FieldUpdateOutcome{}, err
			}
			return FieldUpdateOutcome{ApprovalRequestID: requestID}, nil
		}

		// Admin override of a locked field is always recorded with a reason,
		// falling back to an explicit sentinel.
		auditAction = audit.ActionLockedFieldOverride
		if !hasText(reason) {
			sentinel := domain.NoReasonProvided
			reason = &sentinel
		}
	}

	updated, err := s.store.ApplyFieldUpdate(ctx, repository.ApplyFieldUpdateParams{
		AgencyID:    p.AgencyID,
		TripID:      p.TripID,
		ActorID:     p.Actor.UserID,
		Changes:     changes,
		AuditAction: auditAction,
		Reason:      reason,
	})
	if err != nil {
		return FieldUpdateOutcome{}, err
	}
	return FieldUpdateOutcome{Applied: true, Trip: updated}, nil
}

// GetTrip returns one trip scoped to the agency.
func (s *Service) GetTrip(ctx context.Context, agencyID, tripID uuid.UUID) (repository.Trip, error) {
	return s.store.GetByID(ctx, agencyID, tripID)
}

// diffChanges resolves the requested values into persisted field changes,
// reporting which of them touch locked fields. No-op values are dropped.
func diffChanges(trip repository.Trip, p FieldUpdateParams) ([]repository.FieldChange, []string, error) {
	var changes []repository.FieldChange
	var lockedTouched []string

	appendChange := func(field string, oldVal, newVal *string, locked bool) {
		if equalPtr(oldVal, newVal) {
			return
		}
		changes = append(changes, repository.FieldChange{Field: field, OldValue: oldVal, NewValue: newVal})
		if locked {
			lockedTouched = append(lockedTouched, field)
		}
	}

	if p.Name != nil {
		appendChange("name", &trip.Name, p.Name, false)
	}
	if p.AssignedUserID != nil {
		newVal := p.AssignedUserID.String()
		oldVal := trip.AssignedUserID.String()
		appendChange("assigned_user_id", &oldVal, &newVal, false)
	}
	if p.Destination != nil {
		appendChange(domain.FieldDestination, &trip.Destination, p.Destination, true)
	}

	dateFields := []struct {
		field string
		old   *time.Time
		new   *string
	}{
		{domain.FieldStartDate, trip.StartDate, p.StartDate},
		{domain.FieldEndDate, trip.EndDate, p.EndDate},
		{domain.FieldDepositDueDate, trip.DepositDueDate, p.DepositDueDate},
		{domain.FieldFinalPaymentDueDate, trip.FinalPaymentDueDate, p.FinalPaymentDueDate},
	}
	for _, df := range dateFields {
		if df.new == nil {
			continue
		}
		if _, err := time.Parse(transport.DateLayout, *df.new); err != nil {
			return nil, nil, apperr.Validation("invalid date for " + df.field + ": " + *df.new)
		}
		appendChange(df.field, encodeDate(df.old), df.new, true)
	}

	return changes, lockedTouched, nil
}

func encodeDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(transport.DateLayout)
	return &s
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
