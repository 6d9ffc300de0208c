// Package service owns the approval request lifecycle: capture, admin
// notification, and resolution with transactional re-apply.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"tripdesk_backend/internal/approvals/repository"
	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/notification/inapp"
	"tripdesk_backend/internal/users"
	"tripdesk_backend/platform/apperr"
	"tripdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Notification event types for the approval lifecycle. The requested key
// stops repeat submissions from stacking admin notifications; the resolved
// key is unique per request since resolution is terminal.
const (
	EventTypeApprovalRequested = "approval_requested"
	EventTypeApprovalResolved  = "approval_resolved"
)

// Applier re-applies a captured payload inside the resolution transaction,
// with the approving admin as actor. It may return a post-commit function for
// best-effort side effects (tasks, emails, notifications); the service runs
// it only after the commit succeeds.
type Applier func(ctx context.Context, tx audit.DBTX, req repository.Request, resolvedBy uuid.UUID) (func(context.Context), error)

// Store is the request persistence the service depends on.
type Store interface {
	CreateOrGetPending(ctx context.Context, p repository.CreateParams) (repository.Request, bool, error)
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (repository.Request, error)
	ListPending(ctx context.Context, agencyID uuid.UUID) ([]repository.Request, error)
	Resolve(ctx context.Context, p repository.ResolveParams, apply repository.ApplyFunc) (repository.Request, error)
}

// AdminLister resolves the admins to notify about a new pending request.
type AdminLister interface {
	ListActiveAdmins(ctx context.Context, agencyID uuid.UUID) ([]users.User, error)
}

// Notifier fans a notification out to a set of users.
type Notifier interface {
	CreateForUsers(ctx context.Context, p inapp.CreateForUsersParams) (int, error)
}

// Service coordinates approval request capture and resolution.
type Service struct {
	store    Store
	admins   AdminLister
	notifier Notifier
	log      *logger.Logger
	appliers map[string]Applier
}

// NewService creates an approvals service. Appliers are registered afterwards
// by the modules that own each action type.
func NewService(store Store, admins AdminLister, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		admins:   admins,
		notifier: notifier,
		log:      log,
		appliers: make(map[string]Applier),
	}
}

// RegisterApplier binds an action type to its re-apply function. Called once
// per action type during startup wiring.
func (s *Service) RegisterApplier(actionType string, apply Applier) {
	s.appliers[actionType] = apply
}

// CreateRequestParams captures a restricted action attempt.
type CreateRequestParams struct {
	AgencyID    uuid.UUID
	RequestedBy uuid.UUID
	ActionType  string
	EntityType  string
	EntityID    uuid.UUID
	Payload     any
	Reason      *string
}

// CreateRequest parks a restricted action as a pending approval request.
// Repeating the same attempt returns the existing pending request; the same
// (entity, action) with a different payload is a conflict, since silently
// replacing what an admin is about to approve would be worse than failing.
func (s *Service) CreateRequest(ctx context.Context, p CreateRequestParams) (repository.Request, error) {
	req, created, err := s.store.CreateOrGetPending(ctx, repository.CreateParams{
		AgencyID:    p.AgencyID,
		RequestedBy: p.RequestedBy,
		ActionType:  p.ActionType,
		EntityType:  p.EntityType,
		EntityID:    p.EntityID,
		Payload:     p.Payload,
		Reason:      p.Reason,
	})
	if err != nil {
		return repository.Request{}, err
	}

	if !created {
		samePayload, err := payloadEqual(req.Payload, p.Payload)
		if err != nil {
			return repository.Request{}, err
		}
		if !samePayload {
			return repository.Request{}, apperr.Conflict("a pending approval request with a different change already exists for this action").
				WithDetails(map[string]string{"approvalRequestId": req.ID.String()})
		}
		return req, nil
	}

	s.notifyAdmins(ctx, req)
	return req, nil
}

// payloadEqual compares the stored payload with a fresh attempt by decoded
// value, not bytes: the jsonb column hands payloads back with keys reordered
// and whitespace rewritten, so a byte comparison would read an identical
// resubmission as a different change.
func payloadEqual(stored json.RawMessage, attempt any) (bool, error) {
	attemptJSON, err := json.Marshal(attempt)
	if err != nil {
		return false, err
	}

	var storedVal, attemptVal any
	if err := json.Unmarshal(stored, &storedVal); err != nil {
		return false, err
	}
	if err := json.Unmarshal(attemptJSON, &attemptVal); err != nil {
		return false, err
	}
	return reflect.DeepEqual(storedVal, attemptVal), nil
}

func (s *Service) notifyAdmins(ctx context.Context, req repository.Request) {
	admins, err := s.admins.ListActiveAdmins(ctx, req.AgencyID)
	if err != nil {
		s.log.SideEffectError("approvals", "list admins", err)
		return
	}
	if len(admins) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ID)
	}

	if _, err := s.notifier.CreateForUsers(ctx, inapp.CreateForUsersParams{
		AgencyID:   req.AgencyID,
		UserIDs:    ids,
		Type:       inapp.TypeNormal,
		Title:      "Approval needed",
		Message:    fmt.Sprintf("An agent requested %q on %s %s.", req.ActionType, req.EntityType, req.EntityID),
		EntityType: "approval_request",
		EntityID:   req.ID,
		EventType:  EventTypeApprovalRequested,
	}); err != nil {
		s.log.SideEffectError("approvals", "notify admins", err)
	}
}

// ResolveParams decides a pending request.
type ResolveParams struct {
	AgencyID     uuid.UUID
	RequestID    uuid.UUID
	ResolvedBy   uuid.UUID
	Approve      bool
	ResponseNote *string
}

// Resolve approves or denies a pending request. Approval re-applies the
// captured payload through the registered applier inside the resolution
// transaction; the applier's post-commit side effects run afterwards. The
// requester is told the outcome either way, best-effort.
func (s *Service) Resolve(ctx context.Context, p ResolveParams) (repository.Request, error) {
	decision := repository.StatusDenied
	if p.Approve {
		decision = repository.StatusApproved
	}

	var postCommit func(context.Context)
	var apply repository.ApplyFunc
	if p.Approve {
		apply = func(ctx context.Context, tx audit.DBTX, req repository.Request, resolvedBy uuid.UUID) error {
			applier, ok := s.appliers[req.ActionType]
			if !ok {
				return apperr.Internal(fmt.Sprintf("no applier registered for action %q", req.ActionType))
			}
			after, err := applier(ctx, tx, req, resolvedBy)
			if err != nil {
				return err
			}
			postCommit = after
			return nil
		}
	}

	resolved, err := s.store.Resolve(ctx, repository.ResolveParams{
		AgencyID:     p.AgencyID,
		RequestID:    p.RequestID,
		ResolvedBy:   p.ResolvedBy,
		Decision:     decision,
		ResponseNote: p.ResponseNote,
	}, apply)
	if err != nil {
		return repository.Request{}, err
	}

	if postCommit != nil {
		postCommit(ctx)
	}
	s.notifyRequester(ctx, resolved)
	return resolved, nil
}

func (s *Service) notifyRequester(ctx context.Context, req repository.Request) {
	title := "Request denied"
	if req.Status == repository.StatusApproved {
		title = "Request approved"
	}

	if _, err := s.notifier.CreateForUsers(ctx, inapp.CreateForUsersParams{
		AgencyID:   req.AgencyID,
		UserIDs:    []uuid.UUID{req.RequestedBy},
		Type:       inapp.TypeNormal,
		Title:      title,
		Message:    fmt.Sprintf("Your %q request on %s %s was %s.", req.ActionType, req.EntityType, req.EntityID, req.Status),
		EntityType: "approval_request",
		EntityID:   req.ID,
		EventType:  EventTypeApprovalResolved,
	}); err != nil {
		s.log.SideEffectError("approvals", "notify requester", err)
	}
}

// GetByID returns one request scoped to the agency.
func (s *Service) GetByID(ctx context.Context, agencyID, id uuid.UUID) (repository.Request, error) {
	return s.store.GetByID(ctx, agencyID, id)
}

// ListPending returns the agency's pending requests, oldest first.
func (s *Service) ListPending(ctx context.Context, agencyID uuid.UUID) ([]repository.Request, error) {
	return s.store.ListPending(ctx, agencyID)
}
