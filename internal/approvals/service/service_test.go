package service

import (
	"context"
	"encoding/json"
	"testing"

	"tripdesk_backend/internal/approvals/repository"
	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/notification/inapp"
	"tripdesk_backend/internal/users"
	"tripdesk_backend/platform/apperr"
	"tripdesk_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	existing *repository.Request // pending row hit on duplicate submissions

	created  []repository.CreateParams
	resolved []repository.ResolveParams

	applyCalled bool
}

func (f *fakeStore) CreateOrGetPending(ctx context.Context, p repository.CreateParams) (repository.Request, bool, error) {
	if f.existing != nil {
		return *f.existing, false, nil
	}

	f.created = append(f.created, p)
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return repository.Request{}, false, err
	}
	return repository.Request{
		ID:          uuid.New(),
		AgencyID:    p.AgencyID,
		RequestedBy: p.RequestedBy,
		ActionType:  p.ActionType,
		EntityType:  p.EntityType,
		EntityID:    p.EntityID,
		Payload:     payload,
		Reason:      p.Reason,
		Status:      repository.StatusPending,
	}, true, nil
}

func (f *fakeStore) GetByID(ctx context.Context, agencyID, id uuid.UUID) (repository.Request, error) {
	if f.existing != nil {
		return *f.existing, nil
	}
	return repository.Request{}, apperr.NotFound("approval request not found")
}

func (f *fakeStore) ListPending(ctx context.Context, agencyID uuid.UUID) ([]repository.Request, error) {
	return nil, nil
}

func (f *fakeStore) Resolve(ctx context.Context, p repository.ResolveParams, apply repository.ApplyFunc) (repository.Request, error) {
	f.resolved = append(f.resolved, p)

	req := repository.Request{ID: p.RequestID, AgencyID: p.AgencyID, Status: repository.StatusPending}
	if f.existing != nil {
		req = *f.existing
	}

	if apply != nil {
		f.applyCalled = true
		if err := apply(ctx, nil, req, p.ResolvedBy); err != nil {
			return repository.Request{}, err
		}
	}

	req.Status = p.Decision
	req.ResolvedBy = &p.ResolvedBy
	return req, nil
}

type fakeAdmins struct {
	admins []users.User
}

func (f *fakeAdmins) ListActiveAdmins(ctx context.Context, agencyID uuid.UUID) ([]users.User, error) {
	return f.admins, nil
}

type fakeNotifier struct {
	calls []inapp.CreateForUsersParams
}

func (f *fakeNotifier) CreateForUsers(ctx context.Context, p inapp.CreateForUsersParams) (int, error) {
	f.calls = append(f.calls, p)
	return len(p.UserIDs), nil
}

type stagePayload struct {
	TargetStage string  `json:"targetStage"`
	Reason      *string `json:"reason"`
}

func TestCreateRequestNotifiesAdmins(t *testing.T) {
	store := &fakeStore{}
	admins := &fakeAdmins{admins: []users.User{{ID: uuid.New()}, {ID: uuid.New()}}}
	notifier := &fakeNotifier{}
	svc := NewService(store, admins, notifier, logger.New("test"))

	req, err := svc.CreateRequest(context.Background(), CreateRequestParams{
		AgencyID:    uuid.New(),
		RequestedBy: uuid.New(),
		ActionType:  "change_stage",
		EntityType:  "trip",
		EntityID:    uuid.New(),
		Payload:     stagePayload{TargetStage: "booked"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != repository.StatusPending {
		t.Fatalf("expected a pending request, got %s", req.Status)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one admin notification, got %d", len(notifier.calls))
	}
	if len(notifier.calls[0].UserIDs) != 2 {
		t.Fatalf("expected both admins notified, got %d", len(notifier.calls[0].UserIDs))
	}
}

func TestCreateRequestDuplicateSamePayloadReturnsExisting(t *testing.T) {
	payload, _ := json.Marshal(stagePayload{TargetStage: "booked"})
	existing := repository.Request{
		ID:      uuid.New(),
		Payload: payload,
		Status:  repository.StatusPending,
	}
	store := &fakeStore{existing: &existing}
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeAdmins{}, notifier, logger.New("test"))

	req, err := svc.CreateRequest(context.Background(), CreateRequestParams{
		AgencyID:   uuid.New(),
		ActionType: "change_stage",
		Payload:    stagePayload{TargetStage: "booked"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ID != existing.ID {
		t.Fatalf("expected the existing request, got %s", req.ID)
	}
	if len(notifier.calls) != 0 {
		t.Fatal("expected no second notification for a repeat submission")
	}
}

func TestCreateRequestDuplicateDifferentPayloadConflicts(t *testing.T) {
	payload, _ := json.Marshal(stagePayload{TargetStage: "booked"})
	existing := repository.Request{
		ID:      uuid.New(),
		Payload: payload,
		Status:  repository.StatusPending,
	}
	store := &fakeStore{existing: &existing}
	svc := NewService(store, &fakeAdmins{}, &fakeNotifier{}, logger.New("test"))

	_, err := svc.CreateRequest(context.Background(), CreateRequestParams{
		AgencyID:   uuid.New(),
		ActionType: "change_stage",
		Payload:    stagePayload{TargetStage: "traveling"},
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for a different payload, got %v", err)
	}
}

func TestResolveApproveRunsApplierAndPostCommit(t *testing.T) {
	payload, _ := json.Marshal(stagePayload{TargetStage: "booked"})
	requester := uuid.New()
	existing := repository.Request{
		ID:          uuid.New(),
		RequestedBy: requester,
		ActionType:  "change_stage",
		Payload:     payload,
		Status:      repository.StatusPending,
	}
	store := &fakeStore{existing: &existing}
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeAdmins{}, notifier, logger.New("test"))

	admin := uuid.New()
	var appliedBy uuid.UUID
	postCommitRan := false
	svc.RegisterApplier("change_stage", func(ctx context.Context, tx audit.DBTX, req repository.Request, resolvedBy uuid.UUID) (func(context.Context), error) {
		appliedBy = resolvedBy
		return func(context.Context) { postCommitRan = true }, nil
	})

	resolved, err := svc.Resolve(context.Background(), ResolveParams{
		AgencyID:   existing.AgencyID,
		RequestID:  existing.ID,
		ResolvedBy: admin,
		Approve:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != repository.StatusApproved {
		t.Fatalf("expected an approved request, got %s", resolved.Status)
	}
	if appliedBy != admin {
		t.Fatalf("expected the approving admin as actor, got %s", appliedBy)
	}
	if !postCommitRan {
		t.Fatal("expected the post-commit side effects to run")
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected the requester notified of the approval, got %d calls", len(notifier.calls))
	}
	if got := notifier.calls[0].UserIDs; len(got) != 1 || got[0] != requester {
		t.Fatalf("expected the notification targeted at the requester, got %v", got)
	}
}

func TestResolveApproveWithoutApplierFails(t *testing.T) {
	existing := repository.Request{
		ID:         uuid.New(),
		ActionType: "change_stage",
		Status:     repository.StatusPending,
	}
	store := &fakeStore{existing: &existing}
	svc := NewService(store, &fakeAdmins{}, &fakeNotifier{}, logger.New("test"))

	_, err := svc.Resolve(context.Background(), ResolveParams{
		RequestID: existing.ID,
		Approve:   true,
	})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error for a missing applier, got %v", err)
	}
}

func TestResolveDenySkipsApplierAndNotifiesRequester(t *testing.T) {
	requester := uuid.New()
	existing := repository.Request{
		ID:          uuid.New(),
		RequestedBy: requester,
		ActionType:  "change_stage",
		Status:      repository.StatusPending,
	}
	store := &fakeStore{existing: &existing}
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeAdmins{}, notifier, logger.New("test"))

	svc.RegisterApplier("change_stage", func(ctx context.Context, tx audit.DBTX, req repository.Request, resolvedBy uuid.UUID) (func(context.Context), error) {
		t.Fatal("applier must not run on denial")
		return nil, nil
	})

	resolved, err := svc.Resolve(context.Background(), ResolveParams{
		RequestID: existing.ID,
		Approve:   false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != repository.StatusDenied {
		t.Fatalf("expected a denied request, got %s", resolved.Status)
	}
	if store.applyCalled {
		t.Fatal("expected no apply function handed to the store on denial")
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected the requester notified of the denial, got %d calls", len(notifier.calls))
	}
	call := notifier.calls[0]
	if len(call.UserIDs) != 1 || call.UserIDs[0] != requester {
		t.Fatalf("expected the notification targeted at the requester, got %v", call.UserIDs)
	}
	if call.EventType != EventTypeApprovalResolved {
		t.Fatalf("expected event type %q, got %q", EventTypeApprovalResolved, call.EventType)
	}
}

func TestPayloadEqualIgnoresWhitespace(t *testing.T) {
	stored := json.RawMessage("{\n  \"targetStage\": \"booked\",\n  \"reason\": null\n}")

	same, err := payloadEqual(stored, stagePayload{TargetStage: "booked"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !same {
		t.Fatal("expected whitespace-only differences to compare equal")
	}

	different, err := payloadEqual(stored, stagePayload{TargetStage: "traveling"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if different {
		t.Fatal("expected a different target stage to compare unequal")
	}
}

func TestPayloadEqualSurvivesJSONBKeyReordering(t *testing.T) {
	// jsonb hands payloads back with object keys sorted by length then
	// bytewise, so the stored form never matches a fresh marshal byte for
	// byte once the payload has more than one key.
	stored := json.RawMessage(`{"reason": "client confirmed the quote", "targetStage": "booked"}`)
	reason := "client confirmed the quote"

	same, err := payloadEqual(stored, stagePayload{TargetStage: "booked", Reason: &reason})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !same {
		t.Fatal("expected the identical resubmission to compare equal against the stored payload")
	}
}

func TestCreateRequestDuplicateSurvivesJSONBKeyReordering(t *testing.T) {
	reason := "deposit has cleared"
	existing := repository.Request{
		ID:      uuid.New(),
		Payload: json.RawMessage(`{"reason": "deposit has cleared", "targetStage": "booked"}`),
		Status:  repository.StatusPending,
	}
	store := &fakeStore{existing: &existing}
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeAdmins{}, notifier, logger.New("test"))

	req, err := svc.CreateRequest(context.Background(), CreateRequestParams{
		AgencyID:   uuid.New(),
		ActionType: "change_stage",
		Payload:    stagePayload{TargetStage: "booked", Reason: &reason},
	})
	if err != nil {
		t.Fatalf("expected the existing request back, got %v", err)
	}
	if req.ID != existing.ID {
		t.Fatalf("expected the existing request, got %s", req.ID)
	}
	if len(notifier.calls) != 0 {
		t.Fatal("expected no second notification for a repeat submission")
	}
}
