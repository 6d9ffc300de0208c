package followup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tripdesk_backend/internal/email/queue"
	"tripdesk_backend/internal/tasks"
	"tripdesk_backend/internal/trips/domain"
	"tripdesk_backend/platform/logger"
	"tripdesk_backend/platform/validator"

	"github.com/google/uuid"
)

type fakeReader struct {
	offsets     TaskOffsets
	offsetsErr  error
	outstanding []OutstandingCommission
	contact     ClientContact
}

func (f *fakeReader) GetTaskOffsets(ctx context.Context, agencyID uuid.UUID) (TaskOffsets, error) {
	if f.offsetsErr != nil {
		return TaskOffsets{}, f.offsetsErr
	}
	return f.offsets, nil
}

func (f *fakeReader) ListOutstandingCommissions(ctx context.Context, tripID uuid.UUID) ([]OutstandingCommission, error) {
	return f.outstanding, nil
}

func (f *fakeReader) GetClientContact(ctx context.Context, clientID uuid.UUID) (ClientContact, error) {
	return f.contact, nil
}

type fakeTaskCreator struct {
	created []tasks.CreateParams
}

func (f *fakeTaskCreator) Create(ctx context.Context, p tasks.CreateParams) (tasks.Task, error) {
	f.created = append(f.created, p)
	return tasks.Task{ID: uuid.New()}, nil
}

type fakeEmailEnqueuer struct {
	templates []queue.Template
	enqueued  []queue.EnqueueParams
}

func (f *fakeEmailEnqueuer) ListStageTemplates(ctx context.Context, agencyID uuid.UUID, tripType, stage string) ([]queue.Template, error) {
	return f.templates, nil
}

func (f *fakeEmailEnqueuer) Enqueue(ctx context.Context, p queue.EnqueueParams) (uuid.UUID, error) {
	f.enqueued = append(f.enqueued, p)
	return uuid.New(), nil
}

func testEvent(stage string) StageEvent {
	return StageEvent{
		TripID:         uuid.New(),
		AgencyID:       uuid.New(),
		ClientID:       uuid.New(),
		AssignedUserID: uuid.New(),
		TripName:       "Maldives getaway",
		Destination:    "Malé",
		TripType:       "leisure",
		Stage:          stage,
	}
}

func newTestService(reader *fakeReader, creator *fakeTaskCreator, emails *fakeEmailEnqueuer) *Service {
	svc := NewService(reader, creator, emails, validator.New(), logger.New("test"))
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestOnStageReachedCreatesStageTask(t *testing.T) {
	reader := &fakeReader{offsets: TaskOffsets{Booked: 2}}
	creator := &fakeTaskCreator{}
	emails := &fakeEmailEnqueuer{}
	svc := newTestService(reader, creator, emails)

	ev := testEvent(domain.StageBooked)
	svc.OnStageReached(context.Background(), ev)

	if len(creator.created) != 1 {
		t.Fatalf("expected one task, got %d", len(creator.created))
	}
	task := creator.created[0]
	if !strings.HasSuffix(task.Title, ev.TripName) {
		t.Fatalf("expected the trip name in the title, got %q", task.Title)
	}
	if task.Category != "internal" {
		t.Fatalf("expected the booked-stage category, got %q", task.Category)
	}
	if !task.IsSystemGenerated {
		t.Fatal("expected a system-generated task")
	}
	want := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)
	if !task.DueDate.Equal(want) {
		t.Fatalf("expected due date offset by 2 days, got %v", task.DueDate)
	}
}

func TestOnStageReachedFallsBackToDefaultOffsets(t *testing.T) {
	reader := &fakeReader{offsetsErr: errors.New("settings unavailable")}
	creator := &fakeTaskCreator{}
	svc := newTestService(reader, creator, &fakeEmailEnqueuer{})

	svc.OnStageReached(context.Background(), testEvent(domain.StageQuoted))

	if len(creator.created) != 1 {
		t.Fatalf("expected one task despite the settings error, got %d", len(creator.created))
	}
	want := time.Date(2026, 9, 4, 12, 0, 0, 0, time.UTC) // default quoted offset of 3 days
	if !creator.created[0].DueDate.Equal(want) {
		t.Fatalf("expected the default offset, got %v", creator.created[0].DueDate)
	}
}

func TestOnStageReachedSkipsNonGeneratingStages(t *testing.T) {
	creator := &fakeTaskCreator{}
	svc := newTestService(&fakeReader{}, creator, &fakeEmailEnqueuer{})

	svc.OnStageReached(context.Background(), testEvent(domain.StageCanceled))

	if len(creator.created) != 0 {
		t.Fatalf("expected no task for canceled, got %d", len(creator.created))
	}
}

func TestCompletedStageCreatesCommissionFollowUp(t *testing.T) {
	bookingID := uuid.New()
	reader := &fakeReader{
		offsets: DefaultTaskOffsets,
		outstanding: []OutstandingCommission{
			{BookingID: bookingID, SupplierName: "Island Resort", ExpectedCents: 150000},
			{BookingID: uuid.New(), SupplierName: "Sea Air", ExpectedCents: 42050},
		},
	}
	creator := &fakeTaskCreator{}
	svc := newTestService(reader, creator, &fakeEmailEnqueuer{})

	svc.OnStageReached(context.Background(), testEvent(domain.StageCompleted))

	if len(creator.created) != 2 {
		t.Fatalf("expected the stage task plus a commission follow-up, got %d", len(creator.created))
	}
	chase := creator.created[1]
	if !strings.HasPrefix(chase.Title, "Chase outstanding commissions") {
		t.Fatalf("unexpected follow-up title: %q", chase.Title)
	}
	if !strings.Contains(chase.Description, "1921.50 total") {
		t.Fatalf("expected the aggregated total in the description, got %q", chase.Description)
	}
	if !strings.Contains(chase.Description, "Island Resort: 1500.00 expected") {
		t.Fatalf("expected the per-booking line, got %q", chase.Description)
	}
}

func TestCompletedStageWithoutOutstandingCommissionsSkipsFollowUp(t *testing.T) {
	reader := &fakeReader{offsets: DefaultTaskOffsets}
	creator := &fakeTaskCreator{}
	svc := newTestService(reader, creator, &fakeEmailEnqueuer{})

	svc.OnStageReached(context.Background(), testEvent(domain.StageCompleted))

	if len(creator.created) != 1 {
		t.Fatalf("expected only the stage task, got %d", len(creator.created))
	}
}

func TestStageEmailsRenderTemplatesPerMatch(t *testing.T) {
	reader := &fakeReader{
		offsets: DefaultTaskOffsets,
		contact: ClientContact{Name: "Ada", Email: "ada@example.com"},
	}
	emails := &fakeEmailEnqueuer{
		templates: []queue.Template{
			{ID: uuid.New(), Subject: "Your trip {{trip_name}}", Body: "Hi {{client_name}}, {{destination}} awaits in stage {{stage}}."},
			{ID: uuid.New(), Subject: "Reminder", Body: "Second template"},
		},
	}
	svc := newTestService(reader, &fakeTaskCreator{}, emails)

	ev := testEvent(domain.StageBooked)
	svc.OnStageReached(context.Background(), ev)

	if len(emails.enqueued) != 2 {
		t.Fatalf("expected one email per matching template, got %d", len(emails.enqueued))
	}
	first := emails.enqueued[0]
	if first.ToEmail != "ada@example.com" {
		t.Fatalf("unexpected recipient: %s", first.ToEmail)
	}
	if first.Subject != "Your trip Maldives getaway" {
		t.Fatalf("unexpected rendered subject: %q", first.Subject)
	}
	if !strings.Contains(first.Body, "Hi Ada, Malé awaits in stage booked.") {
		t.Fatalf("unexpected rendered body: %q", first.Body)
	}
}

func TestStageEmailsSkipClientsWithoutAddress(t *testing.T) {
	reader := &fakeReader{offsets: DefaultTaskOffsets, contact: ClientContact{Name: "Ada"}}
	emails := &fakeEmailEnqueuer{
		templates: []queue.Template{{ID: uuid.New(), Subject: "s", Body: "b"}},
	}
	svc := newTestService(reader, &fakeTaskCreator{}, emails)

	svc.OnStageReached(context.Background(), testEvent(domain.StageBooked))

	if len(emails.enqueued) != 0 {
		t.Fatal("expected no email without a client address")
	}
}
