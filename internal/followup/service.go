// Package followup generates the side effects of confirmed stage transitions:
// follow-up tasks with agency-configurable due dates and template-driven
// client emails. Everything here is best-effort: the triggering transaction
// has already committed, so failures are logged and swallowed, never returned.
package followup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tripdesk_backend/internal/email/queue"
	"tripdesk_backend/internal/tasks"
	"tripdesk_backend/internal/trips/domain"
	"tripdesk_backend/platform/logger"
	"tripdesk_backend/platform/validator"

	"github.com/google/uuid"
)

// commissionFollowUpDays is the due-date offset of the consolidated
// commission chase task created when a trip completes.
const commissionFollowUpDays = 7

// StageEvent describes a confirmed stage transition.
type StageEvent struct {
	TripID         uuid.UUID
	AgencyID       uuid.UUID
	ClientID       uuid.UUID
	AssignedUserID uuid.UUID
	TripName       string
	Destination    string
	TripType       string
	Stage          string
}

// TaskCreator is the slice of the tasks store this service writes through.
type TaskCreator interface {
	Create(ctx context.Context, p tasks.CreateParams) (tasks.Task, error)
}

// EmailEnqueuer is the slice of the email queue this service writes through.
type EmailEnqueuer interface {
	ListStageTemplates(ctx context.Context, agencyID uuid.UUID, tripType, stage string) ([]queue.Template, error)
	Enqueue(ctx context.Context, p queue.EnqueueParams) (uuid.UUID, error)
}

// Reader is the slice of the followup repository this service reads through.
type Reader interface {
	GetTaskOffsets(ctx context.Context, agencyID uuid.UUID) (TaskOffsets, error)
	ListOutstandingCommissions(ctx context.Context, tripID uuid.UUID) ([]OutstandingCommission, error)
	GetClientContact(ctx context.Context, clientID uuid.UUID) (ClientContact, error)
}

// Service is the side-effect scheduler.
type Service struct {
	reader Reader
	tasks  TaskCreator
	emails EmailEnqueuer
	val    *validator.Validator
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a side-effect scheduler.
func NewService(reader Reader, taskCreator TaskCreator, emails EmailEnqueuer, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{
		reader: reader,
		tasks:  taskCreator,
		emails: emails,
		val:    val,
		log:    log,
		now:    time.Now,
	}
}

// OnStageReached runs the side effects of a confirmed transition. It never
// returns an error: the primary mutation has committed and a broken template
// or a failed insert must not surface as a request failure.
func (s *Service) OnStageReached(ctx context.Context, ev StageEvent) {
	s.createStageTask(ctx, ev)

	if ev.Stage == domain.StageCompleted {
		s.createCommissionFollowUp(ctx, ev)
	}

	s.enqueueStageEmails(ctx, ev)
}

func (s *Service) createStageTask(ctx context.Context, ev StageEvent) {
	category, ok := stageTaskCategories[ev.Stage]
	if !ok {
		return
	}

	offsets, err := s.reader.GetTaskOffsets(ctx, ev.AgencyID)
	if err != nil {
		s.log.SideEffectError("followup", "load task offsets", err)
		offsets = DefaultTaskOffsets
	}

	days, _ := offsets.Days(ev.Stage)
	due := s.now().AddDate(0, 0, days)

	_, err = s.tasks.Create(ctx, tasks.CreateParams{
		AgencyID:          ev.AgencyID,
		TripID:            &ev.TripID,
		AssignedUserID:    &ev.AssignedUserID,
		Title:             fmt.Sprintf("%s: %s", stageTaskTitles[ev.Stage], ev.TripName),
		Description:       fmt.Sprintf("Trip %q reached stage %s.", ev.TripName, ev.Stage),
		Category:          category,
		DueDate:           due,
		IsSystemGenerated: true,
	})
	if err != nil {
		s.log.SideEffectError("followup", "create stage task", err)
	}
}

func (s *Service) createCommissionFollowUp(ctx context.Context, ev StageEvent) {
	outstanding, err := s.reader.ListOutstandingCommissions(ctx, ev.TripID)
	if err != nil {
		s.log.SideEffectError("followup", "list outstanding commissions", err)
		return
	}
	if len(outstanding) == 0 {
		return
	}

	var total int64
	lines := make([]string, 0, len(outstanding))
	for _, oc := range outstanding {
		total += oc.ExpectedCents
		lines = append(lines, fmt.Sprintf("- %s: %s expected (booking %s)",
			oc.SupplierName, formatCents(oc.ExpectedCents), oc.BookingID))
	}

	description := fmt.Sprintf("Outstanding commissions for trip %q, %s total:\n%s",
		ev.TripName, formatCents(total), strings.Join(lines, "\n"))

	_, err = s.tasks.Create(ctx, tasks.CreateParams{
		AgencyID:          ev.AgencyID,
		TripID:            &ev.TripID,
		AssignedUserID:    &ev.AssignedUserID,
		Title:             fmt.Sprintf("Chase outstanding commissions: %s", ev.TripName),
		Description:       description,
		Category:          tasks.CategoryFollowUp,
		DueDate:           s.now().AddDate(0, 0, commissionFollowUpDays),
		IsSystemGenerated: true,
	})
	if err != nil {
		s.log.SideEffectError("followup", "create commission follow-up task", err)
	}
}

// enqueueStageEmails enqueues one pending email per matching active template.
// Multiple matching templates each get a row; capping to one send per
// transition is a template configuration concern, not enforced here.
func (s *Service) enqueueStageEmails(ctx context.Context, ev StageEvent) {
	templates, err := s.emails.ListStageTemplates(ctx, ev.AgencyID, ev.TripType, ev.Stage)
	if err != nil {
		s.log.SideEffectError("followup", "list stage templates", err)
		return
	}
	if len(templates) == 0 {
		return
	}

	contact, err := s.reader.GetClientContact(ctx, ev.ClientID)
	if err != nil {
		s.log.SideEffectError("followup", "load client contact", err)
		return
	}
	if contact.Email == "" {
		return
	}
	if err := s.val.Var(contact.Email, "email"); err != nil {
		s.log.SideEffectError("followup", "validate client email", err)
		return
	}

	for _, tpl := range templates {
		templateID := tpl.ID
		_, err := s.emails.Enqueue(ctx, queue.EnqueueParams{
			AgencyID:    ev.AgencyID,
			TripID:      &ev.TripID,
			TemplateID:  &templateID,
			ToEmail:     contact.Email,
			Subject:     renderTemplate(tpl.Subject, ev, contact),
			Body:        renderTemplate(tpl.Body, ev, contact),
			ScheduledAt: s.now(),
		})
		if err != nil {
			s.log.SideEffectError("followup", "enqueue stage email", err)
		}
	}
}

// renderTemplate substitutes the supported placeholders.
func renderTemplate(text string, ev StageEvent, contact ClientContact) string {
	return strings.NewReplacer(
		"{{client_name}}", contact.Name,
		"{{trip_name}}", ev.TripName,
		"{{destination}}", ev.Destination,
		"{{stage}}", ev.Stage,
	).Replace(text)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}
