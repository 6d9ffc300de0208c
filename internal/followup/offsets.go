package followup

import "tripdesk_backend/internal/trips/domain"

// TaskOffsets holds the per-stage follow-up task due-date offsets in days.
// Agencies override the defaults in agency_settings.
type TaskOffsets struct {
	Quoted              int
	Booked              int
	FinalPaymentPending int
	Traveling           int
	Completed           int
}

// DefaultTaskOffsets are the stock offsets used when an agency has no
// settings row.
var DefaultTaskOffsets = TaskOffsets{
	Quoted:              3,
	Booked:              1,
	FinalPaymentPending: 7,
	Traveling:           0,
	Completed:           3,
}

// Days returns the offset for a stage and whether the stage generates a task.
func (o TaskOffsets) Days(stage string) (int, bool) {
	switch stage {
	case domain.StageQuoted:
		return o.Quoted, true
	case domain.StageBooked:
		return o.Booked, true
	case domain.StageFinalPaymentPending:
		return o.FinalPaymentPending, true
	case domain.StageTraveling:
		return o.Traveling, true
	case domain.StageCompleted:
		return o.Completed, true
	default:
		return 0, false
	}
}

// stageTaskCategories maps each task-generating stage to its task category.
var stageTaskCategories = map[string]string{
	domain.StageQuoted:              "follow_up",
	domain.StageBooked:              "internal",
	domain.StageFinalPaymentPending: "payment",
	domain.StageTraveling:           "client_request",
	domain.StageCompleted:           "follow_up",
}

// stageTaskTitles maps each task-generating stage to the generated task title.
var stageTaskTitles = map[string]string{
	domain.StageQuoted:              "Follow up on quote",
	domain.StageBooked:              "Verify booking confirmations",
	domain.StageFinalPaymentPending: "Chase final payment",
	domain.StageTraveling:           "Check in with traveling client",
	domain.StageCompleted:           "Request post-trip feedback",
}
