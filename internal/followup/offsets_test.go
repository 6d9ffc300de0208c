package followup

import (
	"testing"

	"tripdesk_backend/internal/trips/domain"
)

func TestTaskOffsetsDays(t *testing.T) {
	offsets := TaskOffsets{Quoted: 2, Booked: 4, FinalPaymentPending: 10, Traveling: 1, Completed: 5}

	cases := []struct {
		stage string
		want  int
	}{
		{domain.StageQuoted, 2},
		{domain.StageBooked, 4},
		{domain.StageFinalPaymentPending, 10},
		{domain.StageTraveling, 1},
		{domain.StageCompleted, 5},
	}

	for _, c := range cases {
		got, ok := offsets.Days(c.stage)
		if !ok {
			t.Fatalf("expected stage %s to generate a task", c.stage)
		}
		if got != c.want {
			t.Fatalf("stage %s: expected offset %d, got %d", c.stage, c.want, got)
		}
	}
}

func TestTaskOffsetsDaysNonGeneratingStages(t *testing.T) {
	for _, stage := range []string{domain.StageInquiry, domain.StageCanceled, domain.StageArchived} {
		if _, ok := DefaultTaskOffsets.Days(stage); ok {
			t.Fatalf("expected stage %s to generate no task", stage)
		}
	}
}

func TestStageTaskTablesCoverSameStages(t *testing.T) {
	for stage := range stageTaskTitles {
		if _, ok := stageTaskCategories[stage]; !ok {
			t.Fatalf("stage %s has a title but no category", stage)
		}
		if _, ok := DefaultTaskOffsets.Days(stage); !ok {
			t.Fatalf("stage %s has a title but no offset", stage)
		}
	}
}
