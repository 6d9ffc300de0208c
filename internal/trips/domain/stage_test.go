package domain

import "testing"

func TestClassifyTransitionFinancial(t *testing.T) {
	cases := [][2]string{
		{StageQuoted, StageBooked},
		{StageBooked, StageFinalPaymentPending},
		{StageFinalPaymentPending, StageTraveling},
	}

	for _, c := range cases {
		if got := ClassifyTransition(c[0], c[1]); got != TransitionFinancial {
			t.Fatalf("expected %s -> %s to be financial, got %v", c[0], c[1], got)
		}
	}
}

func TestClassifyTransitionReopen(t *testing.T) {
	if got := ClassifyTransition(StageCompleted, StageTraveling); got != TransitionReopen {
		t.Fatalf("expected completed -> traveling to be a reopen, got %v", got)
	}
	if got := ClassifyTransition(StageCanceled, StageInquiry); got != TransitionReopen {
		t.Fatalf("expected canceled -> inquiry to be a reopen, got %v", got)
	}
}

func TestClassifyTransitionBetweenTerminalStagesIsNotReopen(t *testing.T) {
	// completed -> archived stays inside the terminal set.
	if got := ClassifyTransition(StageCompleted, StageArchived); got != TransitionPlain {
		t.Fatalf("expected completed -> archived to be plain, got %v", got)
	}
}

func TestClassifyTransitionPlain(t *testing.T) {
	cases := [][2]string{
		{StageInquiry, StageQuoted},
		{StageQuoted, StageCanceled},
		{StageTraveling, StageCompleted},
		{StageBooked, StageQuoted}, // backward non-financial move
	}

	for _, c := range cases {
		if got := ClassifyTransition(c[0], c[1]); got != TransitionPlain {
			t.Fatalf("expected %s -> %s to be plain, got %v", c[0], c[1], got)
		}
	}
}

func TestIsClosedStage(t *testing.T) {
	for _, stage := range []string{StageCompleted, StageCanceled, StageArchived} {
		if !IsClosedStage(stage) {
			t.Fatalf("expected %s to be closed", stage)
		}
	}
	if IsClosedStage(StageTraveling) {
		t.Fatal("expected traveling to be open")
	}
}

func TestIsKnownStage(t *testing.T) {
	if !IsKnownStage(StageInquiry) {
		t.Fatal("expected inquiry to be known")
	}
	if IsKnownStage("on_hold") {
		t.Fatal("expected on_hold to be unknown")
	}
}
