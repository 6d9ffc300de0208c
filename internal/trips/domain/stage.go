package domain

// Trip lifecycle stages. A trip is created in StageInquiry and moves through
// explicit transitions only; the lock flag is always derived, never set by hand.
const (
	StageInquiry             = "inquiry"
	StageQuoted              = "quoted"
	StageBooked              = "booked"
	StageFinalPaymentPending = "final_payment_pending"
	StageTraveling           = "traveling"
	StageCompleted           = "completed"
	StageCanceled            = "canceled"
	StageArchived            = "archived"
)

var knownStages = map[string]struct{}{
	StageInquiry:             {},
	StageQuoted:              {},
	StageBooked:              {},
	StageFinalPaymentPending: {},
	StageTraveling:           {},
	StageCompleted:           {},
	StageCanceled:            {},
	StageArchived:            {},
}

// closedStages are terminal stages. Leaving completed or canceled is a reopen;
// archived trips reject mutations outright.
var closedStages = map[string]struct{}{
	StageCompleted: {},
	StageCanceled:  {},
	StageArchived:  {},
}

// financialTransitions are the money-committing forward moves that only an
// admin may apply directly.
var financialTransitions = map[[2]string]struct{}{
	{StageQuoted, StageBooked}:                 {},
	{StageBooked, StageFinalPaymentPending}:    {},
	{StageFinalPaymentPending, StageTraveling}: {},
}

// IsKnownStage reports whether stage is a valid lifecycle stage.
func IsKnownStage(stage string) bool {
	_, ok := knownStages[stage]
	return ok
}

// IsClosedStage reports whether stage is terminal.
func IsClosedStage(stage string) bool {
	_, ok := closedStages[stage]
	return ok
}

// TransitionKind classifies a stage transition for approval routing.
type TransitionKind int

const (
	// TransitionPlain needs no special handling; any role applies it directly.
	TransitionPlain TransitionKind = iota
	// TransitionFinancial commits money; non-admins need approval.
	TransitionFinancial
	// TransitionReopen leaves a terminal stage; it always needs a reason and
	// non-admins need approval.
	TransitionReopen
)

// ClassifyTransition determines how a from→to stage change is gated.
// Callers must have validated both stages with IsKnownStage first.
func ClassifyTransition(from, to string) TransitionKind {
	if _, ok := financialTransitions[[2]string{from, to}]; ok {
		return TransitionFinancial
	}
	if (from == StageCompleted || from == StageCanceled) && !IsClosedStage(to) {
		return TransitionReopen
	}
	return TransitionPlain
}
