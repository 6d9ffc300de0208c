// Package approvals provides the approval gateway: restricted mutations by
// non-admins are parked as pending requests and re-applied on approval.
package approvals

import (
	"tripdesk_backend/internal/trips/domain"
)

// Entity types gated by the approval workflow.
const (
	EntityTrip    = "trip"
	EntityBooking = "booking"
)

// Restricted action types. The action type keys pending-request deduplication
// and selects the applier that re-applies the captured change on approval.
const (
	ActionChangeStage      = "change_stage"
	ActionReopenTrip       = "reopen_trip"
	ActionModifyLockedTrip = "modify_locked_trip"
	ActionConfirmBooking   = "confirm_booking"
	ActionMarkPaidInFull   = "mark_paid_in_full"
	ActionUpdateCommission = "update_commission"
)

// Any matches every value in a policy rule.
const Any = "*"

// Rule declares that changing Field on EntityType from From to To is a
// restricted action. Both mutation paths (trips and bookings) consult the same
// table, so the definition of "restricted" cannot diverge between them.
type Rule struct {
	EntityType string
	Field      string
	From       string
	To         string
	Action     string
}

var rules = []Rule{
	{EntityBooking, "status", Any, domain.BookingStatusBooked, ActionConfirmBooking},
	{EntityBooking, "payment_status", Any, domain.PaymentPaidInFull, ActionMarkPaidInFull},
	{EntityBooking, "commission_status", Any, Any, ActionUpdateCommission},
}

var allStages = []string{
	domain.StageInquiry,
	domain.StageQuoted,
	domain.StageBooked,
	domain.StageFinalPaymentPending,
	domain.StageTraveling,
	domain.StageCompleted,
	domain.StageCanceled,
	domain.StageArchived,
}

// Trip stage rules are derived from the transition classifier so the policy
// table and the lifecycle engine cannot disagree about which transitions are
// financial or reopening.
func init() {
	for _, from := range allStages {
		for _, to := range allStages {
			if from == to {
				continue
			}
			switch domain.ClassifyTransition(from, to) {
			case domain.TransitionFinancial:
				rules = append(rules, Rule{EntityTrip, "stage", from, to, ActionChangeStage})
			case domain.TransitionReopen:
				rules = append(rules, Rule{EntityTrip, "stage", from, to, ActionReopenTrip})
			}
		}
	}
}

// RestrictedAction looks up the action type gating a field change.
// Returns false when the change is not restricted and may be applied by any role.
func RestrictedAction(entityType, field, from, to string) (string, bool) {
	for _, r := range rules {
		if r.EntityType != entityType || r.Field != field {
			continue
		}
		if r.From != Any && r.From != from {
			continue
		}
		if r.To != Any && r.To != to {
			continue
		}
		return r.Action, true
	}
	return "", false
}
