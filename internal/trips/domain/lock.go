package domain

import "fmt"

// lockableStages are the stages in which full payment freezes the trip's
// committed core fields.
var lockableStages = map[string]struct{}{
	StageBooked:              {},
	StageFinalPaymentPending: {},
	StageTraveling:           {},
	StageCompleted:           {},
}

// BookingPaymentState is the slice of booking state the lock rule reads.
type BookingPaymentState struct {
	Status        string
	PaymentStatus string
}

// LockDecision is the derived protective state of a trip.
type LockDecision struct {
	Locked bool
	Reason *string
}

// ComputeLock derives the lock state of a trip from its stage and the payment
// state of its bookings. It is pure and always computed from scratch: callers
// overwrite the stored flag with the result rather than toggling it, so the
// stored state can never drift from the rule.
//
// A trip is locked iff its stage is lockable, it has at least one non-canceled
// booking, and every non-canceled booking is paid in full.
func ComputeLock(stage string, bookings []BookingPaymentState) LockDecision {
	if _, ok := lockableStages[stage]; !ok {
		return LockDecision{}
	}

	active := 0
	for _, b := range bookings {
		if b.Status == BookingStatusCanceled {
			continue
		}
		active++
		if b.PaymentStatus != PaymentPaidInFull {
			return LockDecision{}
		}
	}

	if active == 0 {
		return LockDecision{}
	}

	reason := fmt.Sprintf("all %d bookings paid in full", active)
	return LockDecision{Locked: true, Reason: &reason}
}

// IsLockableStage reports whether the stage participates in lock derivation.
func IsLockableStage(stage string) bool {
	_, ok := lockableStages[stage]
	return ok
}
