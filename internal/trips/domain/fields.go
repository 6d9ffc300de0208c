package domain

// Locked trip fields. When a trip is locked these may only change through an
// admin override or an approved modify_locked_trip request.
const (
	FieldDestination         = "destination"
	FieldStartDate           = "start_date"
	FieldEndDate             = "end_date"
	FieldDepositDueDate      = "deposit_due_date"
	FieldFinalPaymentDueDate = "final_payment_due_date"
)

// LockedFields lists every field covered by the lock, in a stable order so
// validation errors and change records are deterministic.
var LockedFields = []string{
	FieldDestination,
	FieldStartDate,
	FieldEndDate,
	FieldDepositDueDate,
	FieldFinalPaymentDueDate,
}

// NoReasonProvided is the sentinel recorded when an admin overrides a locked
// field without supplying a reason.
const NoReasonProvided = "no reason provided"
