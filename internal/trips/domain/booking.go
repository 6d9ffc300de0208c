package domain

// Booking statuses.
const (
	BookingStatusPlanned  = "planned"
	BookingStatusQuoted   = "quoted"
	BookingStatusBooked   = "booked"
	BookingStatusCanceled = "canceled"
)

// Booking payment statuses.
const (
	PaymentDepositPaid = "deposit_paid"
	PaymentFinalDue    = "final_due"
	PaymentPaidInFull  = "paid_in_full"
)

// Booking commission statuses.
const (
	CommissionExpected  = "expected"
	CommissionSubmitted = "submitted"
	CommissionPaid      = "paid"
)

var knownBookingStatuses = map[string]struct{}{
	BookingStatusPlanned:  {},
	BookingStatusQuoted:   {},
	BookingStatusBooked:   {},
	BookingStatusCanceled: {},
}

var knownPaymentStatuses = map[string]struct{}{
	PaymentDepositPaid: {},
	PaymentFinalDue:    {},
	PaymentPaidInFull:  {},
}

var knownCommissionStatuses = map[string]struct{}{
	CommissionExpected:  {},
	CommissionSubmitted: {},
	CommissionPaid:      {},
}

// IsKnownBookingStatus reports whether status is a valid booking status.
func IsKnownBookingStatus(status string) bool {
	_, ok := knownBookingStatuses[status]
	return ok
}

// IsKnownPaymentStatus reports whether status is a valid payment status.
func IsKnownPaymentStatus(status string) bool {
	_, ok := knownPaymentStatuses[status]
	return ok
}

// IsKnownCommissionStatus reports whether status is a valid commission status.
func IsKnownCommissionStatus(status string) bool {
	_, ok := knownCommissionStatuses[status]
	return ok
}
