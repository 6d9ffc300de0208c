package domain

import "testing"

func TestComputeLockAllPaidInFull(t *testing.T) {
	decision := ComputeLock(StageBooked, []BookingPaymentState{
		{Status: BookingStatusBooked, PaymentStatus: PaymentPaidInFull},
		{Status: BookingStatusBooked, PaymentStatus: PaymentPaidInFull},
	})

	if !decision.Locked {
		t.Fatal("expected trip to lock when every booking is paid in full")
	}
	if decision.Reason == nil || *decision.Reason != "all 2 bookings paid in full" {
		t.Fatalf("unexpected lock reason: %v", decision.Reason)
	}
}

func TestComputeLockIgnoresCanceledBookings(t *testing.T) {
	decision := ComputeLock(StageTraveling, []BookingPaymentState{
		{Status: BookingStatusBooked, PaymentStatus: PaymentPaidInFull},
		{Status: BookingStatusCanceled, PaymentStatus: PaymentDepositPaid},
	})

	if !decision.Locked {
		t.Fatal("expected canceled bookings to be excluded from the lock rule")
	}
	if decision.Reason == nil || *decision.Reason != "all 1 bookings paid in full" {
		t.Fatalf("unexpected lock reason: %v", decision.Reason)
	}
}

func TestComputeLockOneUnpaidBookingUnlocks(t *testing.T) {
	decision := ComputeLock(StageBooked, []BookingPaymentState{
		{Status: BookingStatusBooked, PaymentStatus: PaymentPaidInFull},
		{Status: BookingStatusBooked, PaymentStatus: PaymentFinalDue},
	})

	if decision.Locked {
		t.Fatal("expected one unpaid booking to keep the trip unlocked")
	}
	if decision.Reason != nil {
		t.Fatalf("expected no reason on an unlocked trip, got %q", *decision.Reason)
	}
}

func TestComputeLockNoActiveBookings(t *testing.T) {
	if ComputeLock(StageBooked, nil).Locked {
		t.Fatal("expected a trip without bookings to stay unlocked")
	}

	onlyCanceled := []BookingPaymentState{
		{Status: BookingStatusCanceled, PaymentStatus: PaymentPaidInFull},
	}
	if ComputeLock(StageBooked, onlyCanceled).Locked {
		t.Fatal("expected a trip with only canceled bookings to stay unlocked")
	}
}

func TestComputeLockNonLockableStage(t *testing.T) {
	paid := []BookingPaymentState{
		{Status: BookingStatusBooked, PaymentStatus: PaymentPaidInFull},
	}

	for _, stage := range []string{StageInquiry, StageQuoted, StageCanceled, StageArchived} {
		if ComputeLock(stage, paid).Locked {
			t.Fatalf("expected stage %s to never lock", stage)
		}
	}
}
