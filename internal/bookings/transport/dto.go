// Package transport defines the request/response DTOs and captured approval
// payloads for the bookings module.
package transport

import (
	"time"

	"tripdesk_backend/internal/bookings/repository"

	"github.com/google/uuid"
)

// DateLayout is the wire format for date fields.
const DateLayout = "2006-01-02"

// UpdateBookingRequest carries a partial booking update. Nil fields are
// untouched.
type UpdateBookingRequest struct {
	SupplierName  *string `json:"supplierName"`
	Status        *string `json:"status"`
	PaymentStatus *string `json:"paymentStatus"`
}

// UpdateCommissionRequest carries a commission tracking update. Amounts are
// in cents; the received date travels as YYYY-MM-DD.
type UpdateCommissionRequest struct {
	Status           *string `json:"status"`
	AmountReceived   *int64  `json:"amountReceived"`
	ReceivedDate     *string `json:"receivedDate" validate:"omitempty,datetime=2006-01-02"`
	PaymentReference *string `json:"paymentReference"`
	VarianceNote     *string `json:"varianceNote"`
}

// BookingResponse is the API shape of a booking.
type BookingResponse struct {
	ID                       uuid.UUID `json:"id"`
	TripID                   uuid.UUID `json:"tripId"`
	SupplierName             string    `json:"supplierName"`
	Status                   string    `json:"status"`
	PaymentStatus            string    `json:"paymentStatus"`
	CommissionStatus         string    `json:"commissionStatus"`
	CommissionAmountExpected int64     `json:"commissionAmountExpected"`
	CommissionAmountReceived *int64    `json:"commissionAmountReceived,omitempty"`
	CommissionReceivedDate   *string   `json:"commissionReceivedDate,omitempty"`
	PaymentReference         *string   `json:"paymentReference,omitempty"`
	VarianceNote             *string   `json:"varianceNote,omitempty"`
	Variance                 *int64    `json:"variance,omitempty"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// ToBookingResponse maps the database model to the API shape. The variance is
// derived, never stored: received minus expected when a received amount exists.
func ToBookingResponse(b repository.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                       b.ID,
		TripID:                   b.TripID,
		SupplierName:             b.SupplierName,
		Status:                   b.Status,
		PaymentStatus:            b.PaymentStatus,
		CommissionStatus:         b.CommissionStatus,
		CommissionAmountExpected: b.CommissionAmountExpected,
		CommissionAmountReceived: b.CommissionAmountReceived,
		PaymentReference:         b.PaymentReference,
		VarianceNote:             b.VarianceNote,
		CreatedAt:                b.CreatedAt,
		UpdatedAt:                b.UpdatedAt,
	}
	if b.CommissionReceivedDate != nil {
		formatted := b.CommissionReceivedDate.Format(DateLayout)
		resp.CommissionReceivedDate = &formatted
	}
	if b.CommissionAmountReceived != nil {
		variance := *b.CommissionAmountReceived - b.CommissionAmountExpected
		resp.Variance = &variance
	}
	return resp
}

// ApprovalPendingResponse reports that the mutation was parked behind an
// approval request (HTTP 202).
type ApprovalPendingResponse struct {
	ApprovalRequired  bool      `json:"approvalRequired"`
	ApprovalRequestID uuid.UUID `json:"approvalRequestId"`
}

// BookingUpdatePayload is the change captured on a restricted booking update.
type BookingUpdatePayload struct {
	SupplierName  *string `json:"supplierName,omitempty"`
	Status        *string `json:"status,omitempty"`
	PaymentStatus *string `json:"paymentStatus,omitempty"`
}

// CommissionUpdatePayload is the change captured on a restricted commission
// update.
type CommissionUpdatePayload struct {
	Status           *string `json:"status,omitempty"`
	AmountReceived   *int64  `json:"amountReceived,omitempty"`
	ReceivedDate     *string `json:"receivedDate,omitempty"`
	PaymentReference *string `json:"paymentReference,omitempty"`
	VarianceNote     *string `json:"varianceNote,omitempty"`
}
