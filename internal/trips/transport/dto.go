// Package transport defines the request/response DTOs and captured approval
// payloads for the trips module.
package transport

import (
	"time"

	"tripdesk_backend/internal/trips/repository"

	"github.com/google/uuid"
)

// DateLayout is the wire format for trip date fields.
const DateLayout = "2006-01-02"

// UpdateStageRequest asks for a stage transition.
type UpdateStageRequest struct {
	Stage  string  `json:"stage" binding:"required"`
	Reason *string `json:"reason"`
}

// UpdateTripRequest carries a partial trip update. Nil fields are untouched.
// Dates travel as YYYY-MM-DD strings.
type UpdateTripRequest struct {
	Name                *string    `json:"name"`
	AssignedUserID      *uuid.UUID `json:"assignedUserId"`
	Destination         *string    `json:"destination"`
	StartDate           *string    `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate             *string    `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	DepositDueDate      *string    `json:"depositDueDate" validate:"omitempty,datetime=2006-01-02"`
	FinalPaymentDueDate *string    `json:"finalPaymentDueDate" validate:"omitempty,datetime=2006-01-02"`
	ChangeReason        *string    `json:"changeReason"`
}

// TripResponse is the API shape of a trip.
type TripResponse struct {
	ID                  uuid.UUID  `json:"id"`
	AgencyID            uuid.UUID  `json:"agencyId"`
	ClientID            uuid.UUID  `json:"clientId"`
	AssignedUserID      uuid.UUID  `json:"assignedUserId"`
	Name                string     `json:"name"`
	Destination         string     `json:"destination"`
	TripType            string     `json:"tripType"`
	Stage               string     `json:"stage"`
	IsLocked            bool       `json:"isLocked"`
	LockReason          *string    `json:"lockReason,omitempty"`
	StartDate           *string    `json:"startDate,omitempty"`
	EndDate             *string    `json:"endDate,omitempty"`
	DepositDueDate      *string    `json:"depositDueDate,omitempty"`
	FinalPaymentDueDate *string    `json:"finalPaymentDueDate,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// ToTripResponse maps the database model to the API shape.
func ToTripResponse(t repository.Trip) TripResponse {
	return TripResponse{
		ID:                  t.ID,
		AgencyID:            t.AgencyID,
		ClientID:            t.ClientID,
		AssignedUserID:      t.AssignedUserID,
		Name:                t.Name,
		Destination:         t.Destination,
		TripType:            t.TripType,
		Stage:               t.Stage,
		IsLocked:            t.IsLocked,
		LockReason:          t.LockReason,
		StartDate:           formatDate(t.StartDate),
		EndDate:             formatDate(t.EndDate),
		DepositDueDate:      formatDate(t.DepositDueDate),
		FinalPaymentDueDate: formatDate(t.FinalPaymentDueDate),
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// StageChangeResponse reports an applied transition.
type StageChangeResponse struct {
	Trip          TripResponse `json:"trip"`
	PreviousStage string       `json:"previousStage"`
	NewStage      string       `json:"newStage"`
}

// ApprovalPendingResponse reports that the mutation was parked behind an
// approval request (HTTP 202).
type ApprovalPendingResponse struct {
	ApprovalRequired  bool      `json:"approvalRequired"`
	ApprovalRequestID uuid.UUID `json:"approvalRequestId"`
}

// StageChangePayload is the change captured on a restricted stage transition.
// Resolution applies TargetStage exactly as captured, never re-derived.
type StageChangePayload struct {
	TargetStage string  `json:"targetStage"`
	Reason      *string `json:"reason,omitempty"`
}

// FieldChangePayload is one captured field diff.
type FieldChangePayload struct {
	Field    string  `json:"field"`
	OldValue *string `json:"oldValue"`
	NewValue *string `json:"newValue"`
}

// FieldUpdatePayload is the change set captured on a locked-field update.
type FieldUpdatePayload struct {
	Changes []FieldChangePayload `json:"changes"`
	Reason  *string              `json:"reason,omitempty"`
}
