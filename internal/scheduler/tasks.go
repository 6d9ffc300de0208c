package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPaymentDeadline = "trips.payment.deadline"

const TaskEmailSend = "email.queue.send"

type PaymentDeadlinePayload struct {
	TripID         string `json:"tripId"`
	AgencyID       string `json:"agencyId"`
	AssignedUserID string `json:"assignedUserId"`
	TripName       string `json:"tripName"`
	DeadlineType   string `json:"deadlineType"` // deposit or final_payment
	DueDate        string `json:"dueDate"`      // YYYY-MM-DD
}

type EmailSendPayload struct {
	ItemID  string `json:"itemId"`
	ToEmail string `json:"toEmail"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewPaymentDeadlineTask(payload PaymentDeadlinePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentDeadline, data), nil
}

func ParsePaymentDeadlinePayload(task *asynq.Task) (PaymentDeadlinePayload, error) {
	var payload PaymentDeadlinePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PaymentDeadlinePayload{}, err
	}
	return payload, nil
}

func NewEmailSendTask(payload EmailSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailSend, data), nil
}

func ParseEmailSendPayload(task *asynq.Task) (EmailSendPayload, error) {
	var payload EmailSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EmailSendPayload{}, err
	}
	return payload, nil
}
