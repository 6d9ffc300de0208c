// Package transport defines the request/response payloads for the approvals API.
package transport

import (
	"encoding/json"
	"time"

	"tripdesk_backend/internal/approvals/repository"

	"github.com/google/uuid"
)

// ResolveRequest decides a pending approval request.
type ResolveRequest struct {
	Decision     string  `json:"decision" binding:"required,oneof=approved denied"`
	ResponseNote *string `json:"responseNote"`
}

// RequestResponse is the API shape of an approval request.
type RequestResponse struct {
	ID           uuid.UUID       `json:"id"`
	RequestedBy  uuid.UUID       `json:"requestedBy"`
	ActionType   string          `json:"actionType"`
	EntityType   string          `json:"entityType"`
	EntityID     uuid.UUID       `json:"entityId"`
	Payload      json.RawMessage `json:"payload"`
	Reason       *string         `json:"reason,omitempty"`
	Status       string          `json:"status"`
	ResolvedBy   *uuid.UUID      `json:"resolvedBy,omitempty"`
	ResolvedAt   *time.Time      `json:"resolvedAt,omitempty"`
	ResponseNote *string         `json:"responseNote,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ToRequestResponse maps the database model to the API shape.
func ToRequestResponse(req repository.Request) RequestResponse {
	return RequestResponse{
		ID:           req.ID,
		RequestedBy:  req.RequestedBy,
		ActionType:   req.ActionType,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		Payload:      req.Payload,
		Reason:       req.Reason,
		Status:       req.Status,
		ResolvedBy:   req.ResolvedBy,
		ResolvedAt:   req.ResolvedAt,
		ResponseNote: req.ResponseNote,
		CreatedAt:    req.CreatedAt,
	}
}

// ToRequestResponses maps a slice of requests.
func ToRequestResponses(reqs []repository.Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, ToRequestResponse(req))
	}
	return out
}
