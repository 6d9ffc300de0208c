package service

import (
	"context"

	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/trips/repository"
	"tripdesk_backend/internal/trips/transport"

	"github.com/google/uuid"
)

// ReapplyStageChange applies an approved stage change inside the resolution
// transaction. The captured target stage is applied verbatim; the returned
// function runs the usual post-commit side effects and must only be called
// after the transaction commits.
func (s *Service) ReapplyStageChange(ctx context.Context, tx audit.DBTX, agencyID, tripID, approvedBy uuid.UUID, payload transport.StageChangePayload) (func(context.Context), error) {
	result, err := s.applyStageTx(ctx, tx, repository.ApplyStageChangeParams{
		AgencyID: agencyID,
		TripID:   tripID,
		ActorID:  approvedBy,
		ToStage:  payload.TargetStage,
		Reason:   payload.Reason,
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) {
		s.afterStageChange(ctx, approvedBy, result)
	}, nil
}

// ReapplyFieldUpdate applies an approved locked-field change set inside the
// resolution transaction. Field updates have no post-commit side effects.
func (s *Service) ReapplyFieldUpdate(ctx context.Context, tx audit.DBTX, agencyID, tripID, approvedBy uuid.UUID, payload transport.FieldUpdatePayload) (func(context.Context), error) {
	changes := make([]repository.FieldChange, 0, len(payload.Changes))
	for _, c := range payload.Changes {
		changes = append(changes, repository.FieldChange{
			Field:    c.Field,
			OldValue: c.OldValue,
			NewValue: c.NewValue,
		})
	}

	_, err := s.applyFieldTx(ctx, tx, repository.ApplyFieldUpdateParams{
		AgencyID:    agencyID,
		TripID:      tripID,
		ActorID:     approvedBy,
		Changes:     changes,
		AuditAction: audit.ActionFieldUpdate,
		Reason:      payload.Reason,
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}
