// Package inapp provides deduplicated per-user notifications. Creation is
// keyed by a deterministic event key so repeated condition checks (periodic
// deadline scans, re-fired approval fan-outs) never stack duplicate alerts.
package inapp

import (
	"context"
	"time"

	"tripdesk_backend/platform/apperr"
	"tripdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Service provides notification business logic.
type Service struct {
	repo *Repository
	log  *logger.Logger
}

// NewService creates a notification service.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateForUsersParams fans one notification out to a set of users.
type CreateForUsersParams struct {
	AgencyID   uuid.UUID
	UserIDs    []uuid.UUID
	Type       string // TypeUrgent or TypeNormal
	Title      string
	Message    string
	EntityType string
	EntityID   uuid.UUID
	EventType  string // combined with entity ref into the event key
}

// CreateForUsers inserts one row per user, skipping users who already hold an
// active notification with the same event key. Safe to call repeatedly for
// the same underlying condition. Returns the number of rows actually created.
func (s *Service) CreateForUsers(ctx context.Context, p CreateForUsersParams) (int, error) {
	if s == nil || s.repo == nil {
		return 0, apperr.Internal("notification service not configured")
	}

	if p.Type == "" {
		p.Type = TypeNormal
	}

	eventKey := EventKey(p.EventType, p.EntityType, p.EntityID)

	var entityType *string
	var entityID *uuid.UUID
	if p.EntityType != "" {
		entityType = &p.EntityType
		entityID = &p.EntityID
	}

	created := 0
	for _, userID := range p.UserIDs {
		inserted, err := s.repo.Create(ctx, CreateParams{
			AgencyID:   p.AgencyID,
			UserID:     userID,
			Type:       p.Type,
			Title:      p.Title,
			Message:    p.Message,
			EntityType: entityType,
			EntityID:   entityID,
			EventKey:   eventKey,
		})
		if err != nil {
			if s.log != nil {
				s.log.Error("failed to persist notification", "error", err, "userId", userID, "eventKey", eventKey)
			}
			return created, err
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

// List returns a page of the user's active notifications.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return s.repo.List(ctx, userID, pageSize, (page-1)*pageSize)
}

// CountUnread returns the user's unread active notification count.
func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// MarkAllRead marks every notification of the user read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

// Dismiss hides one notification permanently.
func (s *Service) Dismiss(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Dismiss(ctx, userID, id)
}

// Snooze hides one notification until the given time.
func (s *Service) Snooze(ctx context.Context, userID, id uuid.UUID, until time.Time) error {
	if !until.After(time.Now()) {
		return apperr.Validation("snooze time must be in the future")
	}
	return s.repo.Snooze(ctx, userID, id, until)
}
