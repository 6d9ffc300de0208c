package inapp

import (
	"fmt"

	"github.com/google/uuid"
)

// Notification types.
const (
	TypeUrgent = "urgent"
	TypeNormal = "normal"
)

// EventKey builds the deterministic deduplication key for a notification.
// Two notifications about the same underlying condition always produce the
// same key, so periodic scans can re-fire without duplicating active alerts.
func EventKey(eventType, entityType string, entityID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", eventType, entityType, entityID)
}
