// Package notification provides the deduplicated in-app notification module.
package notification

import (
	apphttp "tripdesk_backend/internal/http"
	"tripdesk_backend/internal/notification/handler"
	"tripdesk_backend/internal/notification/inapp"
	"tripdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the notification domain module.
type Module struct {
	handler *handler.Handler
	service *inapp.Service
}

// NewModule creates a notification module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := inapp.New(pool)
	svc := inapp.NewService(repo, log)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the notification service for other modules' fan-outs.
func (m *Module) Service() *inapp.Service {
	return m.service
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes registers the module's routes under /api/v1/notifications.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
