// Package approvals provides the approval request domain module: restricted
// actions attempted by non-admins are captured here and re-applied when an
// admin approves them. The policy table in this package decides which
// (entity, field, transition) combinations are restricted.
package approvals

import (
	"tripdesk_backend/internal/approvals/handler"
	"tripdesk_backend/internal/approvals/repository"
	"tripdesk_backend/internal/approvals/service"
	apphttp "tripdesk_backend/internal/http"
	"tripdesk_backend/internal/users"
	"tripdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the approvals domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates an approvals module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, notifier service.Notifier, log *logger.Logger) *Module {
	repo := repository.New(pool)
	userRepo := users.New(pool)
	svc := service.NewService(repo, userRepo, notifier, log)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the approvals service for adapters and applier registration.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "approvals"
}

// RegisterRoutes registers the module's routes under /api/v1/approval-requests.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/approval-requests"))
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
