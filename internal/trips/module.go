// Package trips provides the trip lifecycle domain module.
package trips

import (
	"tripdesk_backend/internal/audit"
	apphttp "tripdesk_backend/internal/http"
	"tripdesk_backend/internal/trips/handler"
	"tripdesk_backend/internal/trips/repository"
	"tripdesk_backend/internal/trips/service"
	"tripdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the trips domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a trips module with all dependencies wired. The approval
// gateway, side-effect scheduler and notifier are passed in because they live
// in other modules; main wires them through adapters.
func NewModule(pool *pgxpool.Pool, gateway service.Gateway, sideEffects service.SideEffects, notifier service.Notifier, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, gateway, sideEffects, notifier, log)
	h := handler.New(svc, audit.New(pool))

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the lifecycle engine for adapters and applier registration.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "trips"
}

// RegisterRoutes registers the module's routes under /api/v1/trips.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/trips"))
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
