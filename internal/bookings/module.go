// Package bookings provides the bookings domain module: booking status and
// payment updates plus commission reconciliation.
package bookings

import (
	"tripdesk_backend/internal/bookings/handler"
	"tripdesk_backend/internal/bookings/repository"
	"tripdesk_backend/internal/bookings/service"
	apphttp "tripdesk_backend/internal/http"
	"tripdesk_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the bookings domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a bookings module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, gateway service.Gateway, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, gateway, log)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the bookings service for adapters and applier registration.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "bookings"
}

// RegisterRoutes registers the module's routes under /api/v1/bookings.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/bookings"))
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
