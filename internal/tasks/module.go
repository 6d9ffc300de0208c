// Package tasks provides trip follow-up tasks: system-generated rows from
// stage transitions plus manual completion through the API.
package tasks

import (
	"net/http"

	apphttp "tripdesk_backend/internal/http"
	"tripdesk_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the tasks domain module. The module is small enough that
// the handler lives here rather than in a subpackage.
type Module struct {
	repo *Repository
}

// NewModule creates a tasks module.
func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{repo: New(pool)}
}

// Repository exposes the task store for the side-effect scheduler.
func (m *Module) Repository() *Repository {
	return m.repo
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "tasks"
}

// RegisterRoutes registers the module's routes under /api/v1/tasks.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rg := ctx.Protected.Group("/tasks")
	rg.GET("", m.listByTrip)
	rg.PATCH("/:id/done", m.markDone)
}

func (m *Module) listByTrip(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	tripID, err := uuid.Parse(c.Query("tripId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "tripId query parameter is required", nil)
		return
	}

	items, err := m.repo.ListByTrip(c.Request.Context(), identity.AgencyID(), tripID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (m *Module) markDone(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid task id", nil)
		return
	}

	if err := m.repo.MarkDone(c.Request.Context(), identity.AgencyID(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
