package handler

import (
	"net/http"

	"tripdesk_backend/internal/approvals/repository"
	"tripdesk_backend/internal/approvals/service"
	"tripdesk_backend/internal/approvals/transport"
	"tripdesk_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListPending)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/resolve", h.Resolve)
}

func (h *Handler) ListPending(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	requests, err := h.svc.ListPending(c.Request.Context(), identity.AgencyID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": transport.ToRequestResponses(requests)})
}

func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid approval request id", nil)
		return
	}

	req, err := h.svc.GetByID(c.Request.Context(), identity.AgencyID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToRequestResponse(req))
}

// Resolve approves or denies a pending request. Only admins decide; agents
// hitting this endpoint get a 403 rather than a silently parked request.
func (h *Handler) Resolve(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}
	if !identity.IsAdmin() {
		httpkit.Error(c, http.StatusForbidden, "only admins can resolve approval requests", nil)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid approval request id", nil)
		return
	}

	var body transport.ResolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resolved, err := h.svc.Resolve(c.Request.Context(), service.ResolveParams{
		AgencyID:     identity.AgencyID(),
		RequestID:    id,
		ResolvedBy:   identity.UserID(),
		Approve:      body.Decision == repository.StatusApproved,
		ResponseNote: body.ResponseNote,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToRequestResponse(resolved))
}
