package handler

import (
	"net/http"
	"strconv"

	"tripdesk_backend/internal/audit"
	"tripdesk_backend/internal/trips/service"
	"tripdesk_backend/internal/trips/transport"
	"tripdesk_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc      *service.Service
	auditLog *audit.Repository
}

func New(svc *service.Service, auditLog *audit.Repository) *Handler {
	return &Handler{svc: svc, auditLog: auditLog}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.PUT("/:id/stage", h.UpdateStage)
	rg.GET("/:id/changes", h.ListChanges)
	rg.GET("/:id/audit", h.ListAudit)
}

func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	trip, err := h.svc.GetTrip(c.Request.Context(), identity.AgencyID(), tripID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToTripResponse(trip))
}

// UpdateStage routes a stage transition. Applied transitions return 200;
// transitions parked behind an approval request return 202 with the request ID.
func (h *Handler) UpdateStage(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var body transport.UpdateStageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	outcome, err := h.svc.RequestStageChange(c.Request.Context(), service.StageChangeParams{
		AgencyID: identity.AgencyID(),
		TripID:   tripID,
		Actor:    service.Actor{UserID: identity.UserID(), IsAdmin: identity.IsAdmin()},
		ToStage:  body.Stage,
		Reason:   body.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	if !outcome.Applied {
		httpkit.Accepted(c, transport.ApprovalPendingResponse{
			ApprovalRequired:  true,
			ApprovalRequestID: outcome.ApprovalRequestID,
		})
		return
	}

	httpkit.OK(c, transport.StageChangeResponse{
		Trip:          transport.ToTripResponse(outcome.Result.Trip),
		PreviousStage: outcome.Result.PreviousStage,
		NewStage:      outcome.Result.NewStage,
	})
}

// Update routes a partial trip update, honoring the lock on locked fields.
func (h *Handler) Update(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var body transport.UpdateTripRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	outcome, err := h.svc.RequestFieldUpdate(c.Request.Context(), service.FieldUpdateParams{
		AgencyID:            identity.AgencyID(),
		TripID:              tripID,
		Actor:               service.Actor{UserID: identity.UserID(), IsAdmin: identity.IsAdmin()},
		Name:                body.Name,
		AssignedUserID:      body.AssignedUserID,
		Destination:         body.Destination,
		StartDate:           body.StartDate,
		EndDate:             body.EndDate,
		DepositDueDate:      body.DepositDueDate,
		FinalPaymentDueDate: body.FinalPaymentDueDate,
		ChangeReason:        body.ChangeReason,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	if !outcome.Applied {
		httpkit.Accepted(c, transport.ApprovalPendingResponse{
			ApprovalRequired:  true,
			ApprovalRequestID: outcome.ApprovalRequestID,
		})
		return
	}

	httpkit.OK(c, transport.ToTripResponse(outcome.Trip))
}

func (h *Handler) ListChanges(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.auditLog.ListTripChanges(c.Request.Context(), identity.AgencyID(), tripID, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": records})
}

func (h *Handler) ListAudit(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.auditLog.ListEntityLog(c.Request.Context(), identity.AgencyID(), "trip", tripID, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": entries})
}

func parseTripID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid trip id", nil)
		return uuid.Nil, false
	}
	return id, true
}
