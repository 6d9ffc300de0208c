package handler

import (
	"net/http"

	"tripdesk_backend/internal/bookings/service"
	"tripdesk_backend/internal/bookings/transport"
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
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.PUT("/:id/commission", h.UpdateCommission)
}

func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	id, ok := parseBookingID(c)
	if !ok {
		return
	}

	booking, err := h.svc.GetBooking(c.Request.Context(), identity.AgencyID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToBookingResponse(booking))
}

func (h *Handler) Update(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	id, ok := parseBookingID(c)
	if !ok {
		return
	}

	var body transport.UpdateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	outcome, err := h.svc.UpdateBooking(c.Request.Context(), service.UpdateParams{
		AgencyID:      identity.AgencyID(),
		BookingID:     id,
		Actor:         service.Actor{UserID: identity.UserID(), IsAdmin: identity.IsAdmin()},
		SupplierName:  body.SupplierName,
		Status:        body.Status,
		PaymentStatus: body.PaymentStatus,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	respond(c, outcome)
}

func (h *Handler) UpdateCommission(c *gin.Context) {
	identity := httpkit.RequireIdentity(c)
	if identity == nil {
		return
	}

	id, ok := parseBookingID(c)
	if !ok {
		return
	}

	var body transport.UpdateCommissionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	outcome, err := h.svc.UpdateCommission(c.Request.Context(), service.CommissionParams{
		AgencyID:         identity.AgencyID(),
		BookingID:        id,
		Actor:            service.Actor{UserID: identity.UserID(), IsAdmin: identity.IsAdmin()},
		Status:           body.Status,
		AmountReceived:   body.AmountReceived,
		ReceivedDate:     body.ReceivedDate,
		PaymentReference: body.PaymentReference,
		VarianceNote:     body.VarianceNote,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	respond(c, outcome)
}

func respond(c *gin.Context, outcome service.Outcome) {
	if !outcome.Applied {
		httpkit.Accepted(c, transport.ApprovalPendingResponse{
			ApprovalRequired:  true,
			ApprovalRequestID: outcome.ApprovalRequestID,
		})
		return
	}
	httpkit.OK(c, transport.ToBookingResponse(outcome.Booking))
}

func parseBookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid booking id", nil)
		return uuid.Nil, false
	}
	return id, true
}
