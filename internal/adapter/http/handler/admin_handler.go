package handler

import (
	"strconv"

	"donation-payments/internal/adapter/http/dto"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"
	"donation-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves staff-only operations.
type AdminHandler struct {
	paymentSvc ports.PaymentService
	catalogSvc ports.CatalogService
	reconciler ports.ReconcilerService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(paymentSvc ports.PaymentService, catalogSvc ports.CatalogService, reconciler ports.ReconcilerService) *AdminHandler {
	return &AdminHandler{paymentSvc: paymentSvc, catalogSvc: catalogSvc, reconciler: reconciler}
}

// MarkRefunded handles POST /api/v1/admin/payments/mark-refunded.
func (h *AdminHandler) MarkRefunded(c *gin.Context) {
	var req dto.MarkRefundedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("ids must be uuids"))
			return
		}
		ids = append(ids, id)
	}

	updated, err := h.paymentSvc.MarkRefunded(c.Request.Context(), ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.MarkRefundedResponse{Updated: updated})
}

// ReplaceDonationImage handles PUT /api/v1/admin/donations/:id/image.
func (h *AdminHandler) ReplaceDonationImage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Donation"))
		return
	}

	var req dto.ReplaceImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	donation, err := h.catalogSvc.ReplaceDonationImage(c.Request.Context(), id, req.ImageKey)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDonationResponse(donation))
}

// ListStripeEvents handles GET /api/v1/admin/stripe-events.
func (h *AdminHandler) ListStripeEvents(c *gin.Context) {
	filter := ports.StripeEventFilter{EventType: c.Query("event_type")}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	events, err := h.reconciler.ListEvents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.StripeEventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, dto.NewStripeEventResponse(e))
	}
	response.OK(c, items)
}
