package handler

import (
	"donation-payments/internal/adapter/http/dto"
	"donation-payments/internal/adapter/http/middleware"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"
	"donation-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles donor-facing payment endpoints.
type PaymentHandler struct {
	paymentSvc     ports.PaymentService
	publishableKey string
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService, publishableKey string) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, publishableKey: publishableKey}
}

// CreateIntent handles POST /api/v1/payments/create-intent.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("donation_id is required and must be a uuid"))
		return
	}
	donationID, err := uuid.Parse(req.DonationID)
	if err != nil {
		response.Error(c, apperror.Validation("donation_id must be a uuid"))
		return
	}

	userID := principal.UserID
	result, err := h.paymentSvc.CreateIntent(c.Request.Context(), ports.CreateIntentRequest{
		UserID:     &userID,
		DonationID: donationID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, result.PaymentID.String())
	response.Created(c, dto.CreateIntentResponse{
		ClientSecret: result.ClientSecret,
		PaymentID:    result.PaymentID.String(),
	})
}

// MyDonations handles GET /api/v1/payments/my-donations.
func (h *PaymentHandler) MyDonations(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	summaries, err := h.paymentSvc.ListMyDonations(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PaymentSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, dto.NewPaymentSummaryResponse(s))
	}
	response.OK(c, dto.MyDonationsResponse{Items: items})
}

// PublishableKey handles GET /api/v1/payments/stripe/publishable-key.
func (h *PaymentHandler) PublishableKey(c *gin.Context) {
	response.OK(c, dto.PublishableKeyResponse{PublishableKey: h.publishableKey})
}
