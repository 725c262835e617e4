package handler

import (
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"
	"donation-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderStripeSignature carries the provider's webhook signature.
const HeaderStripeSignature = "Stripe-Signature"

// WebhookHandler receives provider event deliveries.
type WebhookHandler struct {
	reconciler ports.ReconcilerService
	log        zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler ports.ReconcilerService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, log: log}
}

// Handle handles POST /api/v1/payments/webhook.
// The body is read raw; signature verification runs over the exact bytes received.
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		response.Error(c, apperror.ErrMalformedEvent(err))
		return
	}

	result, err := h.reconciler.HandleWebhook(c.Request.Context(), payload, c.GetHeader(HeaderStripeSignature))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.log.Debug().
		Str("event_id", result.EventID).
		Str("event_type", result.EventType).
		Str("outcome", string(result.Outcome)).
		Msg("webhook acknowledged")
	response.NoContent(c)
}
