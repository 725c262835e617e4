package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful write operations after the handler has run.
// Routes are matched on their registered template, so path parameters do not matter.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(response.RequestIDKey),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       auditUserID(c),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   auditResourceID(c),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func auditUserID(c *gin.Context) *uuid.UUID {
	if v, ok := c.Get(CtxAuditUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return &id
		}
	}
	if p, ok := PrincipalFrom(c); ok {
		id := p.UserID
		return &id
	}
	return nil
}

func auditResourceID(c *gin.Context) string {
	if id := c.GetString(CtxAuditResourceID); id != "" {
		return id
	}
	return c.Param("id")
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/auth/register" && method == http.MethodPost:
		return domain.AuditActionRegister, "user"
	case route == "/api/v1/auth/login" && method == http.MethodPost:
		return domain.AuditActionLogin, "session"
	case route == "/api/v1/auth/logout" && method == http.MethodPost:
		return domain.AuditActionLogout, "session"
	case route == "/api/v1/payments/create-intent" && method == http.MethodPost:
		return domain.AuditActionCreateIntent, "donation_payment"
	case route == "/api/v1/admin/payments/mark-refunded" && method == http.MethodPost:
		return domain.AuditActionMarkRefunded, "donation_payment"
	case route == "/api/v1/admin/donations/:id/image" && method == http.MethodPut:
		return domain.AuditActionReplaceImage, "donation"
	}
	return "", ""
}
