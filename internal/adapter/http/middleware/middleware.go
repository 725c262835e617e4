package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"
	"donation-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxPrincipal       = "principal"
	CtxAuditUserID     = "audit_user_id"
	CtxAuditResourceID = "audit_resource_id"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// JWTAuth validates the bearer token, rejects revoked tokens and injects the principal.
func JWTAuth(tokenSvc ports.TokenService, denylist ports.TokenDenylist, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		principal, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		if denylist != nil {
			revoked, err := denylist.IsRevoked(c.Request.Context(), principal.TokenID)
			if err != nil {
				log.Warn().Err(err).Msg("token denylist check failed, allowing request")
			} else if revoked {
				response.Error(c, apperror.ErrInvalidToken())
				c.Abort()
				return
			}
		}

		c.Set(CtxPrincipal, principal)
		c.Next()
	}
}

// RequireStaff rejects callers whose principal is not staff. Must run after JWTAuth.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		if !principal.IsStaff {
			response.Error(c, apperror.ErrForbidden())
			c.Abort()
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller set by JWTAuth.
func PrincipalFrom(c *gin.Context) (*ports.Principal, bool) {
	v, exists := c.Get(CtxPrincipal)
	if !exists {
		return nil, false
	}
	p, ok := v.(*ports.Principal)
	return p, ok && p != nil
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(response.RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", c.GetString(response.RequestIDKey)).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				response.Error(c, apperror.InternalError(errors.New("panic recovered")))
				c.Abort()
			}
		}()
		c.Next()
	}
}
