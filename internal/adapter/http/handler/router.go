package handler

import (
	"net/http"

	"donation-payments/internal/adapter/http/middleware"
	"donation-payments/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 20 // 1 MB

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	PaymentSvc     ports.PaymentService
	ReconcilerSvc  ports.ReconcilerService
	CatalogSvc     ports.CatalogService
	TokenSvc       ports.TokenService
	TokenDenylist  ports.TokenDenylist       // nil = logout revocation not enforced
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	AuditSvc       ports.AuditService        // nil = audit logging disabled
	HealthCheckers []ports.HealthChecker
	MetricsHandler http.Handler // nil = no /metrics endpoint
	PublishableKey string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxRequestBody))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.TokenDenylist, deps.Logger)

	v1 := r.Group("/api/v1")

	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/logout", jwtAuth, authHandler.Logout)
		auth.GET("/me", jwtAuth, authHandler.Me)
	}

	catalogHandler := NewCatalogHandler(deps.CatalogSvc)
	v1.GET("/categories", rl("catalog"), catalogHandler.ListCategories)
	v1.GET("/donations/:id", rl("catalog"), catalogHandler.GetDonation)

	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.PublishableKey)
	webhookHandler := NewWebhookHandler(deps.ReconcilerSvc, deps.Logger)
	payments := v1.Group("/payments")
	{
		payments.POST("/create-intent", jwtAuth, rl("payments_create"), paymentHandler.CreateIntent)
		payments.GET("/my-donations", jwtAuth, rl("payments_read"), paymentHandler.MyDonations)
		payments.GET("/stripe/publishable-key", paymentHandler.PublishableKey)
		payments.POST("/webhook", webhookHandler.Handle)
	}

	adminHandler := NewAdminHandler(deps.PaymentSvc, deps.CatalogSvc, deps.ReconcilerSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireStaff(), rl("admin"))
	{
		admin.POST("/payments/mark-refunded", adminHandler.MarkRefunded)
		admin.PUT("/donations/:id/image", adminHandler.ReplaceDonationImage)
		admin.GET("/stripe-events", adminHandler.ListStripeEvents)
	}

	return r
}
