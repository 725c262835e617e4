package handler

import (
	"donation-payments/internal/adapter/http/dto"
	"donation-payments/internal/adapter/http/middleware"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"
	"donation-payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles account endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	user, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Password2: req.Password2,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditUserID, user.ID)
	c.Set(middleware.CtxAuditResourceID, user.ID.String())
	response.Created(c, dto.NewUserResponse(user))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditUserID, result.User.ID)
	c.Set(middleware.CtxAuditResourceID, result.User.ID.String())
	response.OK(c, dto.LoginResponse{
		AccessToken: result.Token,
		Expiry:      result.Expiry.Unix(),
		User:        dto.NewUserResponse(result.User),
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), principal); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"logged_out": true})
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	user, err := h.authSvc.Me(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewUserResponse(user))
}
