package handler

import (
	"donation-payments/internal/adapter/http/dto"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"
	"donation-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CatalogHandler serves the public catalog.
type CatalogHandler struct {
	catalogSvc ports.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogSvc ports.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

// ListCategories handles GET /api/v1/categories.
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalogSvc.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, cat := range categories {
		items = append(items, dto.NewCategoryResponse(cat))
	}
	response.OK(c, items)
}

// GetDonation handles GET /api/v1/donations/:id.
func (h *CatalogHandler) GetDonation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Donation"))
		return
	}
	donation, err := h.catalogSvc.GetDonation(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDonationResponse(donation))
}
