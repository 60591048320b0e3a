package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/interfaces/http/response"
	"notify-hub.backend/internal/usecases"
)

type templateService interface {
	GetByName(ctx context.Context, name string) (*entities.EmailTemplate, error)
	Upsert(ctx context.Context, t *entities.EmailTemplate) (*entities.EmailTemplate, error)
}

// TemplateHandler manages email templates
type TemplateHandler struct {
	service templateService
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(service *usecases.TemplateUsecase) *TemplateHandler {
	return &TemplateHandler{service: service}
}

type upsertTemplateRequest struct {
	Subject     string   `json:"subject" binding:"required"`
	HTMLContent string   `json:"htmlContent"`
	TextContent string   `json:"textContent"`
	Variables   []string `json:"variables"`
	IsActive    *bool    `json:"isActive"`
}

// GetTemplate returns a template by name
// GET /api/v1/admin/templates/:name
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	t, err := h.service.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"template": t})
}

// PutTemplate creates or replaces a template. isActive defaults to true.
// PUT /api/v1/admin/templates/:name
func (h *TemplateHandler) PutTemplate(c *gin.Context) {
	var req upsertTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	t, err := h.service.Upsert(c.Request.Context(), &entities.EmailTemplate{
		Name:        c.Param("name"),
		Subject:     req.Subject,
		HTMLContent: req.HTMLContent,
		TextContent: req.TextContent,
		Variables:   req.Variables,
		IsActive:    active,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"template": t})
}
