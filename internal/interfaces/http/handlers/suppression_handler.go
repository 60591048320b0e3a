package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/interfaces/http/middleware"
	"notify-hub.backend/internal/interfaces/http/response"
	"notify-hub.backend/internal/usecases"
)

type suppressionService interface {
	Add(ctx context.Context, email string, reason entities.SuppressionReason, actor string) (*entities.Suppression, error)
	Remove(ctx context.Context, email string) error
}

// SuppressionHandler maintains the do-not-send list
type SuppressionHandler struct {
	service suppressionService
}

// NewSuppressionHandler creates a new suppression handler
func NewSuppressionHandler(service *usecases.SuppressionUsecase) *SuppressionHandler {
	return &SuppressionHandler{service: service}
}

type addSuppressionRequest struct {
	Email  string `json:"email" binding:"required"`
	Reason string `json:"reason"`
}

// AddSuppression lists an address. reason defaults to manual.
// POST /api/v1/admin/suppressions
func (h *SuppressionHandler) AddSuppression(c *gin.Context) {
	var req addSuppressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	reason := entities.SuppressionReason(req.Reason)
	if reason == "" {
		reason = entities.SuppressionReasonManual
	}

	actor, _ := middleware.GetSubject(c)
	s, err := h.service.Add(c.Request.Context(), req.Email, reason, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"suppression": s})
}

// RemoveSuppression lifts a suppression
// DELETE /api/v1/admin/suppressions?email=
func (h *SuppressionHandler) RemoveSuppression(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Query("email")); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
