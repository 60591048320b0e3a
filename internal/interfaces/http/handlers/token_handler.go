package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/interfaces/http/middleware"
	"notify-hub.backend/internal/interfaces/http/response"
	"notify-hub.backend/internal/usecases"
	"notify-hub.backend/pkg/utils"
)

type tokenService interface {
	IssueOrRotate(ctx context.Context, email string) (*entities.IssuedToken, error)
	Validate(ctx context.Context, secret, action string) (*entities.ValidatedToken, error)
	Revoke(ctx context.Context, id uuid.UUID, actor string) error
}

// TokenHandler exposes verification token issue, validation and revocation
type TokenHandler struct {
	service tokenService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(service *usecases.VerificationTokenUsecase) *TokenHandler {
	return &TokenHandler{service: service}
}

type validateTokenRequest struct {
	Token  string `json:"token"`
	Action string `json:"action"`
}

// Validate resolves a capability secret to its email. Every miss, including a
// malformed body, gets the same 401.
// POST /api/v1/tokens/validate
func (h *TokenHandler) Validate(c *gin.Context) {
	var req validateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		response.Error(c, domainerrors.TokenInvalid())
		return
	}

	validated, err := h.service.Validate(c.Request.Context(), req.Token, req.Action)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, validated)
}

type issueTokenRequest struct {
	Email string `json:"email" binding:"required"`
}

// Issue rotates the address's token and returns the new secret once
// POST /api/v1/tokens
func (h *TokenHandler) Issue(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	issued, err := h.service.IssueOrRotate(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	response.Success(c, http.StatusCreated, issued)
}

// Revoke deactivates a token by id
// POST /api/v1/tokens/:id/revoke
func (h *TokenHandler) Revoke(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid token ID"))
		return
	}

	actor, _ := middleware.GetSubject(c)
	if err := h.service.Revoke(c.Request.Context(), id, actor); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
