package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/interfaces/http/response"
	"notify-hub.backend/internal/usecases"
)

type notifier interface {
	Notify(ctx context.Context, input usecases.NotifyInput) (*entities.Notification, error)
}

// NotificationHandler queues notifications for collaborating services
type NotificationHandler struct {
	service notifier
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service *usecases.NotificationUsecase) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// NotifyRequest is the body of POST /api/v1/notifications.
type NotifyRequest struct {
	EventKind       string         `json:"eventKind" binding:"required"`
	TemplateName    string         `json:"templateName" binding:"required"`
	RecipientEmail  string         `json:"recipientEmail" binding:"required"`
	Context         map[string]any `json:"context"`
	Unsubscribe     string         `json:"unsubscribe"`
	RecipientIsUser bool           `json:"recipientIsUser"`
	RelatedType     string         `json:"relatedType"`
	RelatedID       string         `json:"relatedId"`
	ScheduledFor    *time.Time     `json:"scheduledFor"`
}

// Notify renders and queues one notification
// POST /api/v1/notifications
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	input := usecases.NotifyInput{
		EventKind:       req.EventKind,
		TemplateName:    req.TemplateName,
		RecipientEmail:  req.RecipientEmail,
		Context:         req.Context,
		Unsubscribe:     usecases.UnsubscribeVariant(req.Unsubscribe),
		RecipientIsUser: req.RecipientIsUser,
		RelatedType:     req.RelatedType,
		RelatedID:       req.RelatedID,
	}
	if req.ScheduledFor != nil {
		input.ScheduledFor = *req.ScheduledFor
	}

	n, err := h.service.Notify(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"id":     n.ID,
		"status": n.Status,
	})
}
