package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/interfaces/http/response"
	"notify-hub.backend/internal/usecases"
	"notify-hub.backend/pkg/utils"
)

type notificationAdminService interface {
	Get(ctx context.Context, id uuid.UUID) (*entities.Notification, error)
	List(ctx context.Context, status string, page, limit int) ([]*entities.Notification, utils.PageMeta, error)
	Requeue(ctx context.Context, id uuid.UUID) (*entities.Notification, error)
}

// SweepRunner triggers one delivery pass.
type SweepRunner interface {
	RunOnce(ctx context.Context) (usecases.SweepReport, bool, error)
}

// AdminHandler handles operator endpoints over the notification outbox
type AdminHandler struct {
	notifications notificationAdminService
	sweeper       SweepRunner
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(notifications *usecases.NotificationUsecase, sweeper SweepRunner) *AdminHandler {
	return &AdminHandler{
		notifications: notifications,
		sweeper:       sweeper,
	}
}

// notificationSummary leaves out the bodies, which carry capability links.
type notificationSummary struct {
	ID             uuid.UUID                   `json:"id"`
	Recipient      string                      `json:"recipient"`
	Subject        string                      `json:"subject"`
	TemplateName   string                      `json:"templateName"`
	EventKind      string                      `json:"eventKind"`
	Status         entities.NotificationStatus `json:"status"`
	Attempts       int                         `json:"attempts"`
	Provider       string                      `json:"provider,omitempty"`
	ScheduledFor   time.Time                   `json:"scheduledFor"`
	SentAt         *time.Time                  `json:"sentAt"`
	SuppressedAt   *time.Time                  `json:"suppressedAt"`
	LastDiagnostic *string                     `json:"lastDiagnostic"`
	CreatedAt      time.Time                   `json:"createdAt"`
}

func summarize(n *entities.Notification) notificationSummary {
	return notificationSummary{
		ID:             n.ID,
		Recipient:      n.Recipient,
		Subject:        n.Subject,
		TemplateName:   n.TemplateName,
		EventKind:      n.EventKind,
		Status:         n.Status,
		Attempts:       n.Attempts,
		Provider:       n.Provider,
		ScheduledFor:   n.ScheduledFor,
		SentAt:         n.SentAt.Ptr(),
		SuppressedAt:   n.SuppressedAt.Ptr(),
		LastDiagnostic: n.LastDiagnostic.Ptr(),
		CreatedAt:      n.CreatedAt,
	}
}

// ListNotifications lists notifications, newest first
// GET /api/v1/admin/notifications?status=FAILED&page=1&limit=50
func (h *AdminHandler) ListNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, meta, err := h.notifications.List(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]notificationSummary, len(items))
	for i, n := range items {
		out[i] = summarize(n)
	}
	response.Success(c, http.StatusOK, gin.H{
		"items": out,
		"meta":  meta,
	})
}

// GetNotification returns one notification including its rendered bodies
// GET /api/v1/admin/notifications/:id
func (h *AdminHandler) GetNotification(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid notification ID"))
		return
	}

	n, err := h.notifications.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notification": n})
}

// RequeueNotification makes a FAILED notification due again
// POST /api/v1/admin/notifications/:id/requeue
func (h *AdminHandler) RequeueNotification(c *gin.Context) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid notification ID"))
		return
	}

	n, err := h.notifications.Requeue(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notification": summarize(n)})
}

// RunSweep runs a delivery pass now
// POST /api/v1/admin/notifications/sweep
func (h *AdminHandler) RunSweep(c *gin.Context) {
	report, ran, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ran {
		response.ErrorWithError(c, http.StatusConflict, domainerrors.CodeConflict, "A sweep is already running")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}
