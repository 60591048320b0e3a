package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/infrastructure/models"
)

const staleReleaseDiagnostic = "released after stale SENDING claim"

// NotificationRepositoryImpl implements NotificationRepository
type NotificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepositoryImpl {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, n *entities.Notification) error {
	m, err := r.toModel(n)
	if err != nil {
		return err
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *NotificationRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Notification, error) {
	var m models.Notification
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *NotificationRepositoryImpl) List(ctx context.Context, status entities.NotificationStatus, limit, offset int) ([]*entities.Notification, int64, error) {
	query := GetDB(ctx, r.db).Model(&models.Notification{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*entities.Notification, 0, len(ms))
	for i := range ms {
		out = append(out, r.toEntity(&ms[i]))
	}
	return out, total, nil
}

func (r *NotificationRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.Notification, error) {
	var ms []models.Notification
	if err := GetDB(ctx, r.db).
		Where("status = ? AND scheduled_for <= ? AND suppressed_at IS NULL", string(entities.NotificationStatusQueued), now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}

	out := make([]*entities.Notification, 0, len(ms))
	for i := range ms {
		out = append(out, r.toEntity(&ms[i]))
	}
	return out, nil
}

func (r *NotificationRepositoryImpl) Claim(ctx context.Context, id uuid.UUID, provider string, now time.Time) (bool, error) {
	result := GetDB(ctx, r.db).Model(&models.Notification{}).
		Where("id = ? AND status = ? AND suppressed_at IS NULL", id, string(entities.NotificationStatusQueued)).
		Updates(map[string]interface{}{
			"status":     string(entities.NotificationStatusSending),
			"attempts":   gorm.Expr("attempts + 1"),
			"provider":   provider,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *NotificationRepositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, now time.Time) error {
	return r.transition(ctx, id, entities.NotificationStatusSending, map[string]interface{}{
		"status":              string(entities.NotificationStatusSent),
		"provider_message_id": providerMessageID,
		"sent_at":             now,
		"updated_at":          now,
	})
}

func (r *NotificationRepositoryImpl) MarkSuppressed(ctx context.Context, id uuid.UUID, diagnostic string, now time.Time) error {
	return r.transition(ctx, id, entities.NotificationStatusSending, map[string]interface{}{
		"status":             string(entities.NotificationStatusQueued),
		"suppressed_at":      now,
		"last_diagnostic":    diagnostic,
		"last_diagnostic_at": now,
		"updated_at":         now,
	})
}

func (r *NotificationRepositoryImpl) Reschedule(ctx context.Context, id uuid.UUID, diagnostic string, next, now time.Time) error {
	return r.transition(ctx, id, entities.NotificationStatusSending, map[string]interface{}{
		"status":             string(entities.NotificationStatusQueued),
		"scheduled_for":      next,
		"last_diagnostic":    diagnostic,
		"last_diagnostic_at": now,
		"updated_at":         now,
	})
}

func (r *NotificationRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, diagnostic string, now time.Time) error {
	return r.transition(ctx, id, entities.NotificationStatusSending, map[string]interface{}{
		"status":             string(entities.NotificationStatusFailed),
		"last_diagnostic":    diagnostic,
		"last_diagnostic_at": now,
		"updated_at":         now,
	})
}

func (r *NotificationRepositoryImpl) ReleaseStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	result := GetDB(ctx, r.db).Model(&models.Notification{}).
		Where("status = ? AND updated_at < ?", string(entities.NotificationStatusSending), cutoff).
		Updates(map[string]interface{}{
			"status":             string(entities.NotificationStatusQueued),
			"last_diagnostic":    staleReleaseDiagnostic,
			"last_diagnostic_at": now,
			"updated_at":         now,
		})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) Requeue(ctx context.Context, id uuid.UUID, now time.Time) error {
	err := r.transition(ctx, id, entities.NotificationStatusFailed, map[string]interface{}{
		"status":        string(entities.NotificationStatusQueued),
		"attempts":      0,
		"scheduled_for": now,
		"suppressed_at": nil,
		"updated_at":    now,
	})
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("%w: only FAILED notifications can be requeued", domainerrors.ErrInvalidTransition)
}

// transition applies updates only while the row is in from.
func (r *NotificationRepositoryImpl) transition(ctx context.Context, id uuid.UUID, from entities.NotificationStatus, updates map[string]interface{}) error {
	result := GetDB(ctx, r.db).Model(&models.Notification{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) toModel(n *entities.Notification) (*models.Notification, error) {
	renderContext := ""
	if len(n.RenderContext) > 0 {
		raw, err := json.Marshal(n.RenderContext)
		if err != nil {
			return nil, fmt.Errorf("encode render context: %w", err)
		}
		renderContext = string(raw)
	}

	return &models.Notification{
		ID:                n.ID,
		Recipient:         n.Recipient,
		Subject:           n.Subject,
		HTMLBody:          n.HTMLBody,
		TextBody:          n.TextBody,
		TemplateID:        n.TemplateID,
		TemplateName:      n.TemplateName,
		EventKind:         n.EventKind,
		RenderContext:     renderContext,
		Provider:          n.Provider,
		ProviderMessageID: n.ProviderMessageID.Ptr(),
		Status:            string(n.Status),
		Attempts:          n.Attempts,
		ScheduledFor:      n.ScheduledFor,
		SentAt:            n.SentAt.Ptr(),
		LastDiagnostic:    n.LastDiagnostic.Ptr(),
		LastDiagnosticAt:  n.LastDiagnosticAt.Ptr(),
		BounceType:        n.BounceType.Ptr(),
		BounceSubType:     n.BounceSubType.Ptr(),
		SuppressedAt:      n.SuppressedAt.Ptr(),
		RelatedType:       n.RelatedType.Ptr(),
		RelatedID:         n.RelatedID.Ptr(),
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}, nil
}

func (r *NotificationRepositoryImpl) toEntity(m *models.Notification) *entities.Notification {
	var renderContext map[string]any
	if m.RenderContext != "" {
		// A corrupt snapshot must not hide the record from operators.
		_ = json.Unmarshal([]byte(m.RenderContext), &renderContext)
	}

	return &entities.Notification{
		ID:                m.ID,
		Recipient:         m.Recipient,
		Subject:           m.Subject,
		HTMLBody:          m.HTMLBody,
		TextBody:          m.TextBody,
		TemplateID:        m.TemplateID,
		TemplateName:      m.TemplateName,
		EventKind:         m.EventKind,
		RenderContext:     renderContext,
		Provider:          m.Provider,
		ProviderMessageID: null.StringFromPtr(m.ProviderMessageID),
		Status:            entities.NotificationStatus(m.Status),
		Attempts:          m.Attempts,
		ScheduledFor:      m.ScheduledFor,
		SentAt:            null.TimeFromPtr(m.SentAt),
		LastDiagnostic:    null.StringFromPtr(m.LastDiagnostic),
		LastDiagnosticAt:  null.TimeFromPtr(m.LastDiagnosticAt),
		BounceType:        null.StringFromPtr(m.BounceType),
		BounceSubType:     null.StringFromPtr(m.BounceSubType),
		SuppressedAt:      null.TimeFromPtr(m.SuppressedAt),
		RelatedType:       null.StringFromPtr(m.RelatedType),
		RelatedID:         null.StringFromPtr(m.RelatedID),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
