package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"notify-hub.backend/internal/domain/entities"
)

// NotificationRepository persists queued emails and their delivery transitions.
// Transition methods are conditional on the current status and return ErrNotFound
// when no row matched.
type NotificationRepository interface {
	Create(ctx context.Context, n *entities.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Notification, error)
	List(ctx context.Context, status entities.NotificationStatus, limit, offset int) ([]*entities.Notification, int64, error)
	// ListDue returns unsuppressed QUEUED rows scheduled at or before now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.Notification, error)
	// Claim moves a row from QUEUED to SENDING and counts the attempt. It reports false if
	// another sweep got there first.
	Claim(ctx context.Context, id uuid.UUID, provider string, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, now time.Time) error
	MarkSuppressed(ctx context.Context, id uuid.UUID, diagnostic string, now time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, diagnostic string, next, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, diagnostic string, now time.Time) error
	// ReleaseStale returns SENDING rows last touched before cutoff to QUEUED.
	ReleaseStale(ctx context.Context, cutoff, now time.Time) (int64, error)
	// Requeue moves a FAILED row back to QUEUED, due immediately, with attempts reset.
	Requeue(ctx context.Context, id uuid.UUID, now time.Time) error
}
