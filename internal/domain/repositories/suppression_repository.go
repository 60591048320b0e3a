package repositories

import (
	"context"

	"notify-hub.backend/internal/domain/entities"
)

type SuppressionRepository interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, s *entities.Suppression) error
	Remove(ctx context.Context, email string) error
}
