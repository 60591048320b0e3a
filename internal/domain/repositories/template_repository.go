package repositories

import (
	"context"

	"notify-hub.backend/internal/domain/entities"
)

type TemplateRepository interface {
	GetByName(ctx context.Context, name string) (*entities.EmailTemplate, error)
	Upsert(ctx context.Context, template *entities.EmailTemplate) error
}
