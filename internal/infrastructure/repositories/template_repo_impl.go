package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/infrastructure/models"
)

type TemplateRepositoryImpl struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepositoryImpl {
	return &TemplateRepositoryImpl{db: db}
}

func (r *TemplateRepositoryImpl) GetByName(ctx context.Context, name string) (*entities.EmailTemplate, error) {
	var m models.EmailTemplate
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}

	var variables []string
	if m.Variables != "" {
		if err := json.Unmarshal([]byte(m.Variables), &variables); err != nil {
			return nil, fmt.Errorf("decode template variables for %s: %w", name, err)
		}
	}

	return &entities.EmailTemplate{
		ID:          m.ID,
		Name:        m.Name,
		Subject:     m.Subject,
		HTMLContent: m.HTMLContent,
		TextContent: m.TextContent,
		Variables:   variables,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// Upsert inserts the template or updates the row with the same name.
func (r *TemplateRepositoryImpl) Upsert(ctx context.Context, t *entities.EmailTemplate) error {
	variables := t.Variables
	if variables == nil {
		variables = []string{}
	}
	raw, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("encode template variables: %w", err)
	}

	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	m := &models.EmailTemplate{
		ID:          t.ID,
		Name:        t.Name,
		Subject:     t.Subject,
		HTMLContent: t.HTMLContent,
		TextContent: t.TextContent,
		Variables:   string(raw),
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}

	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"subject", "html_content", "text_content", "variables", "is_active", "updated_at"}),
	}).Create(m).Error
}
