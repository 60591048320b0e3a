package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/infrastructure/models"
)

type SuppressionRepositoryImpl struct {
	db *gorm.DB
}

func NewSuppressionRepository(db *gorm.DB) *SuppressionRepositoryImpl {
	return &SuppressionRepositoryImpl{db: db}
}

func (r *SuppressionRepositoryImpl) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&models.EmailSuppression{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Add records the suppression, replacing the reason when the address is already listed.
func (r *SuppressionRepositoryImpl) Add(ctx context.Context, s *entities.Suppression) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason"}),
	}).Create(&models.EmailSuppression{
		Email:     s.Email,
		Reason:    string(s.Reason),
		CreatedAt: s.CreatedAt,
	}).Error
}

func (r *SuppressionRepositoryImpl) Remove(ctx context.Context, email string) error {
	result := GetDB(ctx, r.db).Where("email = ?", email).Delete(&models.EmailSuppression{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}
