package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/infrastructure/models"
)

// VerificationTokenRepositoryImpl implements verification token storage.
// One active row per email is enforced by the partial unique index on (email) WHERE is_active.
type VerificationTokenRepositoryImpl struct {
	db *gorm.DB
}

func NewVerificationTokenRepository(db *gorm.DB) *VerificationTokenRepositoryImpl {
	return &VerificationTokenRepositoryImpl{db: db}
}

func (r *VerificationTokenRepositoryImpl) Create(ctx context.Context, token *entities.VerificationToken) error {
	m := &models.VerificationToken{
		ID:         token.ID,
		Email:      token.Email,
		TokenHash:  token.TokenHash,
		IsActive:   token.IsActive,
		UsageCount: token.UsageCount,
		LastUsedAt: token.LastUsedAt.Ptr(),
		CreatedAt:  token.CreatedAt,
		UpdatedAt:  token.UpdatedAt,
	}
	// Inside a caller's transaction this runs under a savepoint, so losing the
	// active-email race leaves the transaction usable for the rotate retry.
	err := GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *VerificationTokenRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.VerificationToken, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *VerificationTokenRepositoryImpl) GetActiveByEmail(ctx context.Context, email string) (*entities.VerificationToken, error) {
	return r.first(ctx, "email = ? AND is_active = ?", email, true)
}

func (r *VerificationTokenRepositoryImpl) GetActiveByHash(ctx context.Context, hash string) (*entities.VerificationToken, error) {
	return r.first(ctx, "token_hash = ? AND is_active = ?", hash, true)
}

func (r *VerificationTokenRepositoryImpl) Rotate(ctx context.Context, id uuid.UUID, newHash string, now time.Time) error {
	return r.update(GetDB(ctx, r.db).Model(&models.VerificationToken{}).
		Where("id = ? AND is_active = ?", id, true), map[string]interface{}{
		"token_hash":   newHash,
		"last_used_at": now,
		"updated_at":   now,
	})
}

func (r *VerificationTokenRepositoryImpl) RecordUsage(ctx context.Context, id uuid.UUID, hash, action string, now time.Time) error {
	return r.update(GetDB(ctx, r.db).Model(&models.VerificationToken{}).
		Where("id = ? AND token_hash = ? AND is_active = ?", id, hash, true), map[string]interface{}{
		"usage_count":  gorm.Expr("usage_count + 1"),
		"last_used_at": now,
		"last_action":  strPtr(action),
		"updated_at":   now,
	})
}

func (r *VerificationTokenRepositoryImpl) Revoke(ctx context.Context, id uuid.UUID, actor string, now time.Time) error {
	return r.update(GetDB(ctx, r.db).Model(&models.VerificationToken{}).
		Where("id = ?", id), map[string]interface{}{
		"is_active":  false,
		"revoked_at": now,
		"revoked_by": strPtr(actor),
		"updated_at": now,
	})
}

func (r *VerificationTokenRepositoryImpl) RevokeActiveByEmail(ctx context.Context, email, actor string, now time.Time) (int64, error) {
	result := GetDB(ctx, r.db).Model(&models.VerificationToken{}).
		Where("email = ? AND is_active = ?", email, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"revoked_at": now,
			"revoked_by": strPtr(actor),
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *VerificationTokenRepositoryImpl) first(ctx context.Context, query string, args ...interface{}) (*entities.VerificationToken, error) {
	var m models.VerificationToken
	if err := GetDB(ctx, r.db).Where(query, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *VerificationTokenRepositoryImpl) update(scoped *gorm.DB, updates map[string]interface{}) error {
	result := scoped.Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domainerrors.ErrAlreadyExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *VerificationTokenRepositoryImpl) toEntity(m *models.VerificationToken) *entities.VerificationToken {
	return &entities.VerificationToken{
		ID:         m.ID,
		Email:      m.Email,
		TokenHash:  m.TokenHash,
		IsActive:   m.IsActive,
		UsageCount: m.UsageCount,
		LastUsedAt: null.TimeFromPtr(m.LastUsedAt),
		LastAction: null.StringFromPtr(m.LastAction),
		RevokedAt:  null.TimeFromPtr(m.RevokedAt),
		RevokedBy:  null.StringFromPtr(m.RevokedBy),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
