package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"notify-hub.backend/internal/domain/entities"
)

type VerificationTokenRepository interface {
	// Create returns ErrAlreadyExists when the address already has an active token.
	Create(ctx context.Context, token *entities.VerificationToken) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.VerificationToken, error)
	GetActiveByEmail(ctx context.Context, email string) (*entities.VerificationToken, error)
	GetActiveByHash(ctx context.Context, hash string) (*entities.VerificationToken, error)
	Rotate(ctx context.Context, id uuid.UUID, newHash string, now time.Time) error
	// RecordUsage bumps the usage counter only while the row is active and still carries hash.
	RecordUsage(ctx context.Context, id uuid.UUID, hash, action string, now time.Time) error
	Revoke(ctx context.Context, id uuid.UUID, actor string, now time.Time) error
	RevokeActiveByEmail(ctx context.Context, email, actor string, now time.Time) (int64, error)
}
