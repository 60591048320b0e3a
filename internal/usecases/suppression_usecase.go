package usecases

import (
	"context"
	"net/mail"
	"time"

	"go.uber.org/zap"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/domain/repositories"
	"notify-hub.backend/pkg/logger"
)

// TokenRevoker is the slice of the token service needed by opt-out flows.
type TokenRevoker interface {
	RevokeByEmail(ctx context.Context, email, actor string) (int64, error)
}

// SuppressionUsecase maintains the do-not-send list
type SuppressionUsecase struct {
	suppressionRepo repositories.SuppressionRepository
	tokens          TokenRevoker
	uow             repositories.UnitOfWork
}

func NewSuppressionUsecase(
	suppressionRepo repositories.SuppressionRepository,
	tokens TokenRevoker,
	uow repositories.UnitOfWork,
) *SuppressionUsecase {
	return &SuppressionUsecase{
		suppressionRepo: suppressionRepo,
		tokens:          tokens,
		uow:             uow,
	}
}

// ValidEmail reports whether address parses as a bare RFC 5322 address.
func ValidEmail(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

func (u *SuppressionUsecase) IsSuppressed(ctx context.Context, email string) (bool, error) {
	return u.suppressionRepo.IsSuppressed(ctx, NormalizeEmail(email))
}

// Add lists email with reason. An opt-out also revokes the address's active token.
func (u *SuppressionUsecase) Add(ctx context.Context, email string, reason entities.SuppressionReason, actor string) (*entities.Suppression, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, domainerrors.BadRequest("invalid email address")
	}
	if !reason.Valid() {
		return nil, domainerrors.BadRequest("invalid suppression reason")
	}

	s := &entities.Suppression{
		Email:     email,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	err := u.uow.Do(ctx, func(ctx context.Context) error {
		if err := u.suppressionRepo.Add(ctx, s); err != nil {
			return err
		}
		if reason != entities.SuppressionReasonOptedOut || u.tokens == nil {
			return nil
		}
		revoked, err := u.tokens.RevokeByEmail(ctx, email, actor)
		if err != nil {
			return err
		}
		if revoked > 0 {
			logger.Info(ctx, "Revoked token after opt-out", zap.String("email", email))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (u *SuppressionUsecase) Remove(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return domainerrors.BadRequest("email is required")
	}
	return u.suppressionRepo.Remove(ctx, email)
}
