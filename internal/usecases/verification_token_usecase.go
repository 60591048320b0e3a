package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/domain/repositories"
	"notify-hub.backend/internal/metrics"
	"notify-hub.backend/pkg/crypto"
)

// maxSecretLength bounds input before hashing. Issued secrets are 43 characters.
const maxSecretLength = 256

// VerificationTokenUsecase manages the capability tokens embedded in notification links.
type VerificationTokenUsecase struct {
	tokenRepo      repositories.VerificationTokenRepository
	generateSecret func() (string, error)
	now            func() time.Time
}

// NewVerificationTokenUsecase creates a new verification token usecase
func NewVerificationTokenUsecase(tokenRepo repositories.VerificationTokenRepository) *VerificationTokenUsecase {
	return &VerificationTokenUsecase{
		tokenRepo:      tokenRepo,
		generateSecret: crypto.GenerateSecret,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IssueOrRotate returns a fresh secret for email. The address's active row is
// rotated in place, or created when none exists. The secret is returned once.
func (u *VerificationTokenUsecase) IssueOrRotate(ctx context.Context, email string) (*entities.IssuedToken, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, domainerrors.BadRequest("invalid email address")
	}

	secret, err := u.generateSecret()
	if err != nil {
		return nil, err
	}
	hash := crypto.HashToken(secret)

	// A rotate can lose to a concurrent revoke and a create can lose to a concurrent
	// create. One retry settles both.
	for attempt := 0; attempt < 2; attempt++ {
		id, err := u.issue(ctx, email, hash)
		if err == nil {
			return &entities.IssuedToken{TokenID: id, Secret: secret}, nil
		}
		if !errors.Is(err, domainerrors.ErrAlreadyExists) && !errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("issue token for %s: %w", email, domainerrors.ErrAlreadyExists)
}

func (u *VerificationTokenUsecase) issue(ctx context.Context, email, hash string) (uuid.UUID, error) {
	now := u.now()

	existing, err := u.tokenRepo.GetActiveByEmail(ctx, email)
	switch {
	case err == nil:
		if err := u.tokenRepo.Rotate(ctx, existing.ID, hash, now); err != nil {
			return uuid.Nil, err
		}
		return existing.ID, nil
	case !errors.Is(err, domainerrors.ErrNotFound):
		return uuid.Nil, err
	}

	token := &entities.VerificationToken{
		ID:        uuid.New(),
		Email:     email,
		TokenHash: hash,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.tokenRepo.Create(ctx, token); err != nil {
		return uuid.Nil, err
	}
	return token.ID, nil
}

// Validate resolves a secret to its address and records the usage. Every kind of
// miss returns ErrTokenInvalid.
func (u *VerificationTokenUsecase) Validate(ctx context.Context, secret, action string) (*entities.ValidatedToken, error) {
	result, err := u.validate(ctx, secret, action)
	switch {
	case err == nil:
		metrics.TokenValidations.WithLabelValues("valid").Inc()
	case errors.Is(err, domainerrors.ErrTokenInvalid):
		metrics.TokenValidations.WithLabelValues("invalid").Inc()
	default:
		metrics.TokenValidations.WithLabelValues("error").Inc()
	}
	return result, err
}

func (u *VerificationTokenUsecase) validate(ctx context.Context, secret, action string) (*entities.ValidatedToken, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" || len(secret) > maxSecretLength {
		return nil, domainerrors.ErrTokenInvalid
	}
	if action == "" {
		action = entities.TokenActionView
	}
	if !validTokenAction(action) {
		return nil, domainerrors.BadRequest("unknown token action")
	}

	hash := crypto.HashToken(secret)
	token, err := u.tokenRepo.GetActiveByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrTokenInvalid
		}
		return nil, err
	}
	if !token.IsActive || !crypto.EqualHash(token.TokenHash, hash) {
		return nil, domainerrors.ErrTokenInvalid
	}

	if err := u.tokenRepo.RecordUsage(ctx, token.ID, hash, action, u.now()); err != nil {
		// rotated or revoked between lookup and update
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrTokenInvalid
		}
		return nil, err
	}

	return &entities.ValidatedToken{Email: token.Email, TokenID: token.ID}, nil
}

func validTokenAction(action string) bool {
	switch action {
	case entities.TokenActionView, entities.TokenActionHide, entities.TokenActionManage, entities.TokenActionUnsubscribe:
		return true
	}
	return false
}

// Revoke deactivates a token. Unknown ids return ErrNotFound.
func (u *VerificationTokenUsecase) Revoke(ctx context.Context, tokenID uuid.UUID, actor string) error {
	if actor == "" {
		actor = "system"
	}
	return u.tokenRepo.Revoke(ctx, tokenID, actor, u.now())
}

// RevokeByEmail deactivates the address's active token, if any.
func (u *VerificationTokenUsecase) RevokeByEmail(ctx context.Context, email, actor string) (int64, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return 0, domainerrors.BadRequest("email is required")
	}
	if actor == "" {
		actor = "system"
	}
	return u.tokenRepo.RevokeActiveByEmail(ctx, email, actor, u.now())
}

// LinkBuilder composes capability URLs under the public base URL.
type LinkBuilder struct {
	baseURL string
}

func NewLinkBuilder(baseURL string) LinkBuilder {
	return LinkBuilder{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (b LinkBuilder) build(path string, query url.Values) string {
	return b.baseURL + path + "?" + query.Encode()
}

// VerifyURL lets the recipient exercise action (view, hide, manage) on what the token guards.
func (b LinkBuilder) VerifyURL(secret, action string) string {
	return b.build("/verify", url.Values{"token": {secret}, "action": {action}})
}

func (b LinkBuilder) GlobalUnsubscribeURL(secret string) string {
	return b.build("/unsubscribe", url.Values{"token": {secret}, "scope": {"all"}})
}

func (b LinkBuilder) TargetUnsubscribeURL(secret, target string) string {
	return b.build("/unsubscribe", url.Values{"token": {secret}, "scope": {"target"}, "target": {target}})
}

func (b LinkBuilder) ProfileURL(secret string) string {
	return b.build("/profile/notifications", url.Values{"token": {secret}})
}

// Links returns the unsubscribe URL set for secret. TargetURL is empty without a target.
func (b LinkBuilder) Links(secret, target string) UnsubscribeLinks {
	links := UnsubscribeLinks{
		GlobalURL:  b.GlobalUnsubscribeURL(secret),
		ProfileURL: b.ProfileURL(secret),
	}
	if target != "" {
		links.TargetURL = b.TargetUnsubscribeURL(secret, target)
	}
	return links
}

// AccountURL is the notification settings page for signed-in users.
func (b LinkBuilder) AccountURL() string {
	return b.baseURL + "/profile/notifications"
}
