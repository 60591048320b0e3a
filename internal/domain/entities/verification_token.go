package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// Capabilities a verification link can exercise.
const (
	TokenActionView        = "view"
	TokenActionHide        = "hide"
	TokenActionManage      = "manage"
	TokenActionUnsubscribe = "unsubscribe"
)

// VerificationToken binds an email address to a bearer capability.
// Only the hash of the secret is stored.
type VerificationToken struct {
	ID         uuid.UUID   `json:"id"`
	Email      string      `json:"email"`
	TokenHash  string      `json:"-"`
	IsActive   bool        `json:"isActive"`
	UsageCount int         `json:"usageCount"`
	LastUsedAt null.Time   `json:"lastUsedAt"`
	LastAction null.String `json:"lastAction"`
	RevokedAt  null.Time   `json:"revokedAt"`
	RevokedBy  null.String `json:"revokedBy"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// ValidatedToken is what a successful validation reveals to the caller
type ValidatedToken struct {
	Email   string    `json:"email"`
	TokenID uuid.UUID `json:"tokenId"`
}

// IssuedToken carries a freshly generated secret. The secret is never retrievable again.
type IssuedToken struct {
	TokenID uuid.UUID `json:"tokenId"`
	Secret  string    `json:"token"`
}
