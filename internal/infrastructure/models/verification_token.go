package models

import (
	"time"

	"github.com/google/uuid"
)

type VerificationToken struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email      string    `gorm:"type:varchar(320);not null;index"`
	TokenHash  string    `gorm:"type:char(64);not null;uniqueIndex"`
	IsActive   bool      `gorm:"not null;default:true"`
	UsageCount int       `gorm:"not null;default:0"`
	LastUsedAt *time.Time
	LastAction *string `gorm:"type:varchar(50)"`
	RevokedAt  *time.Time
	RevokedBy  *string `gorm:"type:varchar(255)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (VerificationToken) TableName() string {
	return "verification_tokens"
}
