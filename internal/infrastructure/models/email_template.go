package models

import (
	"time"

	"github.com/google/uuid"
)

type EmailTemplate struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Subject     string    `gorm:"type:text;not null"`
	HTMLContent string    `gorm:"column:html_content;type:text"`
	TextContent string    `gorm:"type:text"`
	Variables   string    `gorm:"type:jsonb"`
	IsActive    bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (EmailTemplate) TableName() string {
	return "email_templates"
}

type EmailSuppression struct {
	Email     string `gorm:"type:varchar(320);primaryKey"`
	Reason    string `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time
}

func (EmailSuppression) TableName() string {
	return "email_suppressions"
}
