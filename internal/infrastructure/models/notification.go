package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Recipient         string     `gorm:"type:varchar(320);not null;index"`
	Subject           string     `gorm:"type:text;not null"`
	HTMLBody          string     `gorm:"column:html_body;type:text"`
	TextBody          string     `gorm:"type:text"`
	TemplateID        *uuid.UUID `gorm:"type:uuid"`
	TemplateName      string     `gorm:"type:varchar(255)"`
	EventKind         string     `gorm:"type:varchar(100);not null"`
	RenderContext     string     `gorm:"type:jsonb"`
	Provider          string     `gorm:"type:varchar(50)"`
	ProviderMessageID *string    `gorm:"type:varchar(255)"`
	Status            string     `gorm:"type:varchar(20);not null;index:idx_notifications_due,priority:1"`
	Attempts          int        `gorm:"not null;default:0"`
	ScheduledFor      time.Time  `gorm:"not null;index:idx_notifications_due,priority:2"`
	SentAt            *time.Time
	LastDiagnostic    *string `gorm:"type:text"`
	LastDiagnosticAt  *time.Time
	BounceType        *string `gorm:"type:varchar(50)"`
	BounceSubType     *string `gorm:"type:varchar(50)"`
	SuppressedAt      *time.Time
	RelatedType       *string `gorm:"type:varchar(50)"`
	RelatedID         *string `gorm:"type:varchar(255)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Notification) TableName() string {
	return "notifications"
}
