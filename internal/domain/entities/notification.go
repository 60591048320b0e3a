package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// NotificationStatus is the lifecycle state of a queued email
type NotificationStatus string

const (
	NotificationStatusQueued    NotificationStatus = "QUEUED"
	NotificationStatusSending   NotificationStatus = "SENDING"
	NotificationStatusSent      NotificationStatus = "SENT"
	NotificationStatusFailed    NotificationStatus = "FAILED"
	NotificationStatusBounced   NotificationStatus = "BOUNCED"
	NotificationStatusDelivered NotificationStatus = "DELIVERED"
	NotificationStatusOpened    NotificationStatus = "OPENED"
)

// IsDelivered reports whether a record in this status carries a sent timestamp.
func (s NotificationStatus) IsDelivered() bool {
	switch s {
	case NotificationStatusSent, NotificationStatusDelivered, NotificationStatusOpened:
		return true
	}
	return false
}

func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationStatusQueued, NotificationStatusSending, NotificationStatusSent, NotificationStatusFailed,
		NotificationStatusBounced, NotificationStatusDelivered, NotificationStatusOpened:
		return true
	}
	return false
}

// Notification is one rendered email and its delivery state
type Notification struct {
	ID                uuid.UUID          `json:"id"`
	Recipient         string             `json:"recipient"`
	Subject           string             `json:"subject"`
	HTMLBody          string             `json:"htmlBody"`
	TextBody          string             `json:"textBody"`
	TemplateID        *uuid.UUID         `json:"templateId,omitempty"`
	TemplateName      string             `json:"templateName"`
	EventKind         string             `json:"eventKind"`
	RenderContext     map[string]any     `json:"renderContext,omitempty"`
	Provider          string             `json:"provider,omitempty"`
	ProviderMessageID null.String        `json:"providerMessageId"`
	Status            NotificationStatus `json:"status"`
	Attempts          int                `json:"attempts"`
	ScheduledFor      time.Time          `json:"scheduledFor"`
	SentAt            null.Time          `json:"sentAt"`
	LastDiagnostic    null.String        `json:"lastDiagnostic"`
	LastDiagnosticAt  null.Time          `json:"lastDiagnosticAt"`
	BounceType        null.String        `json:"bounceType"`
	BounceSubType     null.String        `json:"bounceSubType"`
	SuppressedAt      null.Time          `json:"suppressedAt"`
	RelatedType       null.String        `json:"relatedType"`
	RelatedID         null.String        `json:"relatedId"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}
