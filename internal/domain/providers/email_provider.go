package providers

import (
	"context"

	"notify-hub.backend/internal/domain/entities"
)

// Provider names accepted by configuration.
const (
	ProviderConsole = "console"
	ProviderSMTP    = "smtp"
	ProviderBrevo   = "brevo"
	ProviderSES     = "ses"
)

// EmailProvider delivers a single message and returns the provider's message id.
// Failures are returned as *errors.DeliveryError.
type EmailProvider interface {
	Name() string
	Send(ctx context.Context, msg entities.OutboundMessage) (string, error)
}

// BatchProvider is implemented by providers with a native multi-message API.
// The returned ids are in input order.
type BatchProvider interface {
	EmailProvider
	SendBatch(ctx context.Context, msgs []entities.OutboundMessage) ([]string, error)
}

// ConcurrentProvider is implemented by providers that tolerate parallel single sends.
type ConcurrentProvider interface {
	EmailProvider
	MaxConcurrency() int
}
