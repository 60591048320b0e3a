package email

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"notify-hub.backend/internal/config"
	"notify-hub.backend/internal/domain/providers"
	"notify-hub.backend/pkg/logger"
)

// NewProvider selects the configured transport. Unknown names fall back to the
// console provider. Missing credentials still yield the selected adapter; its
// sends report CONFIGURATION_MISSING.
func NewProvider(ctx context.Context, cfg config.EmailConfig) providers.EmailProvider {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case providers.ProviderSMTP:
		return NewSMTPProvider(cfg)
	case providers.ProviderBrevo:
		return NewBrevoProvider(cfg)
	case providers.ProviderSES:
		p, err := NewSESProvider(ctx, cfg)
		if err != nil {
			logger.Warn(ctx, "SES client unavailable, sends will report missing configuration", zap.Error(err))
		}
		return p
	case providers.ProviderConsole, "":
		return NewConsoleProvider()
	default:
		logger.Warn(ctx, "Unknown email provider, falling back to console", zap.String("provider", cfg.Provider))
		return NewConsoleProvider()
	}
}
