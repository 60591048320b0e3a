package email

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"notify-hub.backend/internal/domain/entities"
	"notify-hub.backend/internal/domain/providers"
	"notify-hub.backend/pkg/logger"
)

var _ providers.EmailProvider = (*ConsoleProvider)(nil)

// ConsoleProvider writes messages to the process log instead of delivering them.
// It is the development default and the fallback sink for failed single sends.
type ConsoleProvider struct{}

func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

func (p *ConsoleProvider) Name() string {
	return providers.ProviderConsole
}

func (p *ConsoleProvider) Send(ctx context.Context, msg entities.OutboundMessage) (string, error) {
	id := "console-" + uuid.NewString()
	logger.Info(ctx, "Email (console)",
		zap.String("message_id", id),
		zap.String("reference", msg.Reference),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("tags", msg.Tags),
		zap.Int("html_length", len(msg.HTML)),
		zap.String("text", msg.Text),
	)
	return id, nil
}
