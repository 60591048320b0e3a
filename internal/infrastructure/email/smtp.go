package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"notify-hub.backend/internal/config"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/domain/providers"
)

var _ providers.EmailProvider = (*SMTPProvider)(nil)

type smtpSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

var newSMTPClient = func(host string, opts ...mail.Option) (smtpSender, error) {
	return mail.NewClient(host, opts...)
}

// SMTPProvider relays messages through an SMTP server.
type SMTPProvider struct {
	cfg      config.SMTPConfig
	from     string
	fromName string
	replyTo  string
}

func NewSMTPProvider(cfg config.EmailConfig) *SMTPProvider {
	return &SMTPProvider{
		cfg:      cfg.SMTP,
		from:     cfg.From,
		fromName: cfg.FromName,
		replyTo:  cfg.ReplyTo,
	}
}

func (p *SMTPProvider) Name() string {
	return providers.ProviderSMTP
}

func (p *SMTPProvider) Send(ctx context.Context, msg entities.OutboundMessage) (string, error) {
	if p.cfg.Host == "" || p.from == "" {
		return "", domainerrors.ConfigurationMissing("smtp host and sender address are required")
	}

	m, err := p.buildMessage(msg)
	if err != nil {
		return "", err
	}

	client, err := newSMTPClient(p.cfg.Host, p.clientOptions()...)
	if err != nil {
		return "", domainerrors.ConfigurationMissing(fmt.Sprintf("creating mail client: %v", err))
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", classifySMTPError(err)
	}
	return m.GetMessageID(), nil
}

func (p *SMTPProvider) buildMessage(msg entities.OutboundMessage) (*mail.Msg, error) {
	m := mail.NewMsg()

	if p.fromName != "" {
		if err := m.FromFormat(p.fromName, p.from); err != nil {
			return nil, domainerrors.ConfigurationMissing(fmt.Sprintf("setting from address: %v", err))
		}
	} else if err := m.From(p.from); err != nil {
		return nil, domainerrors.ConfigurationMissing(fmt.Sprintf("setting from address: %v", err))
	}

	if err := m.To(msg.To); err != nil {
		return nil, domainerrors.ProviderRejected(fmt.Sprintf("setting to address: %v", err), err)
	}
	if p.replyTo != "" {
		if err := m.ReplyTo(p.replyTo); err != nil {
			return nil, domainerrors.ConfigurationMissing(fmt.Sprintf("setting reply-to address: %v", err))
		}
	}

	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (p *SMTPProvider) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(p.cfg.Port),
	}

	switch p.cfg.TLS {
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "tls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory), mail.WithSSL())
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	if p.cfg.Username != "" && p.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(p.cfg.Username),
			mail.WithPassword(p.cfg.Password),
		)
	}
	return opts
}

// classifySMTPError maps go-mail failures onto delivery kinds. 4xx replies are
// temporary per RFC 5321; anything else the server answered is a rejection.
// Failures without an SMTP reply (dial, TLS, timeouts) are transient.
func classifySMTPError(err error) *domainerrors.DeliveryError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domainerrors.ProviderTransient(err.Error(), err)
	}
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		if sendErr.IsTemp() {
			return domainerrors.ProviderTransient(sendErr.Error(), err)
		}
		return domainerrors.ProviderRejected(sendErr.Error(), err)
	}
	return domainerrors.ProviderTransient(err.Error(), err)
}
