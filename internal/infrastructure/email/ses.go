package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"
	"notify-hub.backend/internal/config"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/domain/providers"
)

var _ providers.ConcurrentProvider = (*SESProvider)(nil)

// SESMaxConcurrency bounds parallel SendEmail calls from one batch.
const SESMaxConcurrency = 10

// SESService is the subset of the SES client used for delivery.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

var loadAWSConfig = func(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// SESProvider sends through the AWS Simple Email Service API.
type SESProvider struct {
	client           SESService
	from             string
	fromName         string
	replyTo          string
	configurationSet string
	tags             []types.MessageTag
}

// NewSESProvider builds the adapter. A missing region leaves the client unset so
// sends report CONFIGURATION_MISSING instead of failing startup.
func NewSESProvider(ctx context.Context, cfg config.EmailConfig) (*SESProvider, error) {
	p := newSESProvider(nil, cfg)
	if cfg.SES.Region == "" {
		return p, nil
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SES.Region)
	if err != nil {
		return p, fmt.Errorf("load AWS config: %w", err)
	}
	p.client = ses.NewFromConfig(awsCfg)
	return p, nil
}

func newSESProvider(client SESService, cfg config.EmailConfig) *SESProvider {
	return &SESProvider{
		client:           client,
		from:             cfg.From,
		fromName:         cfg.FromName,
		replyTo:          cfg.ReplyTo,
		configurationSet: cfg.SES.ConfigurationSet,
		tags:             parseSESTags(cfg.SES.Tags),
	}
}

func (p *SESProvider) Name() string {
	return providers.ProviderSES
}

func (p *SESProvider) MaxConcurrency() int {
	return SESMaxConcurrency
}

func (p *SESProvider) Send(ctx context.Context, msg entities.OutboundMessage) (string, error) {
	if p.client == nil || p.from == "" {
		return "", domainerrors.ConfigurationMissing("ses region and sender address are required")
	}

	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(p.source()),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
		Tags: p.messageTags(msg),
	}
	if p.configurationSet != "" {
		input.ConfigurationSetName = aws.String(p.configurationSet)
	}
	if p.replyTo != "" {
		input.ReplyToAddresses = []string{p.replyTo}
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return "", classifySESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func (p *SESProvider) source() string {
	if p.fromName == "" {
		return p.from
	}
	return fmt.Sprintf("%q <%s>", p.fromName, p.from)
}

func (p *SESProvider) messageTags(msg entities.OutboundMessage) []types.MessageTag {
	tags := append([]types.MessageTag{}, p.tags...)
	if len(msg.Tags) > 0 {
		tags = append(tags, types.MessageTag{Name: aws.String("category"), Value: aws.String(sanitizeSESTag(msg.Tags[0]))})
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// parseSESTags reads "name=value" entries; malformed entries are skipped.
func parseSESTags(raw []string) []types.MessageTag {
	var tags []types.MessageTag
	for _, entry := range raw {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" || value == "" {
			continue
		}
		tags = append(tags, types.MessageTag{
			Name:  aws.String(sanitizeSESTag(name)),
			Value: aws.String(sanitizeSESTag(value)),
		})
	}
	return tags
}

// sanitizeSESTag keeps the characters SES accepts in tag names and values.
func sanitizeSESTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

var sesConfigurationCodes = map[string]bool{
	"MailFromDomainNotVerifiedException":     true,
	"ConfigurationSetDoesNotExistException":  true,
	"AccountSendingPausedException":          true,
	"ConfigurationSetSendingPausedException": true,
	"AccessDenied":                           true,
	"AccessDeniedException":                  true,
	"InvalidClientTokenId":                   true,
	"UnrecognizedClientException":            true,
	"SignatureDoesNotMatch":                  true,
}

var sesThrottlingCodes = map[string]bool{
	"Throttling":          true,
	"ThrottlingException": true,
	"RequestTimeout":      true,
}

func classifySESError(err error) *domainerrors.DeliveryError {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return domainerrors.ProviderTransient(err.Error(), err)
	}

	detail := fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	switch {
	case sesThrottlingCodes[apiErr.ErrorCode()]:
		return domainerrors.ProviderTransient(detail, err)
	case sesConfigurationCodes[apiErr.ErrorCode()]:
		return domainerrors.NewDeliveryError(domainerrors.KindConfigurationMissing, detail, err)
	case apiErr.ErrorFault() == smithy.FaultServer:
		return domainerrors.ProviderTransient(detail, err)
	default:
		return domainerrors.ProviderRejected(detail, err)
	}
}
