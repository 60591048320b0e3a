package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"notify-hub.backend/internal/config"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func sesConfig() config.EmailConfig {
	return config.EmailConfig{
		From:     "noreply@example.com",
		FromName: "Notify",
		SES: config.SESConfig{
			Region:           "eu-west-1",
			ConfigurationSet: "transactional",
			Tags:             []string{"app=notify-hub", "broken", "team=core"},
		},
	}
}

func TestSESProvider_Send(t *testing.T) {
	client := &fakeSES{}
	p := newSESProvider(client, sesConfig())

	id, err := p.Send(context.Background(), entities.OutboundMessage{
		To:      "ana@example.com",
		Subject: "Hi Ana",
		HTML:    "<p>Hi Ana</p>",
		Text:    "Hi Ana",
		Tags:    []string{"comment.reply"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)

	in := client.input
	require.NotNil(t, in)
	assert.Equal(t, `"Notify" <noreply@example.com>`, aws.ToString(in.Source))
	assert.Equal(t, []string{"ana@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Hi Ana", aws.ToString(in.Message.Subject.Data))
	assert.Equal(t, "<p>Hi Ana</p>", aws.ToString(in.Message.Body.Html.Data))
	assert.Equal(t, "Hi Ana", aws.ToString(in.Message.Body.Text.Data))
	assert.Equal(t, "transactional", aws.ToString(in.ConfigurationSetName))

	require.Len(t, in.Tags, 3)
	assert.Equal(t, "app", aws.ToString(in.Tags[0].Name))
	assert.Equal(t, "notify-hub", aws.ToString(in.Tags[0].Value))
	assert.Equal(t, "category", aws.ToString(in.Tags[2].Name))
	assert.Equal(t, "comment_reply", aws.ToString(in.Tags[2].Value))
	assert.Equal(t, SESMaxConcurrency, p.MaxConcurrency())
}

func TestSESProvider_TextOnlyOmitsHTML(t *testing.T) {
	client := &fakeSES{}
	p := newSESProvider(client, config.EmailConfig{From: "noreply@example.com"})

	_, err := p.Send(context.Background(), entities.OutboundMessage{To: "a@example.com", Text: "plain"})
	require.NoError(t, err)
	assert.Nil(t, client.input.Message.Body.Html)
	assert.Nil(t, client.input.ConfigurationSetName)
	assert.Nil(t, client.input.Tags)
	assert.Equal(t, "noreply@example.com", aws.ToString(client.input.Source))
}

func TestSESProvider_MissingRegion(t *testing.T) {
	cfg := sesConfig()
	cfg.SES.Region = ""

	p, err := NewSESProvider(context.Background(), cfg)
	require.NoError(t, err)
	_, err = p.Send(context.Background(), entities.OutboundMessage{To: "a@example.com"})
	assert.Equal(t, domainerrors.KindConfigurationMissing, domainerrors.DeliveryKindOf(err))
}

func TestSESProvider_LoadConfigFailure(t *testing.T) {
	orig := loadAWSConfig
	t.Cleanup(func() { loadAWSConfig = orig })
	loadAWSConfig = func(context.Context, string) (aws.Config, error) {
		return aws.Config{}, errors.New("no shared config")
	}

	p, err := NewSESProvider(context.Background(), sesConfig())
	require.Error(t, err)
	require.NotNil(t, p)
	_, err = p.Send(context.Background(), entities.OutboundMessage{To: "a@example.com"})
	assert.Equal(t, domainerrors.KindConfigurationMissing, domainerrors.DeliveryKindOf(err))
}

func TestClassifySESError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind domainerrors.DeliveryKind
	}{
		{"throttling", &smithy.GenericAPIError{Code: "Throttling", Message: "Maximum sending rate exceeded.", Fault: smithy.FaultClient}, domainerrors.KindProviderTransient},
		{"server fault", &smithy.GenericAPIError{Code: "InternalFailure", Message: "boom", Fault: smithy.FaultServer}, domainerrors.KindProviderTransient},
		{"rejected", &smithy.GenericAPIError{Code: "MessageRejected", Message: "Email address is not verified.", Fault: smithy.FaultClient}, domainerrors.KindProviderRejected},
		{"unverified domain", &smithy.GenericAPIError{Code: "MailFromDomainNotVerifiedException", Message: "not verified", Fault: smithy.FaultClient}, domainerrors.KindConfigurationMissing},
		{"network", errors.New("dial tcp: i/o timeout"), domainerrors.KindProviderTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := classifySESError(tc.err)
			assert.Equal(t, tc.kind, de.Kind)
			assert.NotEmpty(t, de.Detail)
		})
	}

	de := classifySESError(&smithy.GenericAPIError{Code: "MessageRejected", Message: "Email address is not verified."})
	assert.Equal(t, "MessageRejected: Email address is not verified.", de.Detail)
}
