package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"notify-hub.backend/internal/config"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/domain/providers"
)

var _ providers.BatchProvider = (*BrevoProvider)(nil)

const brevoDefaultTimeout = 10 * time.Second

// BrevoProvider sends through the Brevo transactional email API.
type BrevoProvider struct {
	apiKey   string
	baseURL  string
	from     string
	fromName string
	replyTo  string
	tags     []string
	http     *http.Client
}

func NewBrevoProvider(cfg config.EmailConfig) *BrevoProvider {
	return &BrevoProvider{
		apiKey:   cfg.Brevo.APIKey,
		baseURL:  strings.TrimSuffix(cfg.Brevo.BaseURL, "/"),
		from:     cfg.From,
		fromName: cfg.FromName,
		replyTo:  cfg.ReplyTo,
		tags:     cfg.Brevo.Tags,
		http:     &http.Client{Timeout: brevoDefaultTimeout},
	}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoVersion struct {
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject,omitempty"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	TextContent string         `json:"textContent,omitempty"`
}

type brevoEmail struct {
	Sender          brevoContact   `json:"sender"`
	To              []brevoContact `json:"to,omitempty"`
	ReplyTo         *brevoContact  `json:"replyTo,omitempty"`
	Subject         string         `json:"subject"`
	HTMLContent     string         `json:"htmlContent,omitempty"`
	TextContent     string         `json:"textContent,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	MessageVersions []brevoVersion `json:"messageVersions,omitempty"`
}

type brevoResponse struct {
	MessageID  string   `json:"messageId"`
	MessageIDs []string `json:"messageIds"`
}

type brevoErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *BrevoProvider) Name() string {
	return providers.ProviderBrevo
}

func (p *BrevoProvider) Send(ctx context.Context, msg entities.OutboundMessage) (string, error) {
	payload := p.basePayload(msg)
	payload.To = []brevoContact{{Email: msg.To}}
	payload.Subject = msg.Subject
	payload.HTMLContent = msg.HTML
	payload.TextContent = msg.Text

	resp, err := p.post(ctx, payload)
	if err != nil {
		return "", err
	}
	id := resp.MessageID
	if id == "" && len(resp.MessageIDs) > 0 {
		id = resp.MessageIDs[0]
	}
	if id == "" {
		return "", domainerrors.ProviderTransient("brevo accepted the request without a message id", nil)
	}
	return id, nil
}

// SendBatch sends all messages in one request using message versions. Brevo
// accepts or rejects the request as a whole.
func (p *BrevoProvider) SendBatch(ctx context.Context, msgs []entities.OutboundMessage) ([]string, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	payload := p.basePayload(msgs[0])
	payload.Subject = msgs[0].Subject
	payload.HTMLContent = msgs[0].HTML
	payload.TextContent = msgs[0].Text
	payload.MessageVersions = make([]brevoVersion, len(msgs))
	for i, msg := range msgs {
		payload.MessageVersions[i] = brevoVersion{
			To:          []brevoContact{{Email: msg.To}},
			Subject:     msg.Subject,
			HTMLContent: msg.HTML,
			TextContent: msg.Text,
		}
	}

	resp, err := p.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	if len(resp.MessageIDs) != len(msgs) {
		return nil, domainerrors.ProviderTransient(
			fmt.Sprintf("brevo returned %d message ids for %d messages", len(resp.MessageIDs), len(msgs)), nil)
	}
	return resp.MessageIDs, nil
}

func (p *BrevoProvider) basePayload(msg entities.OutboundMessage) brevoEmail {
	payload := brevoEmail{
		Sender: brevoContact{Email: p.from, Name: p.fromName},
		Tags:   append(append([]string{}, p.tags...), msg.Tags...),
	}
	if p.replyTo != "" {
		payload.ReplyTo = &brevoContact{Email: p.replyTo}
	}
	return payload
}

func (p *BrevoProvider) post(ctx context.Context, payload brevoEmail) (*brevoResponse, error) {
	if p.apiKey == "" || p.from == "" {
		return nil, domainerrors.ConfigurationMissing("brevo api key and sender address are required")
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, domainerrors.ProviderRejected(fmt.Sprintf("encoding brevo payload: %v", err), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/smtp/email", bytes.NewReader(buf))
	if err != nil {
		return nil, domainerrors.ConfigurationMissing(fmt.Sprintf("building brevo request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, domainerrors.ProviderTransient(err.Error(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domainerrors.ProviderTransient(fmt.Sprintf("reading brevo response: %v", err), err)
	}

	if resp.StatusCode >= 300 {
		return nil, classifyBrevoStatus(resp.StatusCode, resp.Status, body)
	}

	var out brevoResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, domainerrors.ProviderTransient(fmt.Sprintf("decoding brevo response: %v", err), err)
		}
	}
	return &out, nil
}

var errBrevoStatus = errors.New("brevo send failed")

func classifyBrevoStatus(code int, status string, body []byte) *domainerrors.DeliveryError {
	detail := "brevo send failed: " + status
	var apiErr brevoErrorBody
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		detail = fmt.Sprintf("%s (%s: %s)", detail, apiErr.Code, apiErr.Message)
	}
	err := fmt.Errorf("%w: status %d", errBrevoStatus, code)

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domainerrors.NewDeliveryError(domainerrors.KindConfigurationMissing, detail, err)
	case code == http.StatusTooManyRequests || code >= 500:
		return domainerrors.ProviderTransient(detail, err)
	default:
		return domainerrors.ProviderRejected(detail, err)
	}
}
