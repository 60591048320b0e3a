package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/domain/repositories"
	"notify-hub.backend/internal/metrics"
	"notify-hub.backend/pkg/logger"
	"notify-hub.backend/pkg/utils"
)

// Render data keys populated with capability URLs for anonymous recipients.
const (
	VarVerifyURL      = "verify_url"
	VarHideURL        = "hide_url"
	VarManageURL      = "manage_url"
	VarUnsubscribeURL = "unsubscribe_url"
	VarProfileURL     = "profile_url"
)

var capabilityVars = []string{VarVerifyURL, VarHideURL, VarManageURL, VarUnsubscribeURL, VarProfileURL}

const redactedValue = "[redacted]"

// TokenIssuer issues the capability secret for an address.
type TokenIssuer interface {
	IssueOrRotate(ctx context.Context, email string) (*entities.IssuedToken, error)
}

// TemplateSource resolves templates by name.
type TemplateSource interface {
	GetByName(ctx context.Context, name string) (*entities.EmailTemplate, error)
}

// BatchDispatcher hands messages to the email provider.
type BatchDispatcher interface {
	ProviderName() string
	SendBatch(ctx context.Context, msgs []entities.OutboundMessage, batchSize int) entities.BatchResult
}

// SweepPolicy bounds one delivery pass and the retry schedule.
type SweepPolicy struct {
	BatchSize   int
	MaxAttempts int
	MaxAge      time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	StaleAfter  time.Duration
}

// Backoff returns the delay before retry number attempts (1-based).
func (p SweepPolicy) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.MaxBackoff || delay <= 0 {
			return p.MaxBackoff
		}
	}
	return min(delay, p.MaxBackoff)
}

// NotifyInput describes one notification to queue.
type NotifyInput struct {
	EventKind      string
	TemplateName   string
	RecipientEmail string
	Context        map[string]any
	Unsubscribe    UnsubscribeVariant
	// RecipientIsUser skips token issuance; authenticated users manage mail from their account.
	RecipientIsUser bool
	RelatedType     string
	RelatedID       string
	// ScheduledFor delays delivery; zero means now.
	ScheduledFor time.Time
}

// SweepReport counts what one delivery pass did.
type SweepReport struct {
	Released    int64 `json:"released"`
	Due         int   `json:"due"`
	Claimed     int   `json:"claimed"`
	Skipped     int   `json:"skipped"`
	Sent        int   `json:"sent"`
	Suppressed  int   `json:"suppressed"`
	Rescheduled int   `json:"rescheduled"`
	Failed      int   `json:"failed"`
	Errors      int   `json:"errors"`
}

// NotificationUsecase queues rendered notifications and delivers them from the sweep.
type NotificationUsecase struct {
	notificationRepo repositories.NotificationRepository
	templates        TemplateSource
	tokens           TokenIssuer
	dispatcher       BatchDispatcher
	uow              repositories.UnitOfWork
	links            LinkBuilder
	policy           SweepPolicy
	now              func() time.Time
	tracer           trace.Tracer
}

// NewNotificationUsecase creates a new notification usecase
func NewNotificationUsecase(
	notificationRepo repositories.NotificationRepository,
	templates TemplateSource,
	tokens TokenIssuer,
	dispatcher BatchDispatcher,
	uow repositories.UnitOfWork,
	links LinkBuilder,
	policy SweepPolicy,
) *NotificationUsecase {
	if policy.BatchSize <= 0 {
		policy.BatchSize = 100
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = time.Minute
	}
	if policy.MaxBackoff < policy.BaseBackoff {
		policy.MaxBackoff = max(time.Hour, policy.BaseBackoff)
	}
	return &NotificationUsecase{
		notificationRepo: notificationRepo,
		templates:        templates,
		tokens:           tokens,
		dispatcher:       dispatcher,
		uow:              uow,
		links:            links,
		policy:           policy,
		now:              func() time.Time { return time.Now().UTC() },
		tracer:           otel.Tracer("notify-hub/notifications"),
	}
}

// Notify renders and queues a notification. It never contacts the provider; delivery
// happens in a later sweep. Within a transaction carried by ctx, the record commits
// with the caller's own writes.
func (u *NotificationUsecase) Notify(ctx context.Context, input NotifyInput) (*entities.Notification, error) {
	email := NormalizeEmail(input.RecipientEmail)
	eventKind := strings.TrimSpace(input.EventKind)
	switch {
	case eventKind == "":
		return nil, domainerrors.BadRequest("eventKind is required")
	case !ValidEmail(email):
		return nil, domainerrors.BadRequest("invalid recipient email")
	case !ValidTemplateName(input.TemplateName):
		return nil, domainerrors.BadRequest("invalid template name")
	case !input.Unsubscribe.Valid():
		return nil, domainerrors.BadRequest("invalid unsubscribe variant")
	}

	tpl, err := u.templates.GetByName(ctx, input.TemplateName)
	if err != nil {
		return nil, err
	}
	if !tpl.IsActive {
		return nil, domainerrors.ErrTemplateInactive
	}

	var n *entities.Notification
	err = u.uow.Do(ctx, func(ctx context.Context) error {
		data := make(map[string]any, len(input.Context)+len(capabilityVars))
		for k, v := range input.Context {
			data[k] = v
		}

		var links UnsubscribeLinks
		if input.RecipientIsUser {
			links = UnsubscribeLinks{GlobalURL: u.links.AccountURL(), ProfileURL: u.links.AccountURL()}
			data[VarProfileURL] = links.ProfileURL
		} else {
			issued, err := u.tokens.IssueOrRotate(ctx, email)
			if err != nil {
				return fmt.Errorf("issue verification token: %w", err)
			}
			links = u.links.Links(issued.Secret, input.RelatedID)
			data[VarVerifyURL] = u.links.VerifyURL(issued.Secret, entities.TokenActionView)
			data[VarHideURL] = u.links.VerifyURL(issued.Secret, entities.TokenActionHide)
			data[VarManageURL] = u.links.VerifyURL(issued.Secret, entities.TokenActionManage)
			data[VarUnsubscribeURL] = links.GlobalURL
			data[VarProfileURL] = links.ProfileURL
		}

		rendered := RenderTemplate(tpl, data, input.Unsubscribe, links)

		now := u.now()
		scheduled := input.ScheduledFor.UTC()
		if input.ScheduledFor.IsZero() || scheduled.Before(now) {
			scheduled = now
		}
		templateID := tpl.ID
		n = &entities.Notification{
			ID:            utils.NewID(),
			Recipient:     email,
			Subject:       rendered.Subject,
			HTMLBody:      rendered.HTML,
			TextBody:      rendered.Text,
			TemplateID:    &templateID,
			TemplateName:  tpl.Name,
			EventKind:     eventKind,
			RenderContext: redactSnapshot(data),
			Status:        entities.NotificationStatusQueued,
			ScheduledFor:  scheduled,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if input.RelatedType != "" {
			n.RelatedType = null.StringFrom(input.RelatedType)
		}
		if input.RelatedID != "" {
			n.RelatedID = null.StringFrom(input.RelatedID)
		}
		return u.notificationRepo.Create(ctx, n)
	})
	if err != nil {
		return nil, err
	}

	metrics.NotificationsQueued.WithLabelValues(eventKind).Inc()
	logger.Info(logger.WithNotificationID(ctx, n.ID.String()), "Notification queued",
		zap.String("event_kind", eventKind),
		zap.String("template", tpl.Name),
	)
	return n, nil
}

// redactSnapshot copies data without the bearer capability URLs.
func redactSnapshot(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, k := range capabilityVars {
		if _, ok := out[k]; ok {
			out[k] = redactedValue
		}
	}
	return out
}

// ProcessDue runs one delivery pass: stale claims are released, due records are
// claimed and sent, and each outcome is written back. A failure on one record is
// logged and the pass continues.
func (u *NotificationUsecase) ProcessDue(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	ctx, span := u.tracer.Start(ctx, "notifications.sweep")
	defer span.End()

	now := u.now()
	if u.policy.StaleAfter > 0 {
		released, err := u.notificationRepo.ReleaseStale(ctx, now.Add(-u.policy.StaleAfter), now)
		if err != nil {
			return report, fmt.Errorf("release stale notifications: %w", err)
		}
		report.Released = released
		if released > 0 {
			logger.Warn(ctx, "Released stale SENDING notifications", zap.Int64("count", released))
		}
	}

	due, err := u.notificationRepo.ListDue(ctx, now, u.policy.BatchSize)
	if err != nil {
		return report, err
	}
	report.Due = len(due)

	provider := u.dispatcher.ProviderName()
	claimed := make([]*entities.Notification, 0, len(due))
	for _, n := range due {
		ok, err := u.notificationRepo.Claim(ctx, n.ID, provider, now)
		if err != nil {
			report.Errors++
			logger.Error(logger.WithNotificationID(ctx, n.ID.String()), "Failed to claim notification", zap.Error(err))
			continue
		}
		if !ok {
			report.Skipped++
			continue
		}
		n.Attempts++
		n.Status = entities.NotificationStatusSending
		n.Provider = provider
		claimed = append(claimed, n)
	}
	report.Claimed = len(claimed)
	span.SetAttributes(attribute.Int("sweep.claimed", len(claimed)))
	if len(claimed) == 0 {
		return report, nil
	}

	msgs := make([]entities.OutboundMessage, len(claimed))
	for i, n := range claimed {
		msgs[i] = entities.OutboundMessage{
			Reference: n.ID.String(),
			To:        n.Recipient,
			Subject:   n.Subject,
			HTML:      n.HTMLBody,
			Text:      n.TextBody,
			Tags:      []string{n.EventKind},
		}
	}

	batch := u.dispatcher.SendBatch(ctx, msgs, 0)
	for i, result := range batch.Results {
		u.applyOutcome(ctx, claimed[i], result, &report)
	}
	return report, nil
}

func (u *NotificationUsecase) applyOutcome(ctx context.Context, n *entities.Notification, result entities.SendResult, report *SweepReport) {
	ctx = logger.WithNotificationID(ctx, n.ID.String())
	now := u.now()

	var (
		outcome string
		err     error
	)
	switch {
	case result.Suppressed:
		outcome = "suppressed"
		err = u.notificationRepo.MarkSuppressed(ctx, n.ID, domainerrors.Suppressed(n.Recipient).Error(), now)
	case result.Err == nil:
		outcome = "sent"
		err = u.notificationRepo.MarkSent(ctx, n.ID, result.ProviderMessageID, now)
	default:
		de := domainerrors.AsDeliveryError(result.Err)
		if u.shouldRetry(n, de, now) {
			outcome = "rescheduled"
			next := now.Add(u.policy.Backoff(n.Attempts))
			err = u.notificationRepo.Reschedule(ctx, n.ID, de.Error(), next, now)
		} else {
			outcome = "failed"
			err = u.notificationRepo.MarkFailed(ctx, n.ID, de.Error(), now)
		}
		logger.Warn(ctx, "Notification delivery failed",
			zap.String("kind", string(de.Kind)),
			zap.String("detail", de.Detail),
			zap.Int("attempts", n.Attempts),
			zap.String("outcome", outcome),
		)
	}

	if err != nil {
		report.Errors++
		logger.Error(ctx, "Failed to record delivery outcome", zap.String("outcome", outcome), zap.Error(err))
		return
	}

	metrics.SweepRecords.WithLabelValues(outcome).Inc()
	switch outcome {
	case "sent":
		report.Sent++
	case "suppressed":
		report.Suppressed++
	case "rescheduled":
		report.Rescheduled++
	case "failed":
		report.Failed++
	}
}

func (u *NotificationUsecase) shouldRetry(n *entities.Notification, de *domainerrors.DeliveryError, now time.Time) bool {
	if !de.Retryable() {
		return false
	}
	if n.Attempts >= u.policy.MaxAttempts {
		return false
	}
	if u.policy.MaxAge > 0 && now.Sub(n.CreatedAt) >= u.policy.MaxAge {
		return false
	}
	return true
}

// Requeue makes a FAILED notification due again with a fresh attempt budget.
func (u *NotificationUsecase) Requeue(ctx context.Context, id uuid.UUID) (*entities.Notification, error) {
	if err := u.notificationRepo.Requeue(ctx, id, u.now()); err != nil {
		return nil, err
	}
	return u.notificationRepo.GetByID(ctx, id)
}

func (u *NotificationUsecase) Get(ctx context.Context, id uuid.UUID) (*entities.Notification, error) {
	return u.notificationRepo.GetByID(ctx, id)
}

// List pages through notifications, optionally filtered by status, newest first.
func (u *NotificationUsecase) List(ctx context.Context, status string, page, limit int) ([]*entities.Notification, utils.PageMeta, error) {
	s := entities.NotificationStatus(strings.ToUpper(strings.TrimSpace(status)))
	if s != "" && !s.Valid() {
		return nil, utils.PageMeta{}, domainerrors.BadRequest("invalid status filter")
	}

	p := utils.NewPage(page, limit)
	items, total, err := u.notificationRepo.List(ctx, s, p.Size, p.Offset())
	if err != nil {
		return nil, utils.PageMeta{}, err
	}
	return items, p.Meta(total), nil
}
