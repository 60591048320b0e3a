package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/domain/providers"
	"notify-hub.backend/internal/metrics"
	"notify-hub.backend/pkg/logger"
)

const (
	DefaultBatchSize   = 50
	DefaultSendTimeout = 15 * time.Second
)

// SuppressionChecker reports whether an address must not receive mail.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
}

// DispatcherConfig bounds the dispatcher's provider calls.
type DispatcherConfig struct {
	BatchSize   int
	SendTimeout time.Duration
}

// EmailDispatcher sends messages through the configured provider and normalizes outcomes.
type EmailDispatcher struct {
	provider     providers.EmailProvider
	fallback     providers.EmailProvider
	suppressions SuppressionChecker
	batchSize    int
	sendTimeout  time.Duration
	tracer       trace.Tracer
}

// NewEmailDispatcher creates a dispatcher. fallback receives failed single sends
// when provider is not itself the console provider; it may be nil.
func NewEmailDispatcher(
	provider providers.EmailProvider,
	fallback providers.EmailProvider,
	suppressions SuppressionChecker,
	cfg DispatcherConfig,
) *EmailDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &EmailDispatcher{
		provider:     provider,
		fallback:     fallback,
		suppressions: suppressions,
		batchSize:    cfg.BatchSize,
		sendTimeout:  cfg.SendTimeout,
		tracer:       otel.Tracer("notify-hub/email"),
	}
}

// ProviderName returns the name of the configured provider.
func (d *EmailDispatcher) ProviderName() string {
	return d.provider.Name()
}

// Send delivers one message. A suppressed recipient yields a result with Suppressed
// set and no error. A failed send is logged through the fallback provider and the
// result keeps the original error.
func (d *EmailDispatcher) Send(ctx context.Context, msg entities.OutboundMessage) entities.SendResult {
	result, ok := d.precheck(ctx, &msg)
	if !ok {
		return result
	}

	result = d.sendOne(ctx, msg)
	if result.Err != nil && d.fallback != nil && d.provider.Name() != providers.ProviderConsole {
		logger.Warn(ctx, "Email send failed, logging message to console",
			zap.String("provider", result.Provider),
			zap.String("to", msg.To),
			zap.Error(result.Err),
		)
		if _, err := d.fallback.Send(ctx, msg); err == nil {
			result.FallbackLogged = true
		}
	}
	return result
}

// SendBatch delivers msgs, batchSize at a time for providers with a batch API.
// Results keep input order.
func (d *EmailDispatcher) SendBatch(ctx context.Context, msgs []entities.OutboundMessage, batchSize int) entities.BatchResult {
	if batchSize <= 0 {
		batchSize = d.batchSize
	}
	msgs = append([]entities.OutboundMessage(nil), msgs...)

	results := make([]entities.SendResult, len(msgs))
	pending := make([]int, 0, len(msgs))
	for i := range msgs {
		r, ok := d.precheck(ctx, &msgs[i])
		if !ok {
			results[i] = r
			continue
		}
		pending = append(pending, i)
	}

	switch p := d.provider.(type) {
	case providers.BatchProvider:
		d.sendChunks(ctx, p, msgs, pending, batchSize, results)
	case providers.ConcurrentProvider:
		d.sendConcurrently(ctx, p.MaxConcurrency(), msgs, pending, results)
	default:
		for _, i := range pending {
			results[i] = d.sendOne(ctx, msgs[i])
		}
	}

	return partition(results)
}

func (d *EmailDispatcher) sendChunks(ctx context.Context, p providers.BatchProvider, msgs []entities.OutboundMessage, pending []int, size int, results []entities.SendResult) {
	for start := 0; start < len(pending); start += size {
		end := min(start+size, len(pending))
		idx := pending[start:end]

		chunk := make([]entities.OutboundMessage, len(idx))
		for j, i := range idx {
			chunk[j] = msgs[i]
		}

		ids, err := d.callBatch(ctx, p, chunk)
		if err == nil {
			for j, i := range idx {
				results[i] = entities.SendResult{
					Reference:         msgs[i].Reference,
					To:                msgs[i].To,
					Provider:          p.Name(),
					ProviderMessageID: ids[j],
				}
			}
			continue
		}

		logger.Warn(ctx, "Batch send failed, retrying messages individually",
			zap.String("provider", p.Name()),
			zap.Int("messages", len(chunk)),
			zap.Error(err),
		)
		for _, i := range idx {
			results[i] = d.sendOne(ctx, msgs[i])
		}
	}
}

func (d *EmailDispatcher) sendConcurrently(ctx context.Context, limit int, msgs []entities.OutboundMessage, pending []int, results []entities.SendResult) {
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, i := range pending {
		g.Go(func() error {
			results[i] = d.sendOne(ctx, msgs[i])
			return nil
		})
	}
	_ = g.Wait()
}

// precheck applies the suppression policy and fills in a text body. It returns
// false with a finished result when the message must not reach the provider.
func (d *EmailDispatcher) precheck(ctx context.Context, msg *entities.OutboundMessage) (entities.SendResult, bool) {
	result := entities.SendResult{
		Reference: msg.Reference,
		To:        msg.To,
		Provider:  d.provider.Name(),
	}

	if d.suppressions != nil {
		suppressed, err := d.suppressions.IsSuppressed(ctx, NormalizeEmail(msg.To))
		if err != nil {
			result.Err = domainerrors.ProviderTransient("suppression lookup failed: "+err.Error(), err)
			metrics.EmailSends.WithLabelValues(result.Provider, outcomeLabel(result.Err)).Inc()
			return result, false
		}
		if suppressed {
			result.Suppressed = true
			metrics.EmailSends.WithLabelValues(result.Provider, "suppressed").Inc()
			return result, false
		}
	}

	if strings.TrimSpace(msg.Text) == "" && msg.HTML != "" {
		msg.Text = HTMLToText(msg.HTML)
	}
	return result, true
}

func (d *EmailDispatcher) sendOne(ctx context.Context, msg entities.OutboundMessage) entities.SendResult {
	result := entities.SendResult{
		Reference: msg.Reference,
		To:        msg.To,
		Provider:  d.provider.Name(),
	}

	ctx, span := d.tracer.Start(ctx, "email.send", trace.WithAttributes(
		attribute.String("email.provider", result.Provider),
		attribute.String("notification.reference", msg.Reference),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	started := time.Now()
	id, err := d.provider.Send(callCtx, msg)
	metrics.EmailSendDuration.WithLabelValues(result.Provider).Observe(time.Since(started).Seconds())

	if err != nil {
		result.Err = normalizeSendError(err)
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, string(domainerrors.DeliveryKindOf(result.Err)))
	} else {
		result.ProviderMessageID = id
	}
	metrics.EmailSends.WithLabelValues(result.Provider, outcomeLabel(result.Err)).Inc()
	return result
}

func (d *EmailDispatcher) callBatch(ctx context.Context, p providers.BatchProvider, chunk []entities.OutboundMessage) ([]string, error) {
	ctx, span := d.tracer.Start(ctx, "email.send_batch", trace.WithAttributes(
		attribute.String("email.provider", p.Name()),
		attribute.Int("email.batch_size", len(chunk)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	started := time.Now()
	ids, err := p.SendBatch(callCtx, chunk)
	metrics.EmailSendDuration.WithLabelValues(p.Name()).Observe(time.Since(started).Seconds())
	if err == nil && len(ids) != len(chunk) {
		err = domainerrors.ProviderTransient("batch response does not match request size", nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for range chunk {
		metrics.EmailSends.WithLabelValues(p.Name(), "sent").Inc()
	}
	return ids, nil
}

// normalizeSendError classifies err; timeouts and cancellations are transient.
func normalizeSendError(err error) *domainerrors.DeliveryError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		var de *domainerrors.DeliveryError
		if errors.As(err, &de) && de.Kind == domainerrors.KindProviderTransient {
			return de
		}
		return domainerrors.ProviderTransient("provider call timed out: "+err.Error(), err)
	}
	return domainerrors.AsDeliveryError(err)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "sent"
	}
	return strings.ToLower(string(domainerrors.DeliveryKindOf(err)))
}

func partition(results []entities.SendResult) entities.BatchResult {
	out := entities.BatchResult{Results: results}
	for _, r := range results {
		switch {
		case r.Suppressed:
			out.Suppressed = append(out.Suppressed, r)
		case r.Err != nil:
			out.Failed = append(out.Failed, r)
		default:
			out.Succeeded = append(out.Succeeded, r)
		}
	}
	return out
}
