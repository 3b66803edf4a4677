package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/kafka"
	"github.com/dron-olya7/verigate/internal/metrics"
	"github.com/dron-olya7/verigate/internal/model"
	"github.com/dron-olya7/verigate/internal/storage"
	"github.com/dron-olya7/verigate/pkg/tracing"
)

// AttemptRecorder appends one audit record per verification event.
type AttemptRecorder interface {
	Record(ctx context.Context, phone, source string, verified, found bool, status string) error
}

// WebhookDispatcher performs the single delivery attempt for a matched
// submission.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, key string, sub *model.RawSubmission, event *model.VerificationEvent, at time.Time) (bool, error)
}

type VerificationService interface {
	Verify(ctx context.Context, event model.VerificationEvent) (*model.VerificationResult, error)
}

type verificationService struct {
	store      storage.SubmissionStore
	audit      AttemptRecorder
	dispatcher WebhookDispatcher
	events     kafka.EventProducer
	window     time.Duration
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewVerificationService wires the matching flow. events may be nil when no
// broker is configured; outcome events are then skipped.
func NewVerificationService(
	store storage.SubmissionStore,
	audit AttemptRecorder,
	dispatcher WebhookDispatcher,
	events kafka.EventProducer,
	window time.Duration,
	logger *slog.Logger,
) VerificationService {
	l := logger.With("layer", "service", "component", "verificationService")
	return &verificationService{
		store:      store,
		audit:      audit,
		dispatcher: dispatcher,
		events:     events,
		window:     window,
		now:        time.Now,
		logger:     l,
		tracer:     otel.Tracer("verigate"),
	}
}

// Verify correlates an inbound verification event with the latest stored
// submission for its phone and walks the outcome machine:
//
//	no submission        -> unmatched:   audited, reported success/verified=false
//	submission too old   -> expired:     audited with timeout status, no dispatch
//	submission in window -> matched:     audited, dispatched once, flags updated
//
// Audit and flag-update failures propagate; a failed or skipped delivery
// only clears webhook_sent.
func (s *verificationService) Verify(ctx context.Context, event model.VerificationEvent) (*model.VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "Verify")
	defer span.End()

	span.SetAttributes(
		attribute.String(tracing.AttrVerificationSource, event.Source),
	)
	s.logger.Info("Verify called",
		slog.String("phone", event.Phone),
		slog.String("source", event.Source))

	result, err := s.resolve(ctx, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.VerificationOutcomes.WithLabelValues("error").Inc()
		return nil, err
	}
	return result, nil
}

func (s *verificationService) resolve(ctx context.Context, event model.VerificationEvent) (*model.VerificationResult, error) {
	sub, err := s.store.FindLatestByPhone(ctx, event.Phone)
	if apperr.IsNotFound(err) {
		return s.unmatched(ctx, event)
	}
	if err != nil {
		s.logger.Error("failed to look up submission",
			slog.String("phone", event.Phone),
			slog.String("error", err.Error()))
		return nil, err
	}

	elapsed := s.now().Sub(sub.CreatedAt)
	if elapsed > s.window {
		return s.expired(ctx, event, elapsed)
	}
	return s.matched(ctx, event, sub)
}

// unmatched handles a phone with no stored submission. A normal negative
// outcome, not an error.
func (s *verificationService) unmatched(ctx context.Context, event model.VerificationEvent) (*model.VerificationResult, error) {
	if err := s.audit.Record(ctx, event.Phone, event.Source, false, false, ""); err != nil {
		return nil, err
	}

	s.logger.Info("verification unmatched", slog.String("phone", event.Phone))
	metrics.VerificationOutcomes.WithLabelValues("not_found").Inc()
	s.publishOutcome(ctx, event, model.StatusSuccess, false, false)

	return &model.VerificationResult{Status: model.StatusSuccess, Verified: false}, nil
}

// expired handles a match outside the validity window. The submission is
// permanently ineligible; dispatch never happens.
func (s *verificationService) expired(ctx context.Context, event model.VerificationEvent, elapsed time.Duration) (*model.VerificationResult, error) {
	if err := s.audit.Record(ctx, event.Phone, event.Source, false, true, model.AttemptStatusTimeout); err != nil {
		return nil, err
	}

	s.logger.Info("verification window expired",
		slog.String("phone", event.Phone),
		slog.Duration("elapsed", elapsed))
	metrics.VerificationOutcomes.WithLabelValues("timeout").Inc()
	s.publishOutcome(ctx, event, model.StatusTimeout, false, false)

	return &model.VerificationResult{Status: model.StatusTimeout, Verified: false}, nil
}

// matched handles a submission inside the window: audit first, then the one
// dispatch attempt, then exactly one flag update reflecting its outcome.
func (s *verificationService) matched(ctx context.Context, event model.VerificationEvent, sub *model.RawSubmission) (*model.VerificationResult, error) {
	// The attempt records pre-dispatch intent; delivery outcome lands on the
	// submission flags instead.
	if err := s.audit.Record(ctx, event.Phone, event.Source, false, true, ""); err != nil {
		return nil, err
	}

	key := event.Key
	if key == "" {
		key = sub.VerificationKey
	}

	delivered, err := s.dispatcher.Dispatch(ctx, key, sub, &event, s.now())
	if err != nil {
		switch {
		case apperr.IsNotFound(err) || apperr.IsDisabled(err):
			s.logger.Warn("webhook endpoint unavailable",
				slog.String("phone", event.Phone),
				slog.String("key", key),
				slog.String("reason", err.Error()))
		case apperr.AsDelivery(err) != nil:
			s.logger.Warn("webhook delivery failed",
				slog.String("phone", event.Phone),
				slog.String("key", key),
				slog.String("error", err.Error()))
		default:
			s.logger.Error("webhook dispatch failed",
				slog.String("phone", event.Phone),
				slog.String("error", err.Error()))
			return nil, err
		}
	}

	flags := model.VerificationFlags{
		Verified:        true,
		WebhookSent:     delivered,
		VerificationKey: key,
	}
	if err := s.store.UpdateVerificationFlags(ctx, event.Phone, flags); err != nil {
		s.logger.Error("failed to update verification flags",
			slog.String("phone", event.Phone),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Info("verification matched",
		slog.String("phone", event.Phone),
		slog.Bool("webhook_sent", delivered))
	metrics.VerificationOutcomes.WithLabelValues("matched").Inc()
	s.publishOutcome(ctx, event, model.StatusSuccess, true, delivered)

	return &model.VerificationResult{
		Status:      model.StatusSuccess,
		Verified:    true,
		WebhookSent: &delivered,
	}, nil
}

// publishOutcome emits the outcome event when a producer is wired.
// Best-effort only.
func (s *verificationService) publishOutcome(ctx context.Context, event model.VerificationEvent, status string, verified, webhookSent bool) {
	if s.events == nil {
		return
	}
	outcome := model.OutcomeEvent{
		Phone:       event.Phone,
		Source:      event.Source,
		Status:      status,
		Verified:    verified,
		WebhookSent: webhookSent,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.events.Publish(ctx, outcome); err != nil {
		s.logger.Warn("failed to publish outcome event",
			slog.String("phone", event.Phone),
			slog.String("error", err.Error()))
	}
}
