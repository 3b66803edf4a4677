package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/model"
	"github.com/dron-olya7/verigate/internal/phone"
	"github.com/dron-olya7/verigate/internal/storage"
)

const (
	defaultAttemptsLimit = 20
	maxAttemptsLimit     = 100
)

// AdminService manages webhook endpoint registrations and exposes the
// attempt audit trail.
type AdminService interface {
	UpsertEndpoint(ctx context.Context, ep model.WebhookEndpoint) (*model.WebhookEndpoint, error)
	GetEndpoint(ctx context.Context, key string) (*model.WebhookEndpoint, error)
	ListAttempts(ctx context.Context, rawPhone string, limit int) ([]model.VerificationAttempt, error)
}

type adminService struct {
	store    storage.SubmissionStore
	validate *validator.Validate
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewAdminService(store storage.SubmissionStore, logger *slog.Logger) AdminService {
	l := logger.With("layer", "service", "component", "adminService")
	return &adminService{
		store:    store,
		validate: validator.New(),
		logger:   l,
		tracer:   otel.Tracer("verigate"),
	}
}

func (s *adminService) UpsertEndpoint(ctx context.Context, ep model.WebhookEndpoint) (*model.WebhookEndpoint, error) {
	ctx, span := s.tracer.Start(ctx, "UpsertEndpoint")
	defer span.End()

	ep.UpdatedAt = time.Now().UTC()
	if err := s.validate.Struct(&ep); err != nil {
		s.logger.Warn("endpoint rejected",
			slog.String("key", ep.Key),
			slog.String("error", err.Error()))
		return nil, apperr.NewInvalid("endpoint: %v", err)
	}

	if err := s.store.UpsertWebhookEndpoint(ctx, &ep); err != nil {
		s.logger.Error("failed to upsert endpoint",
			slog.String("key", ep.Key),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Info("endpoint upserted",
		slog.String("key", ep.Key),
		slog.Bool("enabled", ep.Enabled))
	return &ep, nil
}

func (s *adminService) GetEndpoint(ctx context.Context, key string) (*model.WebhookEndpoint, error) {
	ctx, span := s.tracer.Start(ctx, "GetEndpoint")
	defer span.End()

	ep, err := s.store.FindWebhookEndpoint(ctx, key)
	if err != nil {
		if apperr.IsNotFound(err) {
			s.logger.Warn("endpoint not found", slog.String("key", key))
			return nil, err
		}
		s.logger.Error("failed to fetch endpoint",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, err
	}
	return ep, nil
}

// ListAttempts returns the newest audit records for a phone. The phone is
// normalized the same way intake does, so formatted numbers find their trail.
func (s *adminService) ListAttempts(ctx context.Context, rawPhone string, limit int) ([]model.VerificationAttempt, error) {
	ctx, span := s.tracer.Start(ctx, "ListAttempts")
	defer span.End()

	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, apperr.NewInvalid("phone %q: %v", rawPhone, err)
	}

	if limit <= 0 {
		limit = defaultAttemptsLimit
	}
	if limit > maxAttemptsLimit {
		limit = maxAttemptsLimit
	}

	attempts, err := s.store.ListAttemptsByPhone(ctx, normalized, limit)
	if err != nil {
		s.logger.Error("failed to list attempts",
			slog.String("phone", normalized),
			slog.String("error", err.Error()))
		return nil, err
	}
	return attempts, nil
}
