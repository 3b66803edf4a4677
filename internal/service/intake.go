package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/model"
	"github.com/dron-olya7/verigate/internal/phone"
	"github.com/dron-olya7/verigate/internal/storage"
)

type IntakeService interface {
	Submit(ctx context.Context, rawPhone, sourceDomain, key string, payload map[string]string) (*model.RawSubmission, error)
}

type intakeService struct {
	store    storage.SubmissionStore
	validate *validator.Validate
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewIntakeService(store storage.SubmissionStore, logger *slog.Logger) IntakeService {
	l := logger.With("layer", "service", "component", "intakeService")
	return &intakeService{
		store:    store,
		validate: validator.New(),
		logger:   l,
		tracer:   otel.Tracer("verigate"),
	}
}

// Submit normalizes the phone, persists the raw form payload untouched and
// returns the stored record. Later verification events match against it by
// the normalized phone.
func (s *intakeService) Submit(ctx context.Context, rawPhone, sourceDomain, key string, payload map[string]string) (*model.RawSubmission, error) {
	ctx, span := s.tracer.Start(ctx, "Submit")
	defer span.End()

	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		s.logger.Warn("submission rejected",
			slog.String("phone", rawPhone),
			slog.String("error", err.Error()))
		return nil, apperr.NewInvalid("phone %q: %v", rawPhone, err)
	}
	span.SetAttributes(attribute.String("submission.source_domain", sourceDomain))

	if payload == nil {
		payload = map[string]string{}
	}
	sub := &model.RawSubmission{
		ID:              uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		Phone:           normalized,
		SourceDomain:    sourceDomain,
		Payload:         payload,
		VerificationKey: key,
	}

	if err := s.validate.Struct(sub); err != nil {
		s.logger.Warn("submission failed validation", slog.String("error", err.Error()))
		return nil, apperr.NewInvalid("submission: %v", err)
	}

	if err := s.store.InsertSubmission(ctx, sub); err != nil {
		s.logger.Error("failed to store submission",
			slog.String("phone", normalized),
			slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.logger.Info("submission stored",
		slog.String("id", sub.ID),
		slog.String("phone", normalized),
		slog.String("source_domain", sourceDomain))
	return sub, nil
}
