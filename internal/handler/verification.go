package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/model"
	"github.com/dron-olya7/verigate/internal/phone"
	"github.com/dron-olya7/verigate/internal/service"
	"github.com/dron-olya7/verigate/pkg/tracing"
)

// VerificationHandler receives out-of-band verification pings from
// messaging-bot callbacks and renders the semantic outcome. Transport-level
// failure codes are reserved for the store being unreachable; everything
// else is reported in the result envelope.
type VerificationHandler struct {
	svc    service.VerificationService
	logger *slog.Logger
}

func NewVerificationHandler(s service.VerificationService, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{svc: s, logger: logger}
}

func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("verigate-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "Verify")
	defer span.End()

	var body struct {
		Phone  string `json:"phone"`
		Key    string `json:"key"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		tracer.RecordError(span, err)
		h.logger.Warn("Invalid request body for Verify")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	normalized, err := phone.Normalize(body.Phone)
	if err != nil {
		h.logger.Warn("Verification rejected",
			slog.String("phone", body.Phone),
			slog.Any("error", err))
		http.Error(w, "invalid phone", http.StatusBadRequest)
		return
	}

	event := model.VerificationEvent{
		Phone:  normalized,
		Key:    body.Key,
		Source: classifySource(body.Source),
	}
	tracer.AddAttributes(span, attribute.String(tracing.AttrVerificationSource, event.Source))

	result, err := h.svc.Verify(ctx, event)
	if err != nil {
		if apperr.IsConnection(err) {
			h.logger.Error("Verify aborted, store unreachable", slog.Any("error", err))
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		tracer.RecordError(span, err)
		h.logger.Error("Verify failed", slog.Any("error", err))
		respondJSON(w, http.StatusInternalServerError, model.VerificationResult{Status: model.StatusError})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// classifySource maps the caller-supplied tag onto the known sources.
// Anything unrecognized is kept as unknown rather than rejected.
func classifySource(source string) string {
	switch source {
	case model.SourceTelegram, model.SourceWhatsApp, model.SourceTilda:
		return source
	default:
		return model.SourceUnknown
	}
}
