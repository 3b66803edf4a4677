package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/model"
	"github.com/dron-olya7/verigate/internal/service"
	"github.com/dron-olya7/verigate/pkg/tracing"
)

// EndpointHandler is the admin surface: webhook endpoint registration and
// the attempt audit trail.
type EndpointHandler struct {
	svc    service.AdminService
	logger *slog.Logger
}

func NewEndpointHandler(s service.AdminService, logger *slog.Logger) *EndpointHandler {
	return &EndpointHandler{svc: s, logger: logger}
}

func (h *EndpointHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("verigate-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "UpsertEndpoint")
	defer span.End()

	key := chi.URLParam(r, "key")

	var body struct {
		EndpointURL string `json:"endpoint_url"`
		Enabled     bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		tracer.RecordError(span, err)
		h.logger.Warn("Invalid request body for Upsert", slog.String("key", key))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ep, err := h.svc.UpsertEndpoint(ctx, model.WebhookEndpoint{
		Key:         key,
		EndpointURL: body.EndpointURL,
		Enabled:     body.Enabled,
	})
	if err != nil {
		if apperr.IsInvalid(err) {
			h.logger.Warn("Endpoint rejected", slog.String("key", key), slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tracer.RecordError(span, err)
		h.logger.Error("Upsert failed", slog.String("key", key), slog.Any("error", err))
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("verigate-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "GetEndpoint")
	defer span.End()

	key := chi.URLParam(r, "key")

	ep, err := h.svc.GetEndpoint(ctx, key)
	if err != nil {
		if apperr.IsNotFound(err) {
			h.logger.Warn("Endpoint not found", slog.String("key", key))
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		tracer.RecordError(span, err)
		h.logger.Error("GetEndpoint failed", slog.String("key", key), slog.Any("error", err))
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("verigate-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "ListAttempts")
	defer span.End()

	phone := r.URL.Query().Get("phone")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	attempts, err := h.svc.ListAttempts(ctx, phone, limit)
	if err != nil {
		if apperr.IsInvalid(err) {
			h.logger.Warn("ListAttempts rejected", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tracer.RecordError(span, err)
		h.logger.Error("ListAttempts failed", slog.Any("error", err))
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	if attempts == nil {
		attempts = []model.VerificationAttempt{}
	}
	respondJSON(w, http.StatusOK, attempts)
}
