package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/service"
	"github.com/dron-olya7/verigate/pkg/tracing"
)

// IntakeHandler accepts browser-posted form submissions. Page builders post
// either JSON or urlencoded bodies with arbitrary string fields; the whole
// field set is stored opaquely.
type IntakeHandler struct {
	svc    service.IntakeService
	logger *slog.Logger
}

func NewIntakeHandler(s service.IntakeService, logger *slog.Logger) *IntakeHandler {
	return &IntakeHandler{svc: s, logger: logger}
}

func (h *IntakeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tracer := tracing.NewTracer(tracing.GetTracer("verigate-handler"))
	ctx, span := tracer.StartServerSpan(r.Context(), "Submit")
	defer span.End()

	payload, err := parseSubmissionBody(r)
	if err != nil {
		h.logger.Warn("Invalid request body for Submit", slog.Any("error", err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.svc.Submit(ctx, extractPhone(payload), sourceDomain(r), payload["verification_key"], payload)
	if err != nil {
		switch {
		case apperr.IsInvalid(err):
			h.logger.Warn("Submission rejected", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusBadRequest)
		case apperr.IsConnection(err):
			tracer.RecordError(span, err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		default:
			tracer.RecordError(span, err)
			h.logger.Error("Submit failed", slog.Any("error", err))
			http.Error(w, "processing error", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"id": sub.ID})
}

// parseSubmissionBody flattens the posted fields to strings regardless of
// whether the page builder sent JSON or a urlencoded form.
func parseSubmissionBody(r *http.Request) (map[string]string, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, err
		}
		payload := make(map[string]string, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				payload[k] = val
			case nil:
				payload[k] = ""
			default:
				payload[k] = fmt.Sprintf("%v", val)
			}
		}
		return payload, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	payload := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			payload[k] = vs[0]
		}
	}
	return payload, nil
}

// extractPhone finds the phone field among the posted names. Page builders
// are inconsistent about casing.
func extractPhone(payload map[string]string) string {
	for _, k := range []string{"phone", "Phone", "PHONE"} {
		if v, ok := payload[k]; ok && v != "" {
			return v
		}
	}
	for k, v := range payload {
		if strings.EqualFold(k, "phone") && v != "" {
			return v
		}
	}
	return ""
}

// sourceDomain extracts the posting page's host from Origin, falling back
// to Referer.
func sourceDomain(r *http.Request) string {
	for _, header := range []string{"Origin", "Referer"} {
		raw := r.Header.Get(header)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		return u.Host
	}
	return ""
}
