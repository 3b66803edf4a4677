// Package webhook resolves per-key client endpoints and performs the single
// enriched delivery attempt for a verified submission.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/metrics"
	"github.com/dron-olya7/verigate/internal/model"
	"github.com/dron-olya7/verigate/pkg/tracing"
)

// Delivery failure bodies are captured for diagnostics but truncated so a
// misbehaving endpoint cannot balloon memory or audit records.
const maxCapturedBody = 32 << 10

// EndpointResolver is the slice of the store the dispatcher needs.
type EndpointResolver interface {
	FindWebhookEndpoint(ctx context.Context, key string) (*model.WebhookEndpoint, error)
}

// Dispatcher delivers enriched submissions to client-configured endpoints.
// Exactly one POST per dispatch: no retries, no redelivery. A failed
// delivery is reported to the caller as a *apperr.DeliveryError and recorded
// in the submission flags, never escalated into a request failure.
type Dispatcher struct {
	store  EndpointResolver
	client *http.Client
	tracer *tracing.Tracer
	log    *slog.Logger
}

// NewDispatcher creates a Dispatcher whose deliveries time out after timeout.
func NewDispatcher(store EndpointResolver, timeout time.Duration, tracer *tracing.Tracer, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		client: &http.Client{Timeout: timeout},
		tracer: tracer,
		log:    log.With("layer", "webhook"),
	}
}

// ResolveEndpoint looks up the endpoint registered under key. Returns
// apperr.ErrNotFound when key is empty or no endpoint is registered, and
// apperr.ErrDisabled when one is registered but switched off. Both are
// terminal for the dispatch, not errors of the verification itself.
func (d *Dispatcher) ResolveEndpoint(ctx context.Context, key string) (*model.WebhookEndpoint, error) {
	if key == "" {
		return nil, apperr.ErrNotFound
	}
	ep, err := d.store.FindWebhookEndpoint(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ep.Enabled {
		return nil, apperr.ErrDisabled
	}
	return ep, nil
}

// Dispatch resolves the endpoint for key and performs the single delivery
// attempt for sub enriched with the verification outcome at time at.
// Returns true only when the endpoint acknowledged with a 2xx status.
func (d *Dispatcher) Dispatch(ctx context.Context, key string, sub *model.RawSubmission, event *model.VerificationEvent, at time.Time) (bool, error) {
	ep, err := d.ResolveEndpoint(ctx, key)
	if err != nil {
		if apperr.IsNotFound(err) || apperr.IsDisabled(err) {
			d.log.Info("webhook dispatch skipped",
				slog.String("key", key),
				slog.String("reason", err.Error()),
			)
			metrics.WebhookDeliveries.WithLabelValues("skipped").Inc()
		}
		return false, err
	}

	payload := BuildPayload(sub, event, at)
	if err := d.deliver(ctx, ep, payload, CookieHeader(sub)); err != nil {
		return false, err
	}
	return true, nil
}

// deliver performs the one POST to ep. Any transport error or non-2xx
// response becomes a *apperr.DeliveryError carrying status and body.
func (d *Dispatcher) deliver(ctx context.Context, ep *model.WebhookEndpoint, payload map[string]any, cookie string) error {
	ctx, span := d.tracer.StartClientSpan(ctx, "webhook.deliver",
		attribute.String(tracing.AttrWebhookKey, ep.Key),
	)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		d.tracer.RecordError(span, err)
		return &apperr.DeliveryError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.EndpointURL, bytes.NewReader(body))
	if err != nil {
		d.tracer.RecordError(span, err)
		return &apperr.DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		d.log.Warn("webhook delivery failed",
			slog.String("key", ep.Key),
			slog.Any("error", err),
		)
		d.tracer.RecordError(span, err)
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		metrics.WebhookDeliveryDuration.WithLabelValues("failed").Observe(elapsed.Seconds())
		return &apperr.DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		captured, _ := io.ReadAll(io.LimitReader(resp.Body, maxCapturedBody))
		d.log.Warn("webhook endpoint rejected delivery",
			slog.String("key", ep.Key),
			slog.Int("status", resp.StatusCode),
		)
		deliveryErr := &apperr.DeliveryError{StatusCode: resp.StatusCode, Body: string(captured)}
		d.tracer.RecordError(span, deliveryErr)
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		metrics.WebhookDeliveryDuration.WithLabelValues("failed").Observe(elapsed.Seconds())
		return deliveryErr
	}

	d.log.Info("webhook delivered",
		slog.String("key", ep.Key),
		slog.Int("status", resp.StatusCode),
	)
	metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
	metrics.WebhookDeliveryDuration.WithLabelValues("delivered").Observe(elapsed.Seconds())
	return nil
}
