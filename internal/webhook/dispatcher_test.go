package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/model"
	"github.com/dron-olya7/verigate/pkg/tracing"
)

type fakeResolver struct {
	endpoints map[string]*model.WebhookEndpoint
	err       error
}

func (f *fakeResolver) FindWebhookEndpoint(ctx context.Context, key string) (*model.WebhookEndpoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	ep, ok := f.endpoints[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return ep, nil
}

func newTestDispatcher(store EndpointResolver, timeout time.Duration) *Dispatcher {
	tracer := tracing.NewTracer(tracing.GetTracer("test"))
	return NewDispatcher(store, timeout, tracer, slog.Default())
}

func testSubmission() *model.RawSubmission {
	return &model.RawSubmission{
		ID:    "f2b7f8f0-0000-0000-0000-000000000001",
		Phone: "+79991234567",
		Payload: map[string]string{
			"name":    "Olga",
			"cookies": "_ym_uid=123",
		},
	}
}

func testEvent() *model.VerificationEvent {
	return &model.VerificationEvent{Phone: "+79991234567", Source: model.SourceTelegram}
}

func TestDispatchDeliversEnrichedPayload(t *testing.T) {
	var requests atomic.Int32
	var gotCookie, gotContentType string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		gotCookie = r.Header.Get("Cookie")
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeResolver{endpoints: map[string]*model.WebhookEndpoint{
		"client-a": {Key: "client-a", EndpointURL: srv.URL, Enabled: true},
	}}
	d := newTestDispatcher(store, time.Second)

	at := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	delivered, err := d.Dispatch(context.Background(), "client-a", testSubmission(), testEvent(), at)

	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "_ym_uid=123", gotCookie)
	assert.Equal(t, "Olga", gotBody["name"])
	assert.Equal(t, "+79991234567", gotBody["verification_phone"])
	assert.Equal(t, "telegram", gotBody["verification_source"])
	assert.Equal(t, "2024-05-12T09:30:00Z", gotBody["verification_timestamp"])
	assert.Equal(t, true, gotBody["verified"])
}

func TestDispatchEndpointNotFound(t *testing.T) {
	d := newTestDispatcher(&fakeResolver{endpoints: map[string]*model.WebhookEndpoint{}}, time.Second)

	delivered, err := d.Dispatch(context.Background(), "missing", testSubmission(), testEvent(), time.Now())

	assert.False(t, delivered)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDispatchEndpointDisabled(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	store := &fakeResolver{endpoints: map[string]*model.WebhookEndpoint{
		"client-a": {Key: "client-a", EndpointURL: srv.URL, Enabled: false},
	}}
	d := newTestDispatcher(store, time.Second)

	delivered, err := d.Dispatch(context.Background(), "client-a", testSubmission(), testEvent(), time.Now())

	assert.False(t, delivered)
	assert.True(t, apperr.IsDisabled(err))
	assert.Equal(t, int32(0), requests.Load(), "disabled endpoint must not be contacted")
}

func TestDispatchNon2xxIsDeliveryError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("try later"))
	}))
	defer srv.Close()

	store := &fakeResolver{endpoints: map[string]*model.WebhookEndpoint{
		"client-a": {Key: "client-a", EndpointURL: srv.URL, Enabled: true},
	}}
	d := newTestDispatcher(store, time.Second)

	delivered, err := d.Dispatch(context.Background(), "client-a", testSubmission(), testEvent(), time.Now())

	assert.False(t, delivered)
	de := apperr.AsDelivery(err)
	require.NotNil(t, de)
	assert.Equal(t, http.StatusServiceUnavailable, de.StatusCode)
	assert.Equal(t, "try later", de.Body)
	assert.Equal(t, int32(1), requests.Load(), "exactly one attempt, no retries")
}

func TestDispatchTimeoutIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	store := &fakeResolver{endpoints: map[string]*model.WebhookEndpoint{
		"client-a": {Key: "client-a", EndpointURL: srv.URL, Enabled: true},
	}}
	d := newTestDispatcher(store, 50*time.Millisecond)

	delivered, err := d.Dispatch(context.Background(), "client-a", testSubmission(), testEvent(), time.Now())

	assert.False(t, delivered)
	de := apperr.AsDelivery(err)
	require.NotNil(t, de)
	assert.Zero(t, de.StatusCode)
	assert.Error(t, de.Err)
}

func TestDispatchNoCookieHeaderWhenAbsent(t *testing.T) {
	var hadCookie bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadCookie = r.Header["Cookie"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeResolver{endpoints: map[string]*model.WebhookEndpoint{
		"client-a": {Key: "client-a", EndpointURL: srv.URL, Enabled: true},
	}}
	d := newTestDispatcher(store, time.Second)

	sub := testSubmission()
	delete(sub.Payload, "cookies")

	delivered, err := d.Dispatch(context.Background(), "client-a", sub, testEvent(), time.Now())

	require.NoError(t, err)
	assert.True(t, delivered)
	assert.False(t, hadCookie)
}
