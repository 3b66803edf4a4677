package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/model"
)

type mockAdmin struct {
	upserted  []model.WebhookEndpoint
	endpoint  *model.WebhookEndpoint
	attempts  []model.VerificationAttempt
	err       error
	lastPhone string
	lastLimit int
}

func (m *mockAdmin) UpsertEndpoint(ctx context.Context, ep model.WebhookEndpoint) (*model.WebhookEndpoint, error) {
	m.upserted = append(m.upserted, ep)
	if m.err != nil {
		return nil, m.err
	}
	return &ep, nil
}

func (m *mockAdmin) GetEndpoint(ctx context.Context, key string) (*model.WebhookEndpoint, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.endpoint, nil
}

func (m *mockAdmin) ListAttempts(ctx context.Context, rawPhone string, limit int) ([]model.VerificationAttempt, error) {
	m.lastPhone = rawPhone
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.attempts, nil
}

// routeWithKey dispatches through chi so URL params resolve.
func routeWithKey(h http.HandlerFunc, method, pattern string, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUpsertEndpointHandler(t *testing.T) {
	mock := &mockAdmin{}
	h := NewEndpointHandler(mock, slog.Default())

	body := `{"endpoint_url": "https://crm.example.ru/hook", "enabled": true}`
	req := httptest.NewRequest(http.MethodPut, "/endpoints/client-a", strings.NewReader(body))
	rec := routeWithKey(h.Upsert, http.MethodPut, "/endpoints/{key}", req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mock.upserted, 1)
	assert.Equal(t, "client-a", mock.upserted[0].Key)
	assert.Equal(t, "https://crm.example.ru/hook", mock.upserted[0].EndpointURL)
	assert.True(t, mock.upserted[0].Enabled)
}

func TestUpsertEndpointRejected(t *testing.T) {
	mock := &mockAdmin{err: apperr.NewInvalid("endpoint: bad url")}
	h := NewEndpointHandler(mock, slog.Default())

	req := httptest.NewRequest(http.MethodPut, "/endpoints/client-a", strings.NewReader(`{"endpoint_url": "nope"}`))
	rec := routeWithKey(h.Upsert, http.MethodPut, "/endpoints/{key}", req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEndpointNotFoundIs404(t *testing.T) {
	mock := &mockAdmin{err: apperr.ErrNotFound}
	h := NewEndpointHandler(mock, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/endpoints/missing", nil)
	rec := routeWithKey(h.Get, http.MethodGet, "/endpoints/{key}", req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAttemptsHandler(t *testing.T) {
	mock := &mockAdmin{attempts: []model.VerificationAttempt{{ID: "a-1", Phone: "+79991234567"}}}
	h := NewEndpointHandler(mock, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/attempts?phone=%2B79991234567&limit=5", nil)
	rec := httptest.NewRecorder()
	h.ListAttempts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+79991234567", mock.lastPhone)
	assert.Equal(t, 5, mock.lastLimit)

	var resp []model.VerificationAttempt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "a-1", resp[0].ID)
}

func TestListAttemptsEmptyIsArray(t *testing.T) {
	mock := &mockAdmin{}
	h := NewEndpointHandler(mock, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/attempts?phone=%2B79991234567", nil)
	rec := httptest.NewRecorder()
	h.ListAttempts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
