package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/model"
)

type submitCall struct {
	rawPhone     string
	sourceDomain string
	key          string
	payload      map[string]string
}

type mockIntake struct {
	calls []submitCall
	sub   *model.RawSubmission
	err   error
}

func (m *mockIntake) Submit(ctx context.Context, rawPhone, sourceDomain, key string, payload map[string]string) (*model.RawSubmission, error) {
	m.calls = append(m.calls, submitCall{rawPhone: rawPhone, sourceDomain: sourceDomain, key: key, payload: payload})
	if m.err != nil {
		return nil, m.err
	}
	return m.sub, nil
}

func TestSubmitJSONBody(t *testing.T) {
	mock := &mockIntake{sub: &model.RawSubmission{ID: "sub-1"}}
	h := NewIntakeHandler(mock, slog.Default())

	body := `{"Phone": "8 (999) 123-45-67", "Name": "A", "verification_key": "client-a"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://forms.example.ru")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sub-1", resp["id"])

	require.Len(t, mock.calls, 1)
	call := mock.calls[0]
	assert.Equal(t, "8 (999) 123-45-67", call.rawPhone)
	assert.Equal(t, "forms.example.ru", call.sourceDomain)
	assert.Equal(t, "client-a", call.key)
	assert.Equal(t, "A", call.payload["Name"])
	assert.Equal(t, "8 (999) 123-45-67", call.payload["Phone"], "phone stays in the opaque payload")
}

func TestSubmitFormBody(t *testing.T) {
	mock := &mockIntake{sub: &model.RawSubmission{ID: "sub-2"}}
	h := NewIntakeHandler(mock, slog.Default())

	form := url.Values{}
	form.Set("phone", "+79991234567")
	form.Set("Comment", "evening call")
	form.Set("cookies", "_ym_uid=1")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "https://landing.example.ru/promo")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, mock.calls, 1)
	call := mock.calls[0]
	assert.Equal(t, "+79991234567", call.rawPhone)
	assert.Equal(t, "landing.example.ru", call.sourceDomain)
	assert.Equal(t, "evening call", call.payload["Comment"])
	assert.Equal(t, "_ym_uid=1", call.payload["cookies"])
}

func TestSubmitNumericJSONFieldFlattened(t *testing.T) {
	mock := &mockIntake{sub: &model.RawSubmission{ID: "sub-3"}}
	h := NewIntakeHandler(mock, slog.Default())

	body := `{"phone": "+79991234567", "guests": 4}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, mock.calls, 1)
	assert.Equal(t, "4", mock.calls[0].payload["guests"])
}

func TestSubmitMalformedJSON(t *testing.T) {
	mock := &mockIntake{}
	h := NewIntakeHandler(mock, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mock.calls)
}

func TestSubmitInvalidPhone(t *testing.T) {
	mock := &mockIntake{err: apperr.NewInvalid("phone %q: too short", "123")}
	h := NewIntakeHandler(mock, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", strings.NewReader(`{"phone": "123"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitStoreUnreachable(t *testing.T) {
	mock := &mockIntake{err: apperr.NewConnection(context.DeadlineExceeded)}
	h := NewIntakeHandler(mock, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", strings.NewReader(`{"phone": "+79991234567"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExtractPhoneCaseInsensitive(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]string
		want    string
	}{
		{"lowercase", map[string]string{"phone": "+7111"}, "+7111"},
		{"capitalized", map[string]string{"Phone": "+7222"}, "+7222"},
		{"uppercase", map[string]string{"PHONE": "+7333"}, "+7333"},
		{"odd casing", map[string]string{"pHoNe": "+7444"}, "+7444"},
		{"absent", map[string]string{"name": "A"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractPhone(tt.payload))
		})
	}
}
