package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dron-olya7/verigate/internal/model"
)

func TestBuildPayloadMergesAndEnriches(t *testing.T) {
	sub := &model.RawSubmission{
		Phone: "+79991234567",
		Payload: map[string]string{
			"name":    "Olga",
			"comment": "call after 18:00",
			"cookies": "_ym_uid=123",
		},
	}
	event := &model.VerificationEvent{Phone: "+79991234567", Source: model.SourceTelegram}
	at := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)

	payload := BuildPayload(sub, event, at)

	assert.Equal(t, "Olga", payload["name"])
	assert.Equal(t, "call after 18:00", payload["comment"])
	assert.Equal(t, "_ym_uid=123", payload["cookies"])
	assert.Equal(t, "+79991234567", payload["verification_phone"])
	assert.Equal(t, model.SourceTelegram, payload["verification_source"])
	assert.Equal(t, "2024-05-12T09:30:00Z", payload["verification_timestamp"])
	assert.Equal(t, true, payload["verified"])
}

func TestBuildPayloadReservedFieldsWin(t *testing.T) {
	sub := &model.RawSubmission{
		Phone: "+79991234567",
		Payload: map[string]string{
			"verified":           "no",
			"verification_phone": "+70000000000",
		},
	}
	event := &model.VerificationEvent{Phone: "+79991234567", Source: model.SourceWhatsApp}

	payload := BuildPayload(sub, event, time.Now())

	assert.Equal(t, true, payload["verified"])
	assert.Equal(t, "+79991234567", payload["verification_phone"])
}

func TestBuildPayloadLeavesSubmissionUntouched(t *testing.T) {
	sub := &model.RawSubmission{
		Phone:   "+79991234567",
		Payload: map[string]string{"name": "Olga"},
	}
	event := &model.VerificationEvent{Phone: "+79991234567", Source: model.SourceTilda}

	BuildPayload(sub, event, time.Now())

	assert.Equal(t, map[string]string{"name": "Olga"}, sub.Payload)
}

func TestBuildPayloadTimestampIsUTC(t *testing.T) {
	sub := &model.RawSubmission{Phone: "+79991234567", Payload: map[string]string{}}
	event := &model.VerificationEvent{Phone: "+79991234567", Source: model.SourceTelegram}
	msk := time.FixedZone("MSK", 3*60*60)
	at := time.Date(2024, 5, 12, 12, 30, 0, 0, msk)

	payload := BuildPayload(sub, event, at)

	assert.Equal(t, "2024-05-12T09:30:00Z", payload["verification_timestamp"])
}

func TestCookieHeader(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]string
		want    string
	}{
		{
			name:    "lowercase field",
			payload: map[string]string{"cookies": "_ym_uid=123"},
			want:    "_ym_uid=123",
		},
		{
			name:    "uppercase fallback",
			payload: map[string]string{"COOKIES": "_ga=GA1.2"},
			want:    "_ga=GA1.2",
		},
		{
			name:    "lowercase wins over uppercase",
			payload: map[string]string{"cookies": "low", "COOKIES": "up"},
			want:    "low",
		},
		{
			name:    "empty lowercase falls back",
			payload: map[string]string{"cookies": "", "COOKIES": "up"},
			want:    "up",
		},
		{
			name:    "no cookie field",
			payload: map[string]string{"name": "Olga"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &model.RawSubmission{Payload: tt.payload}
			assert.Equal(t, tt.want, CookieHeader(sub))
		})
	}
}
