package webhook

import (
	"time"

	"github.com/dron-olya7/verigate/internal/model"
)

// Reserved enrichment fields. They always win over same-named fields in the
// stored form payload.
const (
	fieldVerificationPhone     = "verification_phone"
	fieldVerificationSource    = "verification_source"
	fieldVerificationTimestamp = "verification_timestamp"
	fieldVerified              = "verified"
)

// Cookie fields captured by page builders. Lowercase is checked first.
const (
	cookieField      = "cookies"
	cookieFieldUpper = "COOKIES"
)

// BuildPayload shallow-merges the stored form payload with the verification
// enrichment fields. The submission itself is never mutated.
func BuildPayload(sub *model.RawSubmission, event *model.VerificationEvent, at time.Time) map[string]any {
	payload := make(map[string]any, len(sub.Payload)+4)
	for k, v := range sub.Payload {
		payload[k] = v
	}

	payload[fieldVerificationPhone] = event.Phone
	payload[fieldVerificationSource] = event.Source
	payload[fieldVerificationTimestamp] = at.UTC().Format(time.RFC3339)
	payload[fieldVerified] = true

	return payload
}

// CookieHeader returns the captured cookie string to forward with the
// delivery, or "" when the submission carried none.
func CookieHeader(sub *model.RawSubmission) string {
	if v, ok := sub.Payload[cookieField]; ok && v != "" {
		return v
	}
	return sub.Payload[cookieFieldUpper]
}
