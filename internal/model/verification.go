package model

import "time"

// Verification event sources, as classified by the request boundary.
const (
	SourceTelegram = "telegram"
	SourceWhatsApp = "whatsapp"
	SourceTilda    = "tilda"
	SourceUnknown  = "unknown"
)

// Result statuses reported back to the boundary.
const (
	StatusSuccess = "success"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// AttemptStatusTimeout marks an attempt that matched a submission outside
// the validity window. Attempts inside the window carry an empty status.
const AttemptStatusTimeout = "timeout"

// VerificationEvent is an inbound verification ping from a messaging-bot
// callback: a normalized phone, an optional key selecting the webhook
// destination, and the classified source.
type VerificationEvent struct {
	Phone  string `json:"phone" validate:"required,e164"`
	Key    string `json:"key,omitempty"`
	Source string `json:"source" validate:"oneof=telegram whatsapp tilda unknown"`
}

// VerificationAttempt is one append-only audit record per inbound
// verification event, written regardless of outcome.
type VerificationAttempt struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	Phone              string    `json:"phone"`
	Source             string    `json:"source"`
	Verified           bool      `json:"verified"`
	FoundInSubmissions bool      `json:"found_in_submissions"`
	Status             string    `json:"status,omitempty"`
}

// VerificationResult is the semantic outcome rendered by the boundary.
// WebhookSent is only present when a dispatch decision was reached.
type VerificationResult struct {
	Status      string `json:"status"`
	Verified    bool   `json:"verified"`
	WebhookSent *bool  `json:"webhook_sent,omitempty"`
}

// VerificationFlags is the single post-dispatch mutation applied to stored
// submissions for a phone.
type VerificationFlags struct {
	Verified        bool
	WebhookSent     bool
	VerificationKey string
}
