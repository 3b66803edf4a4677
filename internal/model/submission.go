package model

import "time"

// RawSubmission is the persisted original form payload plus metadata,
// awaiting or having undergone verification. Payload is opaque: whatever
// string fields the page builder posted, including the captured cookie
// string when the form carries one.
type RawSubmission struct {
	ID              string            `json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	Phone           string            `json:"phone" validate:"required,e164"`
	SourceDomain    string            `json:"source_domain"`
	Payload         map[string]string `json:"payload"`
	VerificationKey string            `json:"verification_key,omitempty"`
	PhoneVerified   bool              `json:"phone_verified"`
	WebhookSent     bool              `json:"webhook_sent"`
}

// WebhookEndpoint maps a verification key to a client-configured destination.
// Read-only for the verification flow; managed through the admin surface.
type WebhookEndpoint struct {
	Key         string    `json:"key" validate:"required"`
	EndpointURL string    `json:"endpoint_url" validate:"required,url"`
	Enabled     bool      `json:"enabled"`
	UpdatedAt   time.Time `json:"updated_at"`
}
