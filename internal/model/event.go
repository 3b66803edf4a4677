package model

import "time"

// OutcomeEvent is the message published to Kafka after each verification
// resolution. This shall match the envelope consumed by downstream
// notification consumers.
type OutcomeEvent struct {
	Phone       string    `json:"phone"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	Verified    bool      `json:"verified"`
	WebhookSent bool      `json:"webhook_sent"`
	OccurredAt  time.Time `json:"occurred_at"`
}
