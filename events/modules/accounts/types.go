// Package accounts publishes account lifecycle events to Kafka.
package accounts

import "time"

// Event types published on the account topic
const (
	EventSignedUp      = "account.signed_up"
	EventVerified      = "account.verified"
	EventPasswordReset = "account.password_reset"
	EventRoleChanged   = "account.role_changed"
	EventDeleted       = "account.deleted"
)

// AccountEvent is the message contract for the account topic.
type AccountEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}
