// Package queue defines the audit event payload exchanged over RabbitMQ and
// the consumer that persists it.
package queue

// Event types.
const (
	UserRegistered  = "user.registered"
	SessionOpened   = "session.opened"
	SessionClosed   = "session.closed"
	ResourceCreated = "resource.created"
	ResourceUpdated = "resource.updated"
	ResourceDeleted = "resource.deleted"
)

// DefaultQueue is the durable queue audit events are routed to.
const DefaultQueue = "audit.events"

// AuditEvent describes one state change worth keeping outside the API
// database.  Fields that do not apply to an event type are left empty.
type AuditEvent struct {
	Type       string `json:"type"`
	Resource   string `json:"resource,omitempty"`
	RecordID   int64  `json:"record_id,omitempty"`
	UserID     uint64 `json:"user_id,omitempty"`
	UserName   string `json:"user_name,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	IP         string `json:"ip,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	OccurredAt string `json:"occurred_at"` // RFC 3339, UTC
}
