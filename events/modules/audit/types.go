// Package audit handles Kafka event production for audit log entries.
package audit

import (
	"time"

	"github.com/ebuddy/user-admin-backend/model"
)

// EventTypeRecorded is the event type of every published audit entry.
const EventTypeRecorded = "user.audit.recorded"

// RecordedEvent is the event contract for an audit entry
type RecordedEvent struct {
	EventType     string           `json:"event_type"`
	EventID       string           `json:"event_id"`
	EventTime     time.Time        `json:"event_time"`
	SchemaVersion string           `json:"schema_version"`
	Entry         model.AuditEntry `json:"entry"`
}
