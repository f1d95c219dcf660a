package model

// AuditAction names an audited operation.
type AuditAction string

// Audited actions.
const (
	ActionAddUser       AuditAction = "ADD_USER"
	ActionUpdateUser    AuditAction = "UPDATE_USER_DATA"
	ActionDeleteUser    AuditAction = "DELETE_USER"
	ActionFetchUser     AuditAction = "FETCH_USER_DATA"
	ActionFetchAllUsers AuditAction = "FETCH_ALL_USERS"
	ActionInitStore     AuditAction = "INIT_STORE"
	ActionSeedUser      AuditAction = "SEED_USER"
)

// SystemActor is the audit subject for actions that are not about a single user.
const SystemActor = "system"

// AuditEntry is an append-only audit log record.
type AuditEntry struct {
	UserID    string                 `json:"userId"`
	Action    AuditAction            `json:"action"`
	Details   map[string]interface{} `json:"details"`
	Timestamp int64                  `json:"timestamp"` // epoch milliseconds
}

// Fields returns the entry as a flat field map suitable for a document store.
func (e AuditEntry) Fields() map[string]interface{} {
	details := e.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return map[string]interface{}{
		"userId":    e.UserID,
		"action":    string(e.Action),
		"details":   details,
		"timestamp": e.Timestamp,
	}
}
