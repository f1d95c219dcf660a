// Package services holds the user orchestration, login and audit logic that
// sits between the HTTP handlers and the identity and record store gateways.
package services

import (
	"context"
	"time"

	"github.com/ebuddy/user-admin-backend/database"
	"github.com/ebuddy/user-admin-backend/internal/identity"
	"github.com/ebuddy/user-admin-backend/model"
	"github.com/ebuddy/user-admin-backend/util"
	"go.uber.org/zap"
)

// Auditor records audit entries. Implementations never fail the caller.
type Auditor interface {
	Record(ctx context.Context, userID string, action model.AuditAction, details map[string]interface{})
}

// AuditPublisher forwards audit entries to an event stream.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, entry model.AuditEntry) error
}

// DefaultPublishTimeout bounds how long a request waits on the event stream.
const DefaultPublishTimeout = 500 * time.Millisecond

// AuditRecorder appends entries to AUDIT_LOGS and optionally publishes them.
type AuditRecorder struct {
	store          database.RecordStore
	publisher      AuditPublisher
	publishTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewAuditRecorder returns a recorder. publisher may be nil.
func NewAuditRecorder(store database.RecordStore, publisher AuditPublisher, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{
		store:          store,
		publisher:      publisher,
		publishTimeout: DefaultPublishTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// Record writes one entry. Failures are logged and dropped.
func (r *AuditRecorder) Record(ctx context.Context, userID string, action model.AuditAction, details map[string]interface{}) {
	ctx = context.WithoutCancel(ctx)

	entry := model.AuditEntry{
		UserID:    userID,
		Action:    action,
		Details:   withActor(ctx, details),
		Timestamp: util.EpochMillis(r.now()),
	}

	if _, err := r.store.Add(ctx, database.AuditLogsCollection, entry.Fields()); err != nil {
		swallow(r.logger, "audit.append", err, zap.String("action", string(action)), zap.String("userId", userID))
	}

	if r.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()
	if err := r.publisher.PublishAudit(pubCtx, entry); err != nil {
		swallow(r.logger, "audit.publish", err, zap.String("action", string(action)), zap.String("userId", userID))
	}
}

func withActor(ctx context.Context, details map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	if p, ok := identity.PrincipalFrom(ctx); ok {
		out["actor"] = p.UID
	}
	return out
}
