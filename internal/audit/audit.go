package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"neo-guardian/internal/observability"
)

// Event is the structured tuple recorded for every security-relevant action.
type Event struct {
	Action       string
	Status       string
	UserID       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
	Detail       string
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type contextKey struct{}

type requestInfo struct {
	ip        string
	userAgent string
}

// ContextWithRequest stashes the caller's network identity so recorders can
// stamp it on events without threading it through every service call.
func ContextWithRequest(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestInfo{ip: ip, userAgent: userAgent})
}

func requestFromContext(ctx context.Context) (string, string) {
	info, ok := ctx.Value(contextKey{}).(requestInfo)
	if !ok {
		return "", ""
	}
	return info.ip, info.userAgent
}

// Recorder persists audit events. Recording must never fail the operation
// being audited.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// SQLRecorder writes events to the audit_logs table. Write failures are
// logged and dropped rather than propagated.
type SQLRecorder struct {
	db     *sql.DB
	logger *observability.Logger
}

func NewSQLRecorder(db *sql.DB, logger *observability.Logger) *SQLRecorder {
	return &SQLRecorder{db: db, logger: logger}
}

func (r *SQLRecorder) Record(ctx context.Context, event Event) {
	id, err := uuid.NewV7()
	if err != nil {
		r.logger.Error("audit_id_failed", map[string]any{"error": err.Error()})
		return
	}

	if event.IPAddress == "" && event.UserAgent == "" {
		event.IPAddress, event.UserAgent = requestFromContext(ctx)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, ip_address, user_agent, details, status, created_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)
	`, id.String(), event.UserID, event.Action, event.ResourceType, event.ResourceID,
		event.IPAddress, truncate(event.UserAgent, 500), event.Detail, event.Status, time.Now().UTC())
	if err != nil {
		r.logger.Error("audit_write_failed", map[string]any{
			"action": event.Action,
			"error":  fmt.Sprintf("%v", err),
		})
	}
}

// LogRecorder emits events to the structured logger only. Used in tests and
// when no database is wired.
type LogRecorder struct {
	logger *observability.Logger
}

func NewLogRecorder(logger *observability.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, event Event) {
	r.logger.Info("audit_event", map[string]any{
		"action":  event.Action,
		"status":  event.Status,
		"user_id": event.UserID,
		"detail":  event.Detail,
	})
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
