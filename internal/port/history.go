package port

import (
	"context"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
)

// RunRecorder persists refresh outcomes.
type RunRecorder interface {
	RecordRun(ctx context.Context, run domain.RefreshRun) error
	// ListRuns returns the most recent runs first. limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]domain.RefreshRun, error)
}

// AuditWriter persists served requests.
type AuditWriter interface {
	WriteAudit(ctx context.Context, entry domain.AuditLog) error
	// ListAuditLogs returns recent entries first, optionally filtered by action.
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}

// HistoryStore is implemented by every history driver.
type HistoryStore interface {
	RunRecorder
	AuditWriter
	Name() string
	Close() error
}
