package store

import (
	"context"
	"sync"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
)

// DefaultMemoryLimit is used when the memory driver gets no positive limit.
const DefaultMemoryLimit = 100

// MemoryStore keeps the most recent records in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	limit int
	runs  []domain.RefreshRun
	audit []domain.AuditLog
}

// NewMemoryStore creates a store keeping at most limit records of each kind.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryStore{limit: limit}
}

// Name returns "memory".
func (s *MemoryStore) Name() string { return "memory" }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// RecordRun appends a run, evicting the oldest one when full.
func (s *MemoryStore) RecordRun(_ context.Context, run domain.RefreshRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = appendBounded(s.runs, run, s.limit)
	return nil
}

// ListRuns returns runs newest first.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]domain.RefreshRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.runs, limit, func(domain.RefreshRun) bool { return true }), nil
}

// WriteAudit appends an audit entry, evicting the oldest one when full.
func (s *MemoryStore) WriteAudit(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = appendBounded(s.audit, entry, s.limit)
	return nil
}

// ListAuditLogs returns entries newest first, filtered by action when non-empty.
func (s *MemoryStore) ListAuditLogs(_ context.Context, limit int, action string) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.audit, limit, func(e domain.AuditLog) bool {
		return action == "" || e.Action == action
	}), nil
}

func appendBounded[T any](items []T, item T, limit int) []T {
	if len(items) >= limit {
		items = append(items[:0:0], items[len(items)-limit+1:]...)
	}
	return append(items, item)
}

func newestFirst[T any](items []T, limit int, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if !keep(items[i]) {
			continue
		}
		out = append(out, items[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
