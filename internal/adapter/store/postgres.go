package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS refresh_runs (
	id             TEXT PRIMARY KEY,
	trigger_source TEXT NOT NULL,
	status         TEXT NOT NULL,
	projects       INTEGER NOT NULL DEFAULT 0,
	tokens         INTEGER NOT NULL DEFAULT 0,
	skipped        INTEGER NOT NULL DEFAULT 0,
	bytes          INTEGER NOT NULL DEFAULT 0,
	error          TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS refresh_runs_started_at_idx ON refresh_runs (started_at DESC);
CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	path        TEXT NOT NULL,
	method      TEXT NOT NULL,
	status      INTEGER NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	ip          TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_logs_created_at_idx ON audit_logs (created_at DESC);`

// PostgresStore keeps history in PostgreSQL through database/sql and lib/pq.
// The driver is registered by the blank import in cmd/server.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, pings it and creates missing tables.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres: DATABASE_URL is empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Name returns "postgres".
func (s *PostgresStore) Name() string { return "postgres" }

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- Refresh runs ---

// RecordRun inserts a refresh run.
func (s *PostgresStore) RecordRun(ctx context.Context, r domain.RefreshRun) error {
	query := `INSERT INTO refresh_runs (id, trigger_source, status, projects, tokens, skipped, bytes, error, started_at, finished_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Trigger, r.Status, r.Projects, r.Tokens, r.Skipped, r.Bytes, r.Error, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns refresh runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]domain.RefreshRun, error) {
	query := `SELECT id, trigger_source, status, projects, tokens, skipped, bytes, error, started_at, finished_at
	          FROM refresh_runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RefreshRun
	for rows.Next() {
		var r domain.RefreshRun
		if err := rows.Scan(
			&r.ID, &r.Trigger, &r.Status, &r.Projects, &r.Tokens, &r.Skipped,
			&r.Bytes, &r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Audit Logs ---

// WriteAudit implements port.AuditWriter.
func (s *PostgresStore) WriteAudit(ctx context.Context, e domain.AuditLog) error {
	query := `INSERT INTO audit_logs (id, action, path, method, status, subject, ip, user_agent, duration_ms, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Action, e.Path, e.Method, e.Status, e.Subject, e.IP, e.UserAgent, e.DurationMS, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// ListAuditLogs returns recent audit logs with optional filters.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, action, path, method, status, subject, ip, user_agent, duration_ms, created_at
	          FROM audit_logs`
	args := []interface{}{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.Action, &l.Path, &l.Method, &l.Status, &l.Subject,
			&l.IP, &l.UserAgent, &l.DurationMS, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
