package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
)

// SQLiteStore keeps history in a local SQLite file using GORM.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.RefreshRun{}, &domain.AuditLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Name returns "sqlite".
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun inserts a refresh run.
func (s *SQLiteStore) RecordRun(ctx context.Context, run domain.RefreshRun) error {
	return s.db.WithContext(ctx).Create(&run).Error
}

// ListRuns returns refresh runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.RefreshRun, error) {
	var runs []domain.RefreshRun
	q := s.db.WithContext(ctx).Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// WriteAudit inserts an audit entry.
func (s *SQLiteStore) WriteAudit(ctx context.Context, entry domain.AuditLog) error {
	return s.db.WithContext(ctx).Create(&entry).Error
}

// ListAuditLogs returns audit entries newest first, filtered by action when non-empty.
func (s *SQLiteStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	q := s.db.WithContext(ctx).Order("created_at desc")
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
