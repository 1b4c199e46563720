package domain

import "time"

// AuditLog records one request served by the exporter.
type AuditLog struct {
	ID         string    `json:"id"          db:"id"          gorm:"primaryKey"`
	Action     string    `json:"action"      db:"action"      gorm:"index"`
	Path       string    `json:"path"        db:"path"`
	Method     string    `json:"method"      db:"method"`
	Status     int       `json:"status"      db:"status"`
	Subject    string    `json:"subject"     db:"subject"`
	IP         string    `json:"ip"          db:"ip"`
	UserAgent  string    `json:"user_agent"  db:"user_agent"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"  gorm:"index"`
}

// Audit action constants.
const (
	AuditActionScrape  = "scrape"
	AuditActionStatus  = "status"
	AuditActionRefresh = "refresh"
	AuditActionRequest = "http_request"
)
