package domain

import "time"

// RefreshRun records the outcome of one refresh attempt.
type RefreshRun struct {
	ID         string    `json:"id"          db:"id"          gorm:"primaryKey"`
	Trigger    string    `json:"trigger"     db:"trigger_source" gorm:"column:trigger_source"`
	Status     string    `json:"status"      db:"status"`
	Projects   int       `json:"projects"    db:"projects"`
	Tokens     int       `json:"tokens"      db:"tokens"`
	Skipped    int       `json:"skipped_fragments" db:"skipped"`
	Bytes      int       `json:"bytes"       db:"bytes"`
	Error      string    `json:"error,omitempty" db:"error"`
	StartedAt  time.Time `json:"started_at"  db:"started_at"  gorm:"index"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
}

// Refresh trigger constants.
const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

// Refresh status constants.
const (
	RefreshStatusSuccess = "success"
	RefreshStatusError   = "error"
	RefreshStatusSkipped = "skipped"
)

// Duration returns how long the run took.
func (r RefreshRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
