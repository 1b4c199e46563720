package domain

import "time"

// Phase is the lifecycle position of the exported snapshot.
type Phase string

// Phase constants.
const (
	PhaseLoading Phase = "loading" // no refresh has completed yet
	PhaseReady   Phase = "ready"   // last refresh succeeded
	PhaseFailed  Phase = "failed"  // last refresh failed, Snapshot is the previous good one
)

// State is a point-in-time copy of what the tokens actor holds.
type State struct {
	Phase         Phase     `json:"phase"`
	Snapshot      string    `json:"-"`
	SnapshotBytes int       `json:"snapshot_bytes"`
	LastError     string    `json:"last_error,omitempty"`
	Refreshing    bool      `json:"refreshing"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitzero"`
}

// Stale reports whether the last refresh failed, in which case Snapshot is
// the output of an earlier successful refresh.
func (s State) Stale() bool {
	return s.Phase == PhaseFailed
}
