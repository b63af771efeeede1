package constants

// RunStatus is the canonical status for rows in runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusQueued    RunStatus = "QUEUED"    // accepted, waiting for a worker
	RunStatusRunning   RunStatus = "RUNNING"   // text extraction or model calls in progress
	RunStatusCompleted RunStatus = "COMPLETED" // records exported
	RunStatusFailed    RunStatus = "FAILED"    // terminal failure
)

// Terminal reports whether no further transitions happen from s.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}
