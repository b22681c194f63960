// Package state reduces the ordered log rows of one phase into a
// materialized status snapshot. The reduction is a pure left-fold: replaying
// the same row sequence always yields the same snapshot, which is what keeps
// the poller's in-place cost backfills safe.
package state

// Status is the derived lifecycle position of a phase.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Snapshot is the per-phase view derived from its rows. It is recomputed
// wholesale whenever the row set changes and never persisted.
//
// Cost, Duration and token counters are nil when nothing accumulated, so the
// rendering layer can distinguish "free" from "unknown".
type Snapshot struct {
	Status    Status   `json:"status"`
	Result    any      `json:"result,omitempty"`
	Error     string   `json:"error,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
	Model     string   `json:"model,omitempty"`
	TokensIn  *int64   `json:"tokens_in,omitempty"`
	TokensOut *int64   `json:"tokens_out,omitempty"`
	Images    []string `json:"images,omitempty"`
}
