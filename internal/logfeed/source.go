package logfeed

import (
	"context"
	"time"
)

// FetchResult is one page of rows from a log source.
type FetchResult struct {
	Rows []*Row `json:"rows"`
	// Cursor is the source's high-water timestamp for this fetch.
	Cursor time.Time `json:"cursor"`
	// SessionComplete is set once the source knows the session finished.
	SessionComplete bool `json:"session_complete"`
	// TotalCost is the running session total as reported by the source. It
	// is authoritative; the poller never recomputes it locally.
	TotalCost float64 `json:"total_cost"`
}

// Source is the log backend contract. Any transport that can answer "all
// rows for this session after this timestamp" satisfies it: HTTP polling, a
// subscription push, a file tail.
type Source interface {
	Fetch(ctx context.Context, sessionID string, after time.Time) (*FetchResult, error)
}
