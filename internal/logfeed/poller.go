package logfeed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/phaseboard/internal/ctxlog"
)

// Defaults for the poller schedule.
const (
	DefaultInterval = 2 * time.Second
	DefaultLookback = 30 * time.Second
	DefaultGrace    = 10 * time.Second

	maxBackoffShift = 4 // caps backoff at interval << 4
)

// Options tunes a Poller. Zero values take the defaults above.
type Options struct {
	// Interval is the tick period between poll cycles.
	Interval time.Duration
	// Lookback is the trailing window re-requested on every cycle so that
	// cost backfills on already-seen rows are picked up. The source does not
	// push updates; re-scanning is the only way to observe them.
	Lookback time.Duration
	// Grace is how long polling continues after the source reports session
	// completion, to catch trailing backfills.
	Grace time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Lookback <= 0 {
		o.Lookback = DefaultLookback
	}
	if o.Grace <= 0 {
		o.Grace = DefaultGrace
	}
	return o
}

// Poller drives one cursor into a log source and owns the accumulated row
// set for one session at a time. All state transitions happen under one
// mutex; a failed fetch touches nothing but the transient error slot.
type Poller struct {
	src      Source
	opts     Options
	onChange func()

	// inFlight serializes cycles: a tick that fires while the previous
	// fetch is still running is skipped, never overlapped.
	inFlight atomic.Bool

	mu              sync.Mutex
	sessionID       string
	epoch           uint64
	cursor          time.Time
	seen            map[string]*Row
	rows            []*Row
	totalCost       float64
	sessionComplete bool
	completedAt     time.Time
	stopped         bool
	lastErr         error
	failures        int
}

// NewPoller creates a poller over the given source. Call Reset to bind it to
// a session before polling.
func NewPoller(src Source, opts Options) *Poller {
	return &Poller{
		src:  src,
		opts: opts.withDefaults(),
		seen: make(map[string]*Row),
	}
}

// OnChange registers a callback fired after any cycle that changed the
// accumulated row set. It is invoked outside the poller's lock.
func (p *Poller) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Reset atomically rebinds the poller to a session, discarding all
// accumulated state. Results of any fetch still in flight for the previous
// session are thrown away when it lands.
func (p *Poller) Reset(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epoch++
	p.sessionID = sessionID
	p.cursor = time.Time{}
	p.seen = make(map[string]*Row)
	p.rows = nil
	p.totalCost = 0
	p.sessionComplete = false
	p.completedAt = time.Time{}
	p.stopped = false
	p.lastErr = nil
	p.failures = 0
}

// Stop permanently halts the poller. In-flight fetch results are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epoch++
	p.stopped = true
}

// Stopped reports whether the poller has permanently stopped.
func (p *Poller) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// LastError returns the transient error from the most recent failed cycle,
// or nil after a successful one. Accumulated rows stay valid either way.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Cursor returns the last-acknowledged high-water timestamp.
func (p *Poller) Cursor() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// TotalCost returns the running session total reported by the source.
func (p *Poller) TotalCost() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalCost
}

// SessionComplete reports whether the source declared the session finished.
func (p *Poller) SessionComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionComplete
}

// Rows returns a copy of the accumulated rows in append order. Rows are
// cloned so callers hold an immutable snapshot even across backfill patches.
func (p *Poller) Rows() []*Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Row, len(p.rows))
	for i, row := range p.rows {
		out[i] = row.Clone()
	}
	return out
}

// RowsByNode returns the accumulated rows grouped by node name, preserving
// append order within each group.
func (p *Poller) RowsByNode() map[string][]*Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]*Row)
	for _, row := range p.rows {
		out[row.NodeName] = append(out[row.NodeName], row.Clone())
	}
	return out
}

// Poll runs one cycle: fetch rows after the effective cursor, fold them into
// the accumulator, advance the cursor. A failed fetch leaves all state
// untouched apart from the transient error slot and is retried by the next
// tick. Overlapping calls are skipped.
func (p *Poller) Poll(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer p.inFlight.Store(false)

	p.mu.Lock()
	if p.stopped || p.sessionID == "" {
		p.mu.Unlock()
		return nil
	}
	epoch := p.epoch
	sessionID := p.sessionID
	cursor := p.cursor
	p.mu.Unlock()

	// effective cursor = min(cursor, now - lookback): the trailing window is
	// re-requested so cost backfills on already-seen rows are observed.
	effective := cursor
	if floor := time.Now().Add(-p.opts.Lookback); floor.Before(effective) {
		effective = floor
	}

	result, err := p.src.Fetch(ctx, sessionID, effective)

	p.mu.Lock()
	if p.epoch != epoch || p.stopped {
		// The session changed (or the poller stopped) while the fetch was in
		// flight; its result belongs to the old world.
		p.mu.Unlock()
		return nil
	}
	if err != nil {
		p.lastErr = err
		p.failures++
		p.mu.Unlock()
		return err
	}

	changed := p.ingestLocked(ctx, result)
	p.lastErr = nil
	p.failures = 0

	onChange := p.onChange
	p.mu.Unlock()

	if changed && onChange != nil {
		onChange()
	}
	return nil
}

// ingestLocked folds one fetch result into the accumulator. Caller holds mu.
func (p *Poller) ingestLocked(ctx context.Context, result *FetchResult) bool {
	logger := ctxlog.FromContext(ctx)
	changed := false
	maxSeen := p.cursor

	for _, row := range result.Rows {
		if row == nil {
			continue
		}
		row.Normalize()
		if err := row.Validate(); err != nil {
			logger.Debug("Dropping invalid row at source boundary.", "error", err)
			continue
		}
		if row.Timestamp.After(maxSeen) {
			maxSeen = row.Timestamp
		}
		if existing, ok := p.seen[row.MessageID]; ok {
			// Backfill exception: cost may be revised from zero to a real
			// value after the fact. Patch in place, never duplicate.
			if existing.Cost == 0 && row.Cost > 0 {
				existing.Cost = row.Cost
				changed = true
			}
			continue
		}
		p.seen[row.MessageID] = row
		p.rows = append(p.rows, row)
		changed = true
	}

	// The cursor advances to the maximum timestamp actually returned, never
	// to the effective cursor, and never backward.
	if result.Cursor.After(maxSeen) {
		maxSeen = result.Cursor
	}
	if maxSeen.After(p.cursor) {
		p.cursor = maxSeen
	}

	if result.TotalCost != p.totalCost {
		p.totalCost = result.TotalCost
		changed = true
	}

	if result.SessionComplete && !p.sessionComplete {
		p.sessionComplete = true
		p.completedAt = time.Now()
		changed = true
	}
	if p.sessionComplete && time.Since(p.completedAt) >= p.opts.Grace {
		p.stopped = true
	}

	return changed
}

// Run polls on a schedule until the context is cancelled or the poller stops
// permanently. Consecutive failures back off exponentially, capped, and
// reset on the first success.
func (p *Poller) Run(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	timer := time.NewTimer(p.opts.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := p.Poll(ctx); err != nil {
			logger.Warn("Poll cycle failed, will retry.", "error", err)
		}
		if p.Stopped() {
			logger.Debug("Poller stopped permanently.")
			return
		}
		timer.Reset(p.nextDelay())
	}
}

// nextDelay computes the wait before the next cycle.
func (p *Poller) nextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	shift := p.failures
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return p.opts.Interval << shift
}
