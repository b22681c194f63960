// Package monitor ties the dependency graph to the live log feed: it owns a
// poller, recomputes per-phase snapshots whenever the accumulated row set
// changes, and exposes the merged view the rendering layer consumes.
package monitor

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/phaseboard/internal/graph"
	"github.com/vk/phaseboard/internal/logfeed"
	"github.com/vk/phaseboard/internal/state"
)

// Monitor observes one execution session at a time against a fixed pipeline
// graph. Snapshots are immutable values recomputed wholesale on each change,
// so readers never see a half-updated phase.
type Monitor struct {
	// ID identifies this monitor instance, not the watched session.
	ID string

	graph  *graph.Graph
	layout *graph.Layout
	poller *logfeed.Poller

	mu        sync.RWMutex
	sessionID string
	snapshots map[string]state.Snapshot
}

// New creates a monitor over the given graph and log source.
func New(g *graph.Graph, layout *graph.Layout, src logfeed.Source, opts logfeed.Options) *Monitor {
	m := &Monitor{
		ID:        uuid.NewString(),
		graph:     g,
		layout:    layout,
		poller:    logfeed.NewPoller(src, opts),
		snapshots: make(map[string]state.Snapshot),
	}
	m.poller.OnChange(m.refresh)
	return m
}

// Watch switches the monitor to a new session. All poller state and derived
// snapshots are reset atomically before the next cycle can start, so rows
// from two sessions never mix.
func (m *Monitor) Watch(sessionID string) {
	m.mu.Lock()
	m.sessionID = sessionID
	m.snapshots = make(map[string]state.Snapshot)
	m.mu.Unlock()
	m.poller.Reset(sessionID)
}

// Run drives the poll loop until the context is cancelled or the session
// completes and its grace period expires.
func (m *Monitor) Run(ctx context.Context) {
	m.poller.Run(ctx)
}

// refresh recomputes every phase snapshot from the current row set.
func (m *Monitor) refresh() {
	byNode := m.poller.RowsByNode()
	snapshots := make(map[string]state.Snapshot, len(byNode))
	for name, rows := range byNode {
		snapshots[name] = state.Reduce(rows)
	}
	m.mu.Lock()
	m.snapshots = snapshots
	m.mu.Unlock()
}

// Snapshot returns the current snapshot for one phase. Phases with no rows
// yet report a pending snapshot.
func (m *Monitor) Snapshot(name string) state.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if snap, ok := m.snapshots[name]; ok {
		return snap
	}
	return state.Snapshot{Status: state.StatusPending}
}

// NodeView is one graph node merged with its live snapshot.
type NodeView struct {
	*graph.Node
	State state.Snapshot `json:"state"`
}

// View is the merged, JSON-ready structure served to the rendering layer.
type View struct {
	MonitorID       string                 `json:"monitor_id"`
	SessionID       string                 `json:"session_id"`
	Nodes           []NodeView             `json:"nodes"`
	Edges           []*graph.Edge          `json:"edges"`
	Unplaced        []string               `json:"unplaced,omitempty"`
	CanvasWidth     float64                `json:"canvas_width"`
	CanvasHeight    float64                `json:"canvas_height"`
	InputParams     map[string]graph.Point `json:"input_param_positions,omitempty"`
	TotalCost       float64                `json:"total_cost"`
	SessionComplete bool                   `json:"session_complete"`
	// Error carries the poller's transient fetch error, if any. It is
	// dismissible: accumulated rows stay valid underneath it.
	Error string `json:"error,omitempty"`
}

// View assembles the current merged view.
func (m *Monitor) View() *View {
	m.mu.RLock()
	sessionID := m.sessionID
	snapshots := m.snapshots
	m.mu.RUnlock()

	v := &View{
		MonitorID:       m.ID,
		SessionID:       sessionID,
		Edges:           m.graph.Edges,
		Unplaced:        m.graph.Unplaced,
		CanvasWidth:     m.layout.CanvasWidth,
		CanvasHeight:    m.layout.CanvasHeight,
		InputParams:     m.layout.InputParams,
		TotalCost:       m.poller.TotalCost(),
		SessionComplete: m.poller.SessionComplete(),
	}
	if err := m.poller.LastError(); err != nil {
		v.Error = err.Error()
	}
	for _, node := range m.graph.Nodes {
		snap, ok := snapshots[node.Name]
		if !ok {
			snap = state.Snapshot{Status: state.StatusPending}
		}
		v.Nodes = append(v.Nodes, NodeView{Node: node, State: snap})
	}
	return v
}
