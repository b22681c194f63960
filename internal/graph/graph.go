// Package graph builds the phase dependency graph for a pipeline definition:
// edge discovery, degree computation, topological layering and a 2D layout.
// Everything in this package is a pure computation over an immutable input;
// building the same pipeline always yields the same graph.
package graph

// ContextKind classifies why an edge exists. It is computed, never declared.
type ContextKind string

const (
	// KindData marks an edge whose target textually references the source's
	// output.
	KindData ContextKind = "data"
	// KindSelective marks an edge whose target names the source (or "all")
	// in its selective-context list.
	KindSelective ContextKind = "selective"
	// KindExecution marks an ordering-only edge, such as an explicit handoff
	// with no data reference.
	KindExecution ContextKind = "execution"
)

// Node is one pipeline phase with its graph-derived fields.
type Node struct {
	Name string `json:"name"`
	// Layer is the topological column assigned during layering.
	Layer int `json:"layer"`
	// X and Y are filled in by Arrange.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Sources and Targets are the deduplicated adjacency sets, in
	// declaration order.
	Sources []string `json:"sources,omitempty"`
	Targets []string `json:"targets,omitempty"`

	InDegree  int  `json:"in_degree"`
	OutDegree int  `json:"out_degree"`
	IsBranch  bool `json:"is_branch"`
	IsMerge   bool `json:"is_merge"`

	// ImplicitInputRefs names the pipeline input parameters referenced by
	// this phase's body.
	ImplicitInputRefs []string `json:"implicit_input_refs,omitempty"`
}

// Edge is a directed dependency from Source to Target.
type Edge struct {
	Source string      `json:"source"`
	Target string      `json:"target"`
	Kind   ContextKind `json:"context_kind"`
	// IsBranch and IsMerge are rendering hints derived from the endpoint
	// degrees, not structural invariants.
	IsBranch bool `json:"is_branch"`
	IsMerge  bool `json:"is_merge"`
}

// Graph is the result of Build. Nodes holds only the phases that layering
// could place; any leftovers (a cycle, or nodes downstream of one) are listed
// in Unplaced and reported through an UnplacedError.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`

	// layers groups placed node names by layer index.
	layers [][]string

	Unplaced []string `json:"unplaced,omitempty"`

	byName map[string]*Node
}

// Node returns the placed node with the given name, if any.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// LayerNames returns the placed node names grouped by layer index.
func (g *Graph) LayerNames() [][]string {
	return g.layers
}
