package graph

import (
	"context"
	"strings"

	"github.com/vk/phaseboard/internal/ctxlog"
	"github.com/vk/phaseboard/internal/pipeline"
)

// Build constructs the dependency graph for a pipeline definition.
//
// Discovery combines two signals per phase: the author-declared handoff list
// and a textual scan of the phase body for "outputs.<name>" references. Both
// collapse into one deduplicated adjacency set, so a phase that both hands
// off to and references the same target yields exactly one edge.
//
// If layering cannot place every node (a dependency cycle), Build still
// returns the graph of placed nodes together with an *UnplacedError naming
// the leftovers. Callers decide whether that is fatal.
func Build(ctx context.Context, p *pipeline.Pipeline) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.", "phase_count", len(p.Phases))

	known := make(map[string]bool, len(p.Phases))
	for _, ph := range p.Phases {
		known[ph.Name] = true
	}
	inputNames := make(map[string]bool, len(p.Inputs))
	for _, in := range p.Inputs {
		inputNames[in.Name] = true
	}

	// First pass: discover the deduplicated adjacency sets.
	targets := make(map[string][]string, len(p.Phases))
	sources := make(map[string][]string, len(p.Phases))
	inputRefs := make(map[string][]string, len(p.Phases))
	linked := make(map[string]map[string]bool, len(p.Phases))

	link := func(from, to string) {
		if linked[from] == nil {
			linked[from] = make(map[string]bool)
		}
		if linked[from][to] {
			return
		}
		linked[from][to] = true
		targets[from] = append(targets[from], to)
		sources[to] = append(sources[to], from)
	}

	for _, ph := range p.Phases {
		phLogger := logger.With("phase", ph.Name)

		// Explicit handoffs declared by the author.
		for _, to := range ph.Handoff {
			if to == ph.Name {
				phLogger.Warn("Ignoring self-referential handoff.")
				continue
			}
			if !known[to] {
				phLogger.Warn("Ignoring handoff to unknown phase.", "target", to)
				continue
			}
			link(ph.Name, to)
		}

		// Implicit references found by the textual scan. A reference in ph
		// to outputs.X makes ph depend on X, so the edge runs X -> ph.
		refs := scanOutputRefs(ph.RawBody)
		if len(refs) == 0 && len(ph.Handoff) == 0 {
			phLogger.Debug("Dependency scan found nothing for phase.")
		}
		for _, from := range refs {
			if from == ph.Name {
				phLogger.Warn("Ignoring self-referential output reference.")
				continue
			}
			if !known[from] {
				phLogger.Debug("Scan matched unknown phase name, ignoring.", "ref", from)
				continue
			}
			link(from, ph.Name)
		}

		// Input parameter references are annotations, not edges.
		for _, ref := range scanInputRefs(ph.RawBody) {
			if inputNames[ref] {
				inputRefs[ph.Name] = append(inputRefs[ph.Name], ref)
			}
		}
	}

	// Second pass: layering. Unplaced nodes are reported, not dropped on
	// the floor.
	layers, layerOf, unplaced := assignLayers(p, sources)
	if len(unplaced) > 0 {
		logger.Warn("Layering could not place every phase.", "unplaced", strings.Join(unplaced, ", "))
	}

	g := &Graph{
		layers:   layers,
		Unplaced: unplaced,
		byName:   make(map[string]*Node, len(p.Phases)),
	}

	for _, ph := range p.Phases {
		layer, placed := layerOf[ph.Name]
		if !placed {
			continue
		}
		node := &Node{
			Name:              ph.Name,
			Layer:             layer,
			Sources:           sources[ph.Name],
			Targets:           targets[ph.Name],
			InDegree:          len(sources[ph.Name]),
			OutDegree:         len(targets[ph.Name]),
			IsBranch:          len(targets[ph.Name]) > 1,
			IsMerge:           len(sources[ph.Name]) > 1,
			ImplicitInputRefs: inputRefs[ph.Name],
		}
		g.Nodes = append(g.Nodes, node)
		g.byName[ph.Name] = node
	}

	// Third pass: edge classification on the deduplicated set. Priority is
	// data > selective > execution. Edges touching an unplaced phase are
	// omitted so every emitted edge has both endpoints in Nodes.
	for _, ph := range p.Phases {
		if _, placed := layerOf[ph.Name]; !placed {
			continue
		}
		for _, from := range sources[ph.Name] {
			if _, placed := layerOf[from]; !placed {
				continue
			}
			g.Edges = append(g.Edges, &Edge{
				Source:   from,
				Target:   ph.Name,
				Kind:     classifyEdge(p, from, ph),
				IsBranch: len(targets[from]) > 1,
				IsMerge:  len(sources[ph.Name]) > 1,
			})
		}
	}

	logger.Debug("Build: graph construction finished.",
		"node_count", len(g.Nodes), "edge_count", len(g.Edges), "layer_count", len(layers))

	if len(unplaced) > 0 {
		return g, &UnplacedError{Nodes: unplaced}
	}
	return g, nil
}

// classifyEdge decides the context kind for a source -> target edge.
func classifyEdge(p *pipeline.Pipeline, source string, target *pipeline.Phase) ContextKind {
	if containsOutputRef(target.RawBody, source) {
		return KindData
	}
	for _, c := range target.Context {
		if c == source || c == "all" {
			return KindSelective
		}
	}
	return KindExecution
}

// containsOutputRef reports whether raw textually references outputs.<name>.
func containsOutputRef(raw, name string) bool {
	for _, ref := range scanOutputRefs(raw) {
		if ref == name {
			return true
		}
	}
	return false
}
