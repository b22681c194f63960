// Package pipeline defines the format-agnostic model for a phase pipeline
// definition and the HCL loader that produces it.
package pipeline

// Phase is a single step of a pipeline definition. The graph builder treats
// RawBody as opaque text; it is scanned for references, never parsed.
type Phase struct {
	// Name is the unique identifier of the phase, stable across the graph
	// and the execution log.
	Name string
	// Instructions is the prompt text handed to the executing backend.
	Instructions string
	// Model is the model override for this phase, if any.
	Model string
	// Tools lists the tool names available to the phase.
	Tools []string
	// Soundings is the number of parallel attempts for this phase. Zero or
	// one means a single attempt.
	Soundings int
	// Handoff is the author-declared ordered list of phase names this phase
	// hands off to.
	Handoff []string
	// Context is the selective-context list. It names upstream phases whose
	// output is included, or the wildcard "all".
	Context []string
	// RawBody is the serialized source text of the phase block.
	RawBody string
}

// InputParam is a declared pipeline input parameter. Declaration order
// matters: the layout assigns each parameter a fixed vertical offset.
type InputParam struct {
	Name     string
	Default  string
	Position int
}

// Pipeline is an ordered collection of phases plus declared input parameters.
type Pipeline struct {
	Phases []*Phase
	Inputs []*InputParam
}

// Phase returns the phase with the given name, if present.
func (p *Pipeline) Phase(name string) (*Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return nil, false
}

// InputNames returns the declared input parameter names in declaration order.
func (p *Pipeline) InputNames() []string {
	names := make([]string, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		names = append(names, in.Name)
	}
	return names
}
