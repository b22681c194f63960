package graph

import (
	"fmt"
	"strings"

	"github.com/vk/phaseboard/internal/pipeline"
)

// UnplacedError reports phases that layering could not assign to any layer.
// That only happens when the dependency relation contains a cycle; every
// node in the cycle, and everything downstream of it, stays unplaced.
type UnplacedError struct {
	Nodes []string
}

func (e *UnplacedError) Error() string {
	return fmt.Sprintf("layering could not place %d phase(s), dependency cycle suspected: %s",
		len(e.Nodes), strings.Join(e.Nodes, ", "))
}

// assignLayers performs the topological layering. Layer 0 holds the phases
// with no unresolved source; each later round admits the phases whose
// sources were all placed in a strictly earlier round. It stops when a round
// places nothing, returning whatever is left as unplaced.
func assignLayers(p *pipeline.Pipeline, sources map[string][]string) (layers [][]string, layerOf map[string]int, unplaced []string) {
	layerOf = make(map[string]int, len(p.Phases))
	remaining := make([]*pipeline.Phase, len(p.Phases))
	copy(remaining, p.Phases)

	for layer := 0; len(remaining) > 0; layer++ {
		var current []string
		var next []*pipeline.Phase

		for _, ph := range remaining {
			ready := true
			for _, src := range sources[ph.Name] {
				if _, placed := layerOf[src]; !placed {
					ready = false
					break
				}
			}
			if ready {
				current = append(current, ph.Name)
			} else {
				next = append(next, ph)
			}
		}

		if len(current) == 0 {
			// No progress: the remainder participates in a cycle.
			for _, ph := range next {
				unplaced = append(unplaced, ph.Name)
			}
			break
		}

		// Assign after the sweep so phases admitted this round cannot
		// satisfy each other within the same round.
		for _, name := range current {
			layerOf[name] = layer
		}
		layers = append(layers, current)
		remaining = next
	}

	return layers, layerOf, unplaced
}
