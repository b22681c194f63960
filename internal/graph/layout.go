package graph

// Fixed card geometry shared with the rendering layer. Layout is pure
// geometry: replacing it never touches the graph semantics above it.
const (
	cardWidth  = 220.0
	cardHeight = 96.0
	gapX       = 80.0
	gapY       = 48.0

	// Input parameters are drawn in a fixed column to the left of layer 0,
	// stacked at a constant vertical pitch in declaration order.
	inputParamPitch = 56.0
)

// Mode selects how nodes are positioned.
type Mode string

const (
	// ModeLinear ignores the graph and lays every node on a single row in
	// declaration order.
	ModeLinear Mode = "linear"
	// ModeLayered positions nodes by topological layer: x from the layer
	// index, y from the position within the layer.
	ModeLayered Mode = "layered"
)

// Point is a 2D canvas position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout is the computed canvas geometry for a graph.
type Layout struct {
	CanvasWidth  float64          `json:"canvas_width"`
	CanvasHeight float64          `json:"canvas_height"`
	InputParams  map[string]Point `json:"input_param_positions,omitempty"`
}

// Arrange assigns X/Y to every placed node of g and returns the canvas
// bounding box plus the fixed input parameter positions. inputNames must be
// in declaration order.
func Arrange(g *Graph, inputNames []string, mode Mode) *Layout {
	switch mode {
	case ModeLinear:
		for i, node := range g.Nodes {
			node.X = float64(i) * (cardWidth + gapX)
			node.Y = 0
		}
	default: // ModeLayered
		for layer, names := range g.layers {
			for i, name := range names {
				node, ok := g.byName[name]
				if !ok {
					continue
				}
				node.X = float64(layer) * (cardWidth + gapX)
				node.Y = float64(i) * (cardHeight + gapY)
			}
		}
	}

	layout := &Layout{}
	for _, node := range g.Nodes {
		if right := node.X + cardWidth; right > layout.CanvasWidth {
			layout.CanvasWidth = right
		}
		if bottom := node.Y + cardHeight; bottom > layout.CanvasHeight {
			layout.CanvasHeight = bottom
		}
	}

	if len(inputNames) > 0 {
		layout.InputParams = make(map[string]Point, len(inputNames))
		for i, name := range inputNames {
			layout.InputParams[name] = Point{
				X: -(cardWidth + gapX),
				Y: float64(i) * inputParamPitch,
			}
		}
	}

	return layout
}
