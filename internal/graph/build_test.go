package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/phaseboard/internal/pipeline"
)

func phase(name, rawBody string, handoff ...string) *pipeline.Phase {
	return &pipeline.Phase{Name: name, Handoff: handoff, RawBody: rawBody}
}

func TestBuildEdgeDiscovery(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit handoff produces an edge", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			phase("b", ""),
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		require.Len(t, g.Edges, 1)
		assert.Equal(t, "a", g.Edges[0].Source)
		assert.Equal(t, "b", g.Edges[0].Target)
	})

	t.Run("implicit output reference produces an edge", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", ""),
			phase("b", `instructions = "summarize outputs.a"`),
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		require.Len(t, g.Edges, 1)
		assert.Equal(t, "a", g.Edges[0].Source)
		assert.Equal(t, "b", g.Edges[0].Target)
	})

	t.Run("explicit plus implicit to the same target dedupes to one edge", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			phase("b", `instructions = "use outputs.a"`),
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		require.Len(t, g.Edges, 1)

		nodeA, ok := g.Node("a")
		require.True(t, ok)
		assert.Equal(t, 1, nodeA.OutDegree)
		nodeB, ok := g.Node("b")
		require.True(t, ok)
		assert.Equal(t, 1, nodeB.InDegree)
	})

	t.Run("self references are ignored", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", `instructions = "loop over outputs.a"`, "a"),
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, g.Edges)
		nodeA, ok := g.Node("a")
		require.True(t, ok)
		assert.Zero(t, nodeA.InDegree)
		assert.Zero(t, nodeA.OutDegree)
	})

	t.Run("references to unknown phases are ignored", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", `instructions = "use outputs.ghost"`, "phantom"),
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, g.Edges)
	})

	t.Run("input parameter references annotate the node", func(t *testing.T) {
		p := &pipeline.Pipeline{
			Phases: []*pipeline.Phase{
				phase("a", `instructions = "research input.topic at input.depth, ignore input.ghost"`),
			},
			Inputs: []*pipeline.InputParam{
				{Name: "topic", Position: 0},
				{Name: "depth", Position: 1},
			},
		}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		nodeA, ok := g.Node("a")
		require.True(t, ok)
		assert.Equal(t, []string{"topic", "depth"}, nodeA.ImplicitInputRefs)
	})
}

func TestBuildEdgeClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("pure handoff with no data reference is execution", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			phase("b", `instructions = "do something unrelated"`),
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		require.Len(t, g.Edges, 1)
		assert.Equal(t, KindExecution, g.Edges[0].Kind)
	})

	t.Run("textual output reference wins as data", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			{Name: "b", Context: []string{"a"}, RawBody: `instructions = "use outputs.a"`},
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		require.Len(t, g.Edges, 1)
		assert.Equal(t, KindData, g.Edges[0].Kind)
	})

	t.Run("selective context list names the source", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			{Name: "b", Context: []string{"a"}},
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		require.Len(t, g.Edges, 1)
		assert.Equal(t, KindSelective, g.Edges[0].Kind)
	})

	t.Run("selective wildcard all", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			{Name: "b", Context: []string{"all"}},
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		require.Len(t, g.Edges, 1)
		assert.Equal(t, KindSelective, g.Edges[0].Kind)
	})
}

func TestBuildLayering(t *testing.T) {
	ctx := context.Background()

	t.Run("every acyclic node lands in exactly one layer", func(t *testing.T) {
		// a -> b -> d, a -> c -> d, plus detached e.
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b", "c"),
			phase("b", "", "d"),
			phase("c", "", "d"),
			phase("d", ""),
			phase("e", ""),
		}}
		g, err := Build(ctx, p)
		require.NoError(t, err)
		require.Len(t, g.Nodes, 5)
		assert.Empty(t, g.Unplaced)

		seen := make(map[string]int)
		for _, node := range g.Nodes {
			seen[node.Name] = node.Layer
		}
		assert.Equal(t, 0, seen["a"])
		assert.Equal(t, 1, seen["b"])
		assert.Equal(t, 1, seen["c"])
		assert.Equal(t, 2, seen["d"])
		assert.Equal(t, 0, seen["e"])

		// Edges never point to a lower layer than their source.
		for _, edge := range g.Edges {
			src, ok := g.Node(edge.Source)
			require.True(t, ok)
			dst, ok := g.Node(edge.Target)
			require.True(t, ok)
			assert.GreaterOrEqual(t, dst.Layer, src.Layer,
				"edge %s -> %s points backward", edge.Source, edge.Target)
		}
	})

	t.Run("cycle is reported, not silently dropped", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			phase("b", "", "c"),
			phase("c", "", "b"), // b <-> c cycle
		}}
		g, err := Build(ctx, p)
		require.Error(t, err)

		var unplaced *UnplacedError
		require.ErrorAs(t, err, &unplaced)
		assert.ElementsMatch(t, []string{"b", "c"}, unplaced.Nodes)
		assert.ElementsMatch(t, []string{"b", "c"}, g.Unplaced)

		// The placeable part of the graph survives.
		_, ok := g.Node("a")
		assert.True(t, ok)
		_, ok = g.Node("b")
		assert.False(t, ok)
	})

	t.Run("edges never reference unplaced phases", func(t *testing.T) {
		// a feeds the b <-> c cycle; the a -> b edge must not survive with
		// a dangling target.
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			phase("b", "", "c"),
			phase("c", "", "b"),
		}}
		g, err := Build(ctx, p)
		require.Error(t, err)

		for _, edge := range g.Edges {
			_, ok := g.Node(edge.Source)
			assert.True(t, ok, "edge source %s is not a placed node", edge.Source)
			_, ok = g.Node(edge.Target)
			assert.True(t, ok, "edge target %s is not a placed node", edge.Target)
		}
		assert.Empty(t, g.Edges)
	})

	t.Run("fully cyclic pipeline leaves nothing placed", func(t *testing.T) {
		p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
			phase("a", "", "b"),
			phase("b", "", "a"),
		}}
		g, err := Build(ctx, p)
		require.Error(t, err)
		assert.Empty(t, g.Nodes)
		assert.ElementsMatch(t, []string{"a", "b"}, g.Unplaced)
	})
}

func TestBuildBranchMergeFlags(t *testing.T) {
	p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
		phase("a", "", "b", "c"),
		phase("b", "", "d"),
		phase("c", "", "d"),
		phase("d", ""),
	}}
	g, err := Build(context.Background(), p)
	require.NoError(t, err)

	nodeA, _ := g.Node("a")
	assert.True(t, nodeA.IsBranch)
	assert.False(t, nodeA.IsMerge)
	nodeD, _ := g.Node("d")
	assert.True(t, nodeD.IsMerge)
	assert.False(t, nodeD.IsBranch)

	for _, edge := range g.Edges {
		if edge.Source == "a" {
			assert.True(t, edge.IsBranch)
		}
		if edge.Target == "d" {
			assert.True(t, edge.IsMerge)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	p := &pipeline.Pipeline{Phases: []*pipeline.Phase{
		phase("a", `instructions = "seed"`, "b", "c"),
		phase("b", `instructions = "use outputs.a"`, "d"),
		phase("c", "", "d"),
		phase("d", `instructions = "merge outputs.b and outputs.c"`),
	}}
	first, err := Build(context.Background(), p)
	require.NoError(t, err)
	second, err := Build(context.Background(), p)
	require.NoError(t, err)

	require.Equal(t, len(first.Nodes), len(second.Nodes))
	for i := range first.Nodes {
		assert.Equal(t, *first.Nodes[i], *second.Nodes[i])
	}
	require.Equal(t, len(first.Edges), len(second.Edges))
	for i := range first.Edges {
		assert.Equal(t, *first.Edges[i], *second.Edges[i])
	}
}
