package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessorsPreserveEdgeOrder(t *testing.T) {
	w := &Workflow{
		Nodes: []Node{
			{ID: "start", Kind: KindStart},
			{ID: "x", Kind: KindHTTP},
			{ID: "y", Kind: KindHTTP},
		},
		Edges: []Edge{
			{From: "start", To: "y"},
			{From: "start", To: "x"},
		},
	}
	assert.Equal(t, []string{"y", "x"}, w.Successors("start"))
	assert.Equal(t, []string{"start"}, w.Predecessors("x"))
}

func TestCollapsedOrderLinear(t *testing.T) {
	w := linear(KindStart, KindHTTP, KindCodeExec, KindEnd)
	order, err := w.CollapsedOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestCollapsedOrderBreaksTiesByDeclaration(t *testing.T) {
	// Diamond: start fans out to two branches declared in a fixed order.
	w := &Workflow{
		Nodes: []Node{
			{ID: "start", Kind: KindStart},
			{ID: "left", Kind: KindHTTP},
			{ID: "right", Kind: KindHTTP},
			{ID: "join", Kind: KindCodeExec},
			{ID: "end", Kind: KindEnd},
		},
		Edges: []Edge{
			{From: "start", To: "right"},
			{From: "start", To: "left"},
			{From: "left", To: "join"},
			{From: "right", To: "join"},
			{From: "join", To: "end"},
		},
	}
	order, err := w.CollapsedOrder()
	require.NoError(t, err)
	// "left" is declared before "right", so it schedules first even though
	// the edge to "right" is declared first.
	assert.Equal(t, []string{"start", "left", "right", "join", "end"}, order)
}

func TestCollapsedOrderOmitsLoopInterior(t *testing.T) {
	w := linear(KindStart, KindForEach, KindHTTP, KindCodeExec, KindEndLoop, KindEnd)
	order, err := w.CollapsedOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "e", "f"}, order)
}

func TestLoopRegionsSimple(t *testing.T) {
	w := linear(KindStart, KindForEach, KindHTTP, KindEndLoop, KindEnd)
	regions, err := w.LoopRegions()
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "b", regions[0].ForEach)
	assert.Equal(t, "d", regions[0].EndLoop)
	assert.Equal(t, []string{"c"}, regions[0].Interior)
}

func TestLoopRegionsNested(t *testing.T) {
	// a=start b=foreach c=foreach d=http e=endloop f=endloop g=end
	w := linear(KindStart, KindForEach, KindForEach, KindHTTP, KindEndLoop, KindEndLoop, KindEnd)
	regions, err := w.LoopRegions()
	require.NoError(t, err)
	require.Len(t, regions, 2)

	outer := regions[0]
	assert.Equal(t, "b", outer.ForEach)
	assert.Equal(t, "f", outer.EndLoop)
	assert.Equal(t, []string{"c", "d", "e"}, outer.Interior)

	inner := regions[1]
	assert.Equal(t, "c", inner.ForEach)
	assert.Equal(t, "e", inner.EndLoop)
	assert.Equal(t, []string{"d"}, inner.Interior)
}

func TestOrderWithinCollapsesNestedRegion(t *testing.T) {
	w := linear(KindStart, KindForEach, KindForEach, KindHTTP, KindEndLoop, KindCodeExec, KindEndLoop, KindEnd)
	regions, err := w.LoopRegions()
	require.NoError(t, err)

	order, err := w.OrderWithin(regions[0])
	require.NoError(t, err)
	// Inner interior node "d" is collapsed away; the nested pair stays.
	assert.Equal(t, []string{"c", "e", "f"}, order)

	inner, err := w.OrderWithin(regions[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, inner)
}

func TestOrderWithinEmptyInterior(t *testing.T) {
	w := linear(KindStart, KindForEach, KindEndLoop, KindEnd)
	regions, err := w.LoopRegions()
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Empty(t, regions[0].Interior)

	order, err := w.OrderWithin(regions[0])
	require.NoError(t, err)
	assert.Empty(t, order)
}
