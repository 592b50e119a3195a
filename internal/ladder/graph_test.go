package ladder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph_EdgesFromBothSides(t *testing.T) {
	// 2 declares its downstream wire only; 3 declares its upstream wire only.
	ld := mustParse(t, `<LD>
  <leftPowerRail localId="1"><connectionPointOut><connection refLocalId="2"/></connectionPointOut></leftPowerRail>
  <contact localId="2"><variable>A</variable><connectionPointOut><connection refLocalId="3"/></connectionPointOut></contact>
  <coil localId="3"><variable>B</variable></coil>
  <rightPowerRail localId="4"><connectionPointIn><connection refLocalId="3"/></connectionPointIn></rightPowerRail>
</LD>`)

	g := BuildGraph(ld)
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"2"}, g.Successors("1"))
	assert.Equal(t, []string{"3"}, g.Successors("2"))
	assert.Equal(t, []string{"4"}, g.Successors("3"))
	assert.Equal(t, []string{"1", "2", "3", "4"}, g.IDs())

	rungs := g.TraceRungs()
	require.Len(t, rungs, 1)
	assert.Equal(t, []string{"2", "3"}, rungs[0].IDs())
	assert.Equal(t, []string{"1", "2", "3", "4"}, rungs[0].Path)
}

func TestBuildGraph_DuplicateDeclarationsDoNotDuplicateRungs(t *testing.T) {
	// Every wire is declared from both ends.
	ld := mustParse(t, `<LD>
  <leftPowerRail localId="1"><connectionPointOut><connection refLocalId="2"/></connectionPointOut></leftPowerRail>
  <contact localId="2"><variable>A</variable>
    <connectionPointIn><connection refLocalId="1"/></connectionPointIn>
    <connectionPointOut><connection refLocalId="3"/></connectionPointOut></contact>
  <coil localId="3"><variable>B</variable>
    <connectionPointIn><connection refLocalId="2"/></connectionPointIn>
    <connectionPointOut><connection refLocalId="4"/></connectionPointOut></coil>
  <rightPowerRail localId="4"><connectionPointIn><connection refLocalId="3"/></connectionPointIn></rightPowerRail>
</LD>`)

	g := BuildGraph(ld)
	assert.Equal(t, 3, g.EdgeCount())

	rungs := g.TraceRungs()
	require.Len(t, rungs, 1)
	assert.Equal(t, "XIC A OTE B", RenderRung(rungs[0].Elements))
}

func TestBuildGraph_DanglingReferencesDropped(t *testing.T) {
	ld := mustParse(t, `<LD>
  <contact localId="2"><connectionPointIn><connection refLocalId="99"/></connectionPointIn><variable>A</variable></contact>
  <coil localId="3"><connectionPointIn><connection/><connection refLocalId=""/></connectionPointIn><variable>B</variable></coil>
  <coil><variable>NoID</variable></coil>
</LD>`)

	g := BuildGraph(ld)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.TraceRungs())
}

func TestTraceRungs_CycleSafe(t *testing.T) {
	g := NewGraph()
	g.AddElement(&Element{LocalID: "L", Kind: KindLeftRail})
	g.AddElement(&Element{LocalID: "a", Kind: KindContact, Operand: "A"})
	g.AddElement(&Element{LocalID: "b", Kind: KindContact, Operand: "B"})
	g.AddElement(&Element{LocalID: "c", Kind: KindCoil, Operand: "C"})
	g.AddElement(&Element{LocalID: "R", Kind: KindRightRail})

	g.AddEdge("L", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.AddEdge("b", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "R")

	rungs := g.TraceRungs()
	require.Len(t, rungs, 1)
	assert.Equal(t, []string{"a", "b", "c"}, rungs[0].IDs())
}

func TestTraceRungs_ShortestBranchWins(t *testing.T) {
	g := NewGraph()
	for _, e := range []*Element{
		{LocalID: "L", Kind: KindLeftRail},
		{LocalID: "long1", Kind: KindContact, Operand: "X"},
		{LocalID: "long2", Kind: KindContact, Operand: "Y"},
		{LocalID: "short", Kind: KindContact, Operand: "Z"},
		{LocalID: "out", Kind: KindCoil, Operand: "Q"},
		{LocalID: "R", Kind: KindRightRail},
	} {
		g.AddElement(e)
	}
	g.AddEdge("L", "long1")
	g.AddEdge("long1", "long2")
	g.AddEdge("long2", "out")
	g.AddEdge("L", "short")
	g.AddEdge("short", "out")
	g.AddEdge("out", "R")

	rungs := g.TraceRungs()
	require.Len(t, rungs, 1)
	assert.Equal(t, "XIC Z OTE Q", RenderRung(rungs[0].Elements))
}

func TestTraceRungs_TieBrokenByInsertionOrder(t *testing.T) {
	g := NewGraph()
	for _, e := range []*Element{
		{LocalID: "L", Kind: KindLeftRail},
		{LocalID: "p", Kind: KindContact, Operand: "P"},
		{LocalID: "q", Kind: KindContact, Operand: "Q"},
		{LocalID: "o", Kind: KindCoil, Operand: "O"},
		{LocalID: "R", Kind: KindRightRail},
	} {
		g.AddElement(e)
	}
	g.AddEdge("L", "q")
	g.AddEdge("L", "p")
	g.AddEdge("p", "o")
	g.AddEdge("q", "o")
	g.AddEdge("o", "R")

	rungs := g.TraceRungs()
	require.Len(t, rungs, 1)
	assert.Equal(t, []string{"q", "o"}, rungs[0].IDs())
}

func TestTraceRungs_OneRungPerRailPair(t *testing.T) {
	g := NewGraph()
	for _, e := range []*Element{
		{LocalID: "L1", Kind: KindLeftRail},
		{LocalID: "L2", Kind: KindLeftRail},
		{LocalID: "a", Kind: KindContact, Operand: "A"},
		{LocalID: "b", Kind: KindCoil, Operand: "B"},
		{LocalID: "c", Kind: KindContact, Operand: "C"},
		{LocalID: "d", Kind: KindCoil, Operand: "D"},
		{LocalID: "R1", Kind: KindRightRail},
		{LocalID: "R2", Kind: KindRightRail},
	} {
		g.AddElement(e)
	}
	g.AddEdge("L1", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "R1")
	g.AddEdge("L2", "c")
	g.AddEdge("c", "d")
	g.AddEdge("d", "R2")

	rungs := g.TraceRungs()
	require.Len(t, rungs, 2)
	assert.Equal(t, "XIC A OTE B", RenderRung(rungs[0].Elements))
	assert.Equal(t, "XIC C OTE D", RenderRung(rungs[1].Elements))
}

func TestTraceRungs_UnreachableRightRail(t *testing.T) {
	g := NewGraph()
	g.AddElement(&Element{LocalID: "L", Kind: KindLeftRail})
	g.AddElement(&Element{LocalID: "a", Kind: KindContact})
	g.AddElement(&Element{LocalID: "R", Kind: KindRightRail})
	g.AddEdge("L", "a")

	assert.Empty(t, g.TraceRungs())
}

func TestAddElement_LaterDuplicateReplaces(t *testing.T) {
	g := NewGraph()
	g.AddElement(&Element{LocalID: "1", Kind: KindContact, Operand: "old"})
	g.AddElement(&Element{LocalID: "2", Kind: KindCoil})
	g.AddElement(&Element{LocalID: "1", Kind: KindContact, Operand: "new"})

	e, ok := g.Element("1")
	require.True(t, ok)
	assert.Equal(t, "new", e.Operand)
	assert.Equal(t, []string{"1", "2"}, g.IDs())
}
