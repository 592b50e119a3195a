package ladder

// Graph is the connectivity of one ladder diagram: elements by local id and
// the one-hop signal flow between them.
type Graph struct {
	elements  map[string]*Element
	order     []string
	adjacency map[string][]string
	edges     map[edge]struct{}
}

type edge struct {
	from, to string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		elements:  make(map[string]*Element),
		adjacency: make(map[string][]string),
		edges:     make(map[edge]struct{}),
	}
}

// BuildGraph indexes every element of an LD subtree that carries a localId and
// wires an edge for every connection reference found under it.
//
// A reference inside connectionPointOut points downstream (this -> ref), one
// inside connectionPointIn points upstream (ref -> this). Some exporters only
// write one side, so both are read. References to ids that are not in the
// diagram are dropped.
func BuildGraph(ld *Node) *Graph {
	g := NewGraph()

	var nodes []*Node
	ld.Walk(func(n *Node) bool {
		if id, _ := n.Attr("localId"); id != "" {
			nodes = append(nodes, n)
			g.AddElement(NewElement(n))
		}
		return true
	})

	for _, n := range nodes {
		id, _ := n.Attr("localId")
		for _, ref := range connectionRefs(n, "connectionPointOut") {
			g.AddEdge(id, ref)
		}
		for _, ref := range connectionRefs(n, "connectionPointIn") {
			g.AddEdge(ref, id)
		}
	}

	return g
}

// connectionRefs returns the refLocalId of every connection below any
// descendant connection point named pointTag.
func connectionRefs(n *Node, pointTag string) []string {
	var refs []string
	for _, point := range n.FindAll(pointTag) {
		for _, conn := range point.FindAll("connection") {
			if ref, _ := conn.Attr("refLocalId"); ref != "" {
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

// AddElement registers an element under its local id. A later element with
// the same id replaces the earlier one but keeps its place in the order.
func (g *Graph) AddElement(e *Element) {
	if e.LocalID == "" {
		return
	}
	if _, ok := g.elements[e.LocalID]; !ok {
		g.order = append(g.order, e.LocalID)
	}
	g.elements[e.LocalID] = e
}

// AddEdge records from -> to. Edges touching unknown ids and repeats of an
// existing edge are ignored, so a connection declared from both ends is
// stored once and keeps its first insertion position.
func (g *Graph) AddEdge(from, to string) bool {
	if _, ok := g.elements[from]; !ok {
		return false
	}
	if _, ok := g.elements[to]; !ok {
		return false
	}
	key := edge{from, to}
	if _, dup := g.edges[key]; dup {
		return false
	}
	g.edges[key] = struct{}{}
	g.adjacency[from] = append(g.adjacency[from], to)
	return true
}

// Element returns the element with the given local id.
func (g *Graph) Element(id string) (*Element, bool) {
	e, ok := g.elements[id]
	return e, ok
}

// IDs returns the element ids in document order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.order...)
}

// Successors returns the ids reachable from id in one hop, in insertion order.
func (g *Graph) Successors(id string) []string {
	return g.adjacency[id]
}

// Len returns the number of indexed elements.
func (g *Graph) Len() int {
	return len(g.elements)
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// idsOfKind returns, in document order, the ids of elements of kind k.
func (g *Graph) idsOfKind(k Kind) []string {
	var ids []string
	for _, id := range g.order {
		if g.elements[id].Kind == k {
			ids = append(ids, id)
		}
	}
	return ids
}
