package ladder

// RungSource says how a diagram's rungs were recovered.
type RungSource string

const (
	SourceTraced     RungSource = "traced"
	SourcePositional RungSource = "positional"
	SourceNone       RungSource = "none"
)

// Rung is the ordered, rail-free element sequence of one rung.
type Rung struct {
	Elements []*Element
	Source   RungSource
	// Path holds the traced ids, rails included. Empty for positional rungs.
	Path []string
	// Band is the vertical bucket of a positional rung.
	Band int
}

// IDs returns the local ids of the rung's elements.
func (r Rung) IDs() []string {
	ids := make([]string, 0, len(r.Elements))
	for _, e := range r.Elements {
		ids = append(ids, e.LocalID)
	}
	return ids
}

type queued struct {
	id   string
	path []string
}

// TracePaths runs a breadth-first search from every left rail and returns one
// path, rails included, per right rail reached.
//
// A node is marked visited when it is dequeued, not when it is queued: the
// first path to be dequeued wins, and ties fall back to edge insertion order.
// A reached right rail ends its branch.
func (g *Graph) TracePaths() [][]string {
	rights := make(map[string]struct{})
	for _, id := range g.idsOfKind(KindRightRail) {
		rights[id] = struct{}{}
	}

	var paths [][]string
	for _, left := range g.idsOfKind(KindLeftRail) {
		visited := make(map[string]struct{})
		queue := []queued{{id: left}}

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]

			if _, seen := visited[cur.id]; seen {
				continue
			}
			visited[cur.id] = struct{}{}

			path := make([]string, len(cur.path)+1)
			copy(path, cur.path)
			path[len(cur.path)] = cur.id

			if _, ok := rights[cur.id]; ok {
				paths = append(paths, path)
				continue
			}

			for _, next := range g.Successors(cur.id) {
				if _, seen := visited[next]; !seen {
					queue = append(queue, queued{id: next, path: path})
				}
			}
		}
	}
	return paths
}

// TraceRungs traces every left-to-right rail path and strips the rails.
func (g *Graph) TraceRungs() []Rung {
	paths := g.TracePaths()
	rungs := make([]Rung, 0, len(paths))
	for _, path := range paths {
		rung := Rung{Source: SourceTraced, Path: path}
		for _, id := range path {
			e := g.elements[id]
			if e.Kind.IsRail() {
				continue
			}
			rung.Elements = append(rung.Elements, e)
		}
		rungs = append(rungs, rung)
	}
	return rungs
}
