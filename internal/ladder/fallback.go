package ladder

import "sort"

// BandHeight is the vertical distance, in drawing units, grouped into one
// positional rung.
const BandHeight = 30

// Band quantizes a y coordinate to the start of its band, flooring for
// negative coordinates too.
func Band(y int) int {
	b := y / BandHeight
	if y%BandHeight != 0 && y < 0 {
		b--
	}
	return b * BandHeight
}

// GroupByPosition approximates rungs for diagrams whose wiring is missing:
// every non-rail element with a <position> child is grouped by the band of
// its y coordinate. Bands come back in ascending order, elements in document
// order.
func GroupByPosition(ld *Node) []Rung {
	groups := make(map[int][]*Element)

	ld.Walk(func(n *Node) bool {
		if n.Child("position") == nil {
			return true
		}
		e := NewElement(n)
		if e.Kind.IsRail() {
			return true
		}
		band := Band(e.Position.Y)
		groups[band] = append(groups[band], e)
		return true
	})

	bands := make([]int, 0, len(groups))
	for b := range groups {
		bands = append(bands, b)
	}
	sort.Ints(bands)

	rungs := make([]Rung, 0, len(bands))
	for _, b := range bands {
		rungs = append(rungs, Rung{
			Elements: groups[b],
			Source:   SourcePositional,
			Band:     b,
		})
	}
	return rungs
}
