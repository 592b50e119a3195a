package ladder

import "strings"

// RenderRung formats a rung's elements as one line of instructions. Rails and
// tags that are not contacts, coils or blocks contribute nothing, so an
// all-wiring rung renders to "".
func RenderRung(elements []*Element) string {
	parts := make([]string, 0, len(elements))
	for _, e := range elements {
		if !e.Kind.IsInstruction() {
			continue
		}
		parts = append(parts, Classify(e).String())
	}
	return strings.Join(parts, " ")
}
