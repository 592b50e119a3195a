package ladder

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies what a ladder element is, derived from its XML tag.
type Kind int

const (
	KindUnknown Kind = iota
	KindContact
	KindCoil
	KindFunctionBlock
	KindLeftRail
	KindRightRail
)

func (k Kind) String() string {
	switch k {
	case KindContact:
		return "contact"
	case KindCoil:
		return "coil"
	case KindFunctionBlock:
		return "functionBlock"
	case KindLeftRail:
		return "leftPowerRail"
	case KindRightRail:
		return "rightPowerRail"
	default:
		return "unknown"
	}
}

// IsRail reports whether the kind is a left or right power rail.
func (k Kind) IsRail() bool {
	return k == KindLeftRail || k == KindRightRail
}

// IsInstruction reports whether elements of this kind render to an instruction.
func (k Kind) IsInstruction() bool {
	return k == KindContact || k == KindCoil || k == KindFunctionBlock
}

// kindFromTag matches tags case-insensitively; exporters are not consistent
// about functionBlock vs functionblock.
func kindFromTag(tag string) Kind {
	switch strings.ToLower(tag) {
	case "contact":
		return KindContact
	case "coil":
		return KindCoil
	case "block", "functionblock":
		return KindFunctionBlock
	case "leftpowerrail":
		return KindLeftRail
	case "rightpowerrail":
		return KindRightRail
	default:
		return KindUnknown
	}
}

// UnknownOperand is substituted when a contact or coil has no variable text.
const UnknownOperand = "UNKNOWN"

// Position is an element's drawing coordinate. Only Y is used, by the
// positional fallback.
type Position struct {
	X int
	Y int
}

// Element is one ladder primitive lifted out of the XML.
type Element struct {
	LocalID    string
	Kind       Kind
	Tag        string
	Negated    bool
	Operand    string
	BlockType  string
	Position   *Position
	Parameters []string
}

// NewElement builds an Element from its XML node. Missing data is replaced by
// defaults, never reported.
func NewElement(n *Node) *Element {
	e := &Element{
		LocalID: n.AttrOr("localId", ""),
		Kind:    kindFromTag(n.Tag()),
		Tag:     n.Tag(),
		Negated: strings.EqualFold(n.AttrOr("negated", "false"), "true"),
		Operand: operandOf(n),
	}

	if e.Kind == KindFunctionBlock {
		e.BlockType = n.AttrOr("typeName", "")
		e.Parameters = parameterTexts(n)
	}

	if pos := n.Child("position"); pos != nil {
		e.Position = &Position{
			X: coordinate(pos, "x"),
			Y: coordinate(pos, "y"),
		}
	}

	return e
}

// operandOf prefers a direct <variable> child and falls back to <expression>.
func operandOf(n *Node) string {
	if v := n.Child("variable").Text(); v != "" {
		return v
	}
	if v := n.Child("expression").Text(); v != "" {
		return v
	}
	return UnknownOperand
}

// parameterTexts collects every variable/expression text in the block subtree.
func parameterTexts(n *Node) []string {
	var params []string
	n.Walk(func(c *Node) bool {
		switch c.Tag() {
		case "variable", "expression":
			if t := c.Text(); t != "" {
				params = append(params, t)
			}
		}
		return true
	})
	return params
}

// coordinate parses an x/y attribute. Exporters write both integers and
// decimals; anything unparseable is 0.
func coordinate(pos *Node, name string) int {
	raw, ok := pos.Attr(name)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Floor(v))
}
