package ladder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ladderscan/backend/internal/logging"
)

// EndOfDiagramMarker is appended after the rungs of every ladder diagram.
const EndOfDiagramMarker = "// End of ladder diagram"

// Strategy selects how rungs are recovered.
type Strategy string

const (
	// StrategyTrace follows connection wiring and falls back to positional
	// grouping for diagrams where no rail-to-rail path exists.
	StrategyTrace Strategy = "trace"
	// StrategyPositional skips wiring and always groups by position.
	StrategyPositional Strategy = "positional"
)

// ParseStrategy parses a strategy name; "" means StrategyTrace.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyTrace:
		return StrategyTrace, nil
	case StrategyPositional:
		return StrategyPositional, nil
	default:
		return "", fmt.Errorf("unknown conversion strategy %q", s)
	}
}

// Observer receives per-diagram statistics. Implementations must be safe for
// concurrent use when one Converter is shared between goroutines.
type Observer interface {
	ObserveDiagram(source RungSource, rungs int)
}

// DiagramResult is the converted output of one LD subtree.
type DiagramResult struct {
	Index  int        `json:"index"`
	Source RungSource `json:"source"`
	Lines  []string   `json:"lines"`
}

// Converter turns parsed documents into rung text. It holds no per-document
// state and may be shared.
type Converter struct {
	strategy Strategy
	logger   *slog.Logger
	observer Observer
}

// Option configures a Converter.
type Option func(*Converter)

// WithStrategy sets the rung recovery strategy.
func WithStrategy(s Strategy) Option {
	return func(c *Converter) { c.strategy = s }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver attaches a statistics observer.
func WithObserver(o Observer) Option {
	return func(c *Converter) { c.observer = o }
}

// NewConverter returns a converter using StrategyTrace unless configured
// otherwise.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		strategy: StrategyTrace,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Strategy returns the configured strategy.
func (c *Converter) Strategy() Strategy {
	return c.strategy
}

// Diagrams returns every LD subtree of the document in document order.
func Diagrams(doc *Node) []*Node {
	return doc.FindAll("LD")
}

// ConvertDiagrams converts every ladder diagram of doc.
func (c *Converter) ConvertDiagrams(doc *Node) []DiagramResult {
	lds := Diagrams(doc)
	results := make([]DiagramResult, 0, len(lds))
	for i, ld := range lds {
		results = append(results, c.ConvertDiagram(i, ld))
	}
	return results
}

// ConvertDiagram recovers and renders the rungs of one LD subtree. Rungs that
// render empty are dropped.
func (c *Converter) ConvertDiagram(index int, ld *Node) DiagramResult {
	rungs, source := c.rungs(ld)

	res := DiagramResult{Index: index, Source: source, Lines: make([]string, 0, len(rungs))}
	for _, r := range rungs {
		if line := RenderRung(r.Elements); line != "" {
			res.Lines = append(res.Lines, line)
		}
	}

	c.logger.Debug("diagram converted",
		"diagram", index,
		"source", string(source),
		"rungs", len(rungs),
		"lines", len(res.Lines))

	if c.observer != nil {
		c.observer.ObserveDiagram(source, len(res.Lines))
	}
	return res
}

func (c *Converter) rungs(ld *Node) ([]Rung, RungSource) {
	if c.strategy != StrategyPositional {
		g := BuildGraph(ld)
		if rungs := g.TraceRungs(); len(rungs) > 0 {
			return rungs, SourceTraced
		}
		c.logger.Debug("no rail-to-rail path, grouping by position",
			"elements", g.Len(),
			"edges", g.EdgeCount())
	}

	rungs := GroupByPosition(ld)
	if len(rungs) == 0 {
		return nil, SourceNone
	}
	return rungs, SourcePositional
}

// Convert returns the rung lines of every diagram in doc, each diagram
// followed by EndOfDiagramMarker. A document without LD subtrees yields nil.
func (c *Converter) Convert(doc *Node) []string {
	return joinDiagrams(c.ConvertDiagrams(doc))
}

func joinDiagrams(diagrams []DiagramResult) []string {
	var lines []string
	for _, d := range diagrams {
		lines = append(lines, d.Lines...)
		lines = append(lines, EndOfDiagramMarker)
	}
	return lines
}
