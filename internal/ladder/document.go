package ladder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrNoLadderLogic is the diagnostic for a document that could not be parsed
// or contains no LD subtree.
var ErrNoLadderLogic = errors.New("no ladder logic found")

// Conversion is the converted form of one file.
type Conversion struct {
	FileName       string              `json:"fileName"`
	Strategy       Strategy            `json:"strategy"`
	FunctionBlocks []FunctionBlockInfo `json:"functionBlocks"`
	Diagrams       []DiagramResult     `json:"diagrams"`
	// Lines is the ladder output: rung lines plus one marker per diagram.
	Lines []string `json:"lines"`
	// Diagnostic explains an empty result; it is not an error.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// HasContent reports whether there is anything worth writing out.
func (c *Conversion) HasContent() bool {
	return len(c.Lines) > 0 || len(c.FunctionBlocks) > 0
}

// RungCount returns the number of rendered rung lines across all diagrams.
func (c *Conversion) RungCount() int {
	n := 0
	for _, d := range c.Diagrams {
		n += len(d.Lines)
	}
	return n
}

// Text renders the full output file: a provenance comment, the function
// block header and the ladder lines.
func (c *Conversion) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// Converted from %s\n", c.FileName)
	if header := FunctionBlockHeader(c.FunctionBlocks); len(header) > 0 {
		sb.WriteString(strings.Join(header, "\n"))
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(c.Lines, "\n"))
	return sb.String()
}

// OutputName maps an input file name to the name of its text output.
func OutputName(fileName string) string {
	ext := filepath.Ext(fileName)
	switch strings.ToLower(ext) {
	case ".xml", ".l5x":
		return strings.TrimSuffix(fileName, ext) + ".txt"
	}
	return fileName + ".txt"
}

// ConvertDocument converts an already parsed document.
func (c *Converter) ConvertDocument(name string, doc *Node) *Conversion {
	conv := &Conversion{
		FileName:       name,
		Strategy:       c.strategy,
		FunctionBlocks: ExtractFunctionBlocks(doc),
		Diagrams:       c.ConvertDiagrams(doc),
	}
	conv.Lines = joinDiagrams(conv.Diagrams)
	if len(conv.Diagrams) == 0 {
		conv.Diagnostic = ErrNoLadderLogic.Error()
		c.logger.Info("no ladder logic found", "file", name)
	}
	return conv
}

// ConvertReader parses and converts one file. A document that is not XML is
// not an error: it yields an empty conversion carrying a diagnostic, so a
// batch keeps going. Only a failing reader is returned as an error.
func (c *Converter) ConvertReader(name string, r io.Reader) (*Conversion, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return c.ConvertBytes(name, data), nil
}

// ConvertBytes parses and converts an in-memory document.
func (c *Converter) ConvertBytes(name string, data []byte) *Conversion {
	doc, err := ParseDocument(bytes.NewReader(data))
	if err != nil {
		c.logger.Warn("error parsing ladder file", "file", name, "error", err)
		return &Conversion{
			FileName:   name,
			Strategy:   c.strategy,
			Diagnostic: fmt.Sprintf("%v: %v", ErrNoLadderLogic, err),
		}
	}
	return c.ConvertDocument(name, doc)
}
