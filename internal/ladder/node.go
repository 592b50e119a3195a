// Package ladder converts IEC 61131-3 ladder diagrams (PLCopen TC6 XML) into a
// one-instruction-list-per-rung text form.
//
// The XML is read into a generic node tree rather than full schema structs:
// exporters disagree on namespaces, element casing and where they put
// connection wiring, and the converter only needs a handful of tags.
package ladder

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Node is one XML element of a parsed document.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

// ParseDocument reads a whole XML document into a node tree.
// Non UTF-8 encodings declared in the prolog (ISO-8859-1, windows-1252, ...)
// are transcoded.
func ParseDocument(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	root := &Node{}
	if err := dec.Decode(root); err != nil {
		return nil, fmt.Errorf("parsing ladder XML: %w", err)
	}
	return root, nil
}

// ParseDocumentBytes is ParseDocument over an in-memory buffer.
func ParseDocumentBytes(data []byte) (*Node, error) {
	return ParseDocument(bytes.NewReader(data))
}

// Tag returns the local (namespace-free) element name.
func (n *Node) Tag() string {
	if n == nil {
		return ""
	}
	return n.XMLName.Local
}

// Attr returns the value of the attribute with the given local name.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value, or def when it is missing.
func (n *Node) AttrOr(name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// Child returns the first direct child with the given local name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child with the given local name.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			out = append(out, c)
		}
	}
	return out
}

// Text returns the element's character data with surrounding whitespace removed.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Content)
}

// Walk visits every descendant of n in document order. Returning false from
// fn skips the descendants of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	for _, c := range n.Children {
		if fn(c) {
			c.Walk(fn)
		}
	}
}

// FindAll returns every descendant with the given local name, in document order.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.XMLName.Local == name {
			out = append(out, c)
		}
		return true
	})
	return out
}
