package composer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// ImportHTML converts editor markup into a document.
//
// Elements carrying a data-variable attribute become pills, <br> becomes a
// line break and block boundaries (div, p, li) start a new line. Every markup
// shape goes through the same structural walk, so there is a single canonical
// serialization no matter how the markup represented its breaks. A variable
// element naming an unknown column is kept as literal placeholder text.
func ImportHTML(markup string, schema core.Schema) (*Document, error) {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	w := &htmlWalker{doc: New(schema)}
	for _, n := range nodes {
		w.walk(n)
	}
	w.doc.caret = len(w.doc.units)
	w.doc.refresh()
	return w.doc, nil
}

type htmlWalker struct {
	doc *Document
}

func (w *htmlWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		return
	}

	if name, ok := variableAttr(n); ok {
		w.variable(name)
		return
	}

	switch n.DataAtom {
	case atom.Br:
		w.newline()
		return
	case atom.Div, atom.P, atom.Li:
		w.blockBoundary()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		w.blockBoundary()
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *htmlWalker) text(s string) {
	s = normalizeBreaks(s)
	// The editor put a non-breaking space after each pill.
	if w.lastKind() == SegmentVariable && strings.HasPrefix(s, string(nbsp)) {
		w.doc.units = append(w.doc.units, unit{kind: SegmentSeparator})
		s = strings.TrimPrefix(s, string(nbsp))
	}
	w.doc.units = append(w.doc.units, textUnits(s)...)
}

func (w *htmlWalker) variable(name string) {
	col, ok := w.doc.schema.Lookup(name)
	if !ok {
		w.doc.units = append(w.doc.units, textUnits(Placeholder(name))...)
		return
	}
	w.doc.units = append(w.doc.units, unit{kind: SegmentVariable, column: col.Name})
}

func (w *htmlWalker) newline() {
	w.doc.units = append(w.doc.units, unit{kind: SegmentText, r: '\n'})
}

// blockBoundary starts a new line unless the document is empty or already at a line start.
func (w *htmlWalker) blockBoundary() {
	n := len(w.doc.units)
	if n == 0 {
		return
	}
	last := w.doc.units[n-1]
	if last.kind == SegmentText && last.r == '\n' {
		return
	}
	w.newline()
}

func (w *htmlWalker) lastKind() SegmentKind {
	if len(w.doc.units) == 0 {
		return SegmentText
	}
	return w.doc.units[len(w.doc.units)-1].kind
}

func variableAttr(n *html.Node) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == "data-variable" {
			name := strings.TrimSpace(a.Val)
			return name, name != ""
		}
	}
	return "", false
}
