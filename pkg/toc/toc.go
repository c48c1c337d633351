// Package toc builds a nested table of contents from the headings of a markdown document.
package toc

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const (
	DefaultMinDepth = 2
	DefaultMaxDepth = 4
)

// Item is one heading in the outline.
type Item struct {
	Title    string `json:"title" yaml:"title"`
	ID       string `json:"id" yaml:"id"`
	Depth    int    `json:"depth" yaml:"depth"`
	Children []Item `json:"children,omitempty" yaml:"children,omitempty"`
}

// Options limits which heading levels make it into the outline.
// The zero value means DefaultMinDepth..DefaultMaxDepth.
type Options struct {
	MinDepth int
	MaxDepth int
}

// DefaultOptions returns the h2..h4 range.
func DefaultOptions() Options {
	return Options{MinDepth: DefaultMinDepth, MaxDepth: DefaultMaxDepth}
}

func (o Options) normalized() Options {
	if o.MinDepth <= 0 {
		o.MinDepth = DefaultMinDepth
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// heading is a flat, document-ordered view of one ATX heading.
type heading struct {
	title    string
	customID string
	depth    int
}

// node is the mutable build-time twin of Item.
type node struct {
	item     Item
	children []*node
}

var headingParser = goldmark.New(
	goldmark.WithParserOptions(parser.WithHeadingAttribute()),
).Parser()

// Generate parses markdown and returns its outline.
// Headings outside opts' depth range are ignored. A document without
// qualifying headings yields an empty, non-nil slice.
func Generate(markdown []byte, opts Options) []Item {
	opts = opts.normalized()

	slugger := NewSlugger()
	var roots []*node
	var stack []*node

	for _, h := range extractHeadings(markdown) {
		if h.depth < opts.MinDepth || h.depth > opts.MaxDepth {
			continue
		}

		id := Slugify(h.customID)
		if id == "" {
			id = slugger.Slug(h.title)
		} else {
			id = slugger.Slug(id)
		}
		n := &node{item: Item{Title: h.title, ID: id, Depth: h.depth}}

		for len(stack) > 0 && stack[len(stack)-1].item.Depth >= n.item.Depth {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
		}
		stack = append(stack, n)
	}

	return materialize(roots)
}

func materialize(nodes []*node) []Item {
	items := make([]Item, 0, len(nodes))
	for _, n := range nodes {
		item := n.item
		if len(n.children) > 0 {
			item.Children = materialize(n.children)
		}
		items = append(items, item)
	}
	return items
}

// Flatten returns every item of the outline in document order.
// Children of the returned items are left untouched.
func Flatten(items []Item) []Item {
	var out []Item
	for _, item := range items {
		out = append(out, item)
		out = append(out, Flatten(item.Children)...)
	}
	return out
}

// Count returns the number of headings in the outline.
func Count(items []Item) int {
	total := 0
	for _, item := range items {
		total += 1 + Count(item.Children)
	}
	return total
}

// extractHeadings walks the goldmark AST and returns ATX headings in document order.
func extractHeadings(markdown []byte) []heading {
	doc := headingParser.Parse(text.NewReader(markdown))

	var headings []heading
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !isATX(markdown, h) {
			return ast.WalkSkipChildren, nil
		}

		var buf bytes.Buffer
		writeInlineText(&buf, h, markdown)
		title := string(bytes.TrimSpace(buf.Bytes()))
		if title == "" {
			return ast.WalkSkipChildren, nil
		}

		var customID string
		if raw, found := h.AttributeString("id"); found {
			if b, isBytes := raw.([]byte); isBytes {
				customID = string(b)
			}
		}

		headings = append(headings, heading{title: title, customID: customID, depth: h.Level})
		return ast.WalkSkipChildren, nil
	})

	return headings
}

// isATX reports whether the heading was written with leading '#' marks.
// Setext headings (underlined with === or ---) are not part of the outline.
func isATX(source []byte, h *ast.Heading) bool {
	lines := h.Lines()
	if lines.Len() == 0 {
		return false
	}
	start := lines.At(0).Start
	lineStart := bytes.LastIndexByte(source[:start], '\n') + 1
	prefix := bytes.TrimRight(source[lineStart:start], " \t")
	return bytes.HasSuffix(prefix, []byte("#"))
}

// writeInlineText concatenates the literal text of n's inline descendants.
func writeInlineText(buf *bytes.Buffer, n ast.Node, source []byte) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			buf.Write(c.Segment.Value(source))
			if c.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(c.Value)
		default:
			writeInlineText(buf, child, source)
		}
	}
}
