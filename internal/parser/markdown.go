package parser

import (
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/pqgram/internal/tree"
)

// MarkdownParser handles Markdown files using goldmark. Keys are goldmark
// node kinds; headings carry their level and lists whether they are ordered.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	return &MarkdownNode{Node: doc}, nil
}

// MarkdownNode adapts a goldmark AST node.
type MarkdownNode struct {
	Node ast.Node
}

func (m *MarkdownNode) Label() (string, error) {
	switch n := m.Node.(type) {
	case *ast.Heading:
		return fmt.Sprintf("Heading%d", n.Level), nil
	case *ast.List:
		if n.IsOrdered() {
			return "OrderedList", nil
		}
	}
	return m.Node.Kind().String(), nil
}

func (m *MarkdownNode) Children() ([]tree.Node[string], error) {
	out := make([]tree.Node[string], 0, m.Node.ChildCount())
	for c := m.Node.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, &MarkdownNode{Node: c})
	}
	return out, nil
}
