package parser

import (
	"fmt"
	"io"

	"golang.org/x/net/html"

	"github.com/dgallion1/pqgram/internal/tree"
)

// HTMLParser handles HTML files. The tree is rooted at the <html> element
// and holds element nodes only; text, doctype and (by default) comment nodes
// are dropped.
type HTMLParser struct {
	KeepComments bool
}

func (p *HTMLParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	root := doc
	if el := firstElement(doc); el != nil {
		root = el
	}
	return &HTMLNode{Node: root, KeepComments: p.KeepComments}, nil
}

// HTMLNode adapts an x/net/html node. Comments all share the "#comment"
// key.
type HTMLNode struct {
	Node         *html.Node
	KeepComments bool
}

func (h *HTMLNode) Label() (string, error) {
	switch h.Node.Type {
	case html.ElementNode:
		return h.Node.Data, nil
	case html.DocumentNode:
		return "#document", nil
	case html.CommentNode:
		return "#comment", nil
	}
	return "", fmt.Errorf("html node type %d has no label", h.Node.Type)
}

func (h *HTMLNode) Children() ([]tree.Node[string], error) {
	var out []tree.Node[string]
	for c := h.Node.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.ElementNode:
		case c.Type == html.CommentNode && h.KeepComments:
		default:
			continue
		}
		out = append(out, &HTMLNode{Node: c, KeepComments: h.KeepComments})
	}
	return out, nil
}

func firstElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}
