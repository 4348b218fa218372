package parser

import (
	"context"
	"fmt"
	"io"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/dgallion1/pqgram/internal/tree"
)

// Lang is a source language supported by CodeParser.
type Lang string

const (
	LangGo         Lang = "go"
	LangPython     Lang = "python"
	LangJavaScript Lang = "javascript"
)

func (l Lang) language() (*sitter.Language, error) {
	switch l {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	}
	return nil, fmt.Errorf("unsupported language %q", l)
}

// CodeParser handles source files with tree-sitter. The tree holds named
// syntax nodes keyed by node type; punctuation and other anonymous tokens
// are dropped.
type CodeParser struct {
	Lang Lang
}

func (p *CodeParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	return p.ParseContext(context.Background(), r)
}

// ParseContext is Parse with a context for the tree-sitter run.
func (p *CodeParser) ParseContext(ctx context.Context, r io.Reader) (tree.Node[string], error) {
	lang, err := p.Lang.language()
	if err != nil {
		return nil, err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// New parser per call; sitter parsers are not safe for concurrent use.
	sp := sitter.NewParser()
	sp.SetLanguage(lang)

	st, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer st.Close()

	root := st.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%s source has syntax errors", p.Lang)
	}
	return grow(root, (*sitter.Node).Type, namedChildren), nil
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if c != nil && c.IsNamed() {
			out = append(out, c)
		}
	}
	return out
}
