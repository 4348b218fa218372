package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/pqgram/internal/tree"
)

// render builds n and prints it as label(child,child,...).
func render(t *testing.T, n tree.Node[string]) string {
	t.Helper()
	built, err := tree.Build[string, string](n, tree.Identity[string]())
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	var sb strings.Builder
	var walk func(*tree.Tree[string])
	walk = func(n *tree.Tree[string]) {
		sb.WriteString(n.Label)
		if n.IsLeaf() {
			return
		}
		sb.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteByte(',')
			}
			walk(c)
		}
		sb.WriteByte(')')
	}
	walk(built)
	return sb.String()
}

func parse(t *testing.T, p Parser, input, filename string) string {
	t.Helper()
	n, err := p.Parse(strings.NewReader(input), filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return render(t, n)
}
