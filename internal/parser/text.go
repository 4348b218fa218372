package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/pqgram/internal/tree"
)

// TextParser handles plain text files. The tree is text → paragraph → line;
// blank lines separate paragraphs and lines are keyed by their indentation
// ("line" or "line:indent").
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	root := tree.S("text")
	var current *tree.Static[string]

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			current = nil
			continue
		}
		if current == nil {
			current = tree.S("paragraph")
			root.Kids = append(root.Kids, current)
		}
		current.Kids = append(current.Kids, tree.S(lineKey(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return root, nil
}

func lineKey(line string) string {
	if line != strings.TrimLeft(line, " \t") {
		return "line:indent"
	}
	return "line"
}
