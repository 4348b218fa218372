package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dgallion1/pqgram/internal/tree"
)

// JSONParser handles JSON files. Object members become "key:<name>" nodes
// holding their value, in document order; scalars are keyed by type.
type JSONParser struct{}

func (p *JSONParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	type frame struct {
		node   *tree.Static[string]
		object bool
		key    *tree.Static[string] // pending member awaiting its value
	}
	var (
		root  *tree.Static[string]
		stack []*frame
	)
	attach := func(n *tree.Static[string]) {
		if len(stack) == 0 {
			root = n
			return
		}
		top := stack[len(stack)-1]
		if top.object {
			top.key.Kids = append(top.key.Kids, n)
			top.key = nil
			return
		}
		top.node.Kids = append(top.node.Kids, n)
	}

	for root == nil || len(stack) > 0 {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parse json: unexpected end of input")
		}
		if err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}

		if len(stack) > 0 {
			top := stack[len(stack)-1]
			if name, ok := tok.(string); ok && top.object && top.key == nil {
				top.key = tree.S("key:" + name)
				top.node.Kids = append(top.node.Kids, top.key)
				continue
			}
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{', '[':
				n := tree.S("array")
				if v == '{' {
					n = tree.S("object")
				}
				attach(n)
				stack = append(stack, &frame{node: n, object: v == '{'})
			case '}', ']':
				stack = stack[:len(stack)-1]
			}
		case string:
			attach(tree.S("string"))
		case json.Number:
			attach(tree.S("number"))
		case bool:
			attach(tree.S("bool"))
		case nil:
			attach(tree.S("null"))
		}
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parse json: trailing data after top-level value")
	}
	return root, nil
}
