package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/pqgram/internal/tree"
)

// YAMLParser handles YAML files, including multi-document streams. Mapping
// entries become "key:<name>" nodes holding their value, so two files with
// the same keys in the same layout match.
type YAMLParser struct{}

func (p *YAMLParser) Parse(r io.Reader, filename string) (tree.Node[string], error) {
	dec := yaml.NewDecoder(r)
	var docs []*yaml.Node
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		docs = append(docs, &n)
	}
	if len(docs) == 1 {
		return &YAMLNode{Node: docs[0]}, nil
	}
	return &yamlStream{docs: docs}, nil
}

// YAMLNode adapts a yaml.v3 node. When Key is set the node stands for one
// mapping entry: it is labelled by the key and its only child is the value.
type YAMLNode struct {
	Node *yaml.Node
	Key  string
}

func (y *YAMLNode) Label() (string, error) {
	if y.Key != "" {
		return "key:" + y.Key, nil
	}
	switch y.Node.Kind {
	case yaml.DocumentNode:
		return "document", nil
	case yaml.SequenceNode:
		return "sequence", nil
	case yaml.MappingNode:
		return "mapping", nil
	case yaml.ScalarNode:
		return "scalar:" + strings.TrimPrefix(y.Node.ShortTag(), "!!"), nil
	case yaml.AliasNode:
		return "alias", nil
	}
	return "", fmt.Errorf("yaml node kind %d has no label", y.Node.Kind)
}

func (y *YAMLNode) Children() ([]tree.Node[string], error) {
	if y.Key != "" {
		return []tree.Node[string]{&YAMLNode{Node: y.Node}}, nil
	}
	if y.Node.Kind != yaml.MappingNode {
		out := make([]tree.Node[string], len(y.Node.Content))
		for i, c := range y.Node.Content {
			out[i] = &YAMLNode{Node: c}
		}
		return out, nil
	}
	if len(y.Node.Content)%2 != 0 {
		return nil, fmt.Errorf("yaml mapping at line %d has an odd number of nodes", y.Node.Line)
	}
	out := make([]tree.Node[string], 0, len(y.Node.Content)/2)
	for i := 0; i < len(y.Node.Content); i += 2 {
		key := y.Node.Content[i].Value
		if key == "" {
			key = "~"
		}
		out = append(out, &YAMLNode{Node: y.Node.Content[i+1], Key: key})
	}
	return out, nil
}

type yamlStream struct {
	docs []*yaml.Node
}

func (s *yamlStream) Label() (string, error) { return "stream", nil }

func (s *yamlStream) Children() ([]tree.Node[string], error) {
	out := make([]tree.Node[string], len(s.docs))
	for i, d := range s.docs {
		out[i] = &YAMLNode{Node: d}
	}
	return out, nil
}
