package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/pqgram/internal/errs"
)

// LabelMap maps a tree label to the human-readable description of the source
// label it was derived from.
type LabelMap[L comparable] map[L]string

// Describer returns a human-readable description for a source label.
type Describer[K any] func(key K) string

// frame is one pending source node during construction. parent/index give
// the child-index path back to the root for error reporting.
type frame[K any, L comparable] struct {
	src    Node[K]
	dst    *Tree[L]
	parent *frame[K, L]
	index  int
}

func (f *frame[K, L]) path() string {
	var idx []int
	for cur := f; cur != nil && cur.parent != nil; cur = cur.parent {
		idx = append(idx, cur.index)
	}
	if len(idx) == 0 {
		return "/"
	}
	var sb strings.Builder
	for i := len(idx) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(idx[i]))
	}
	return sb.String()
}

// Build converts src into a Tree depth-first: the root's label first, then
// each child subtree in order. The source is never mutated and children are
// neither reordered nor deduplicated.
//
// Failures carry the child-index path of the offending node ("/" is the
// root, "/0/2" the third child of the first child):
//   - errs.CodeLabelExtraction (inside errs.CodeMalformedInput) when a node's
//     Label fails
//   - errs.CodeMalformedInput when a node's Children fails or a node is nil
//   - any error returned by lb, wrapped with the node path
//
// Construction uses an explicit stack, so depth is bounded by memory only.
func Build[K any, L comparable](src Node[K], lb Labeler[K, L]) (*Tree[L], error) {
	t, _, err := build(src, lb, nil)
	return t, err
}

// BuildDescribed is Build plus a LabelMap recording describe(key) for every
// label produced. The tree shape is identical to Build's.
func BuildDescribed[K any, L comparable](src Node[K], lb Labeler[K, L], describe Describer[K]) (*Tree[L], LabelMap[L], error) {
	if describe == nil {
		describe = func(key K) string { return fmt.Sprint(key) }
	}
	return build(src, lb, describe)
}

func build[K any, L comparable](src Node[K], lb Labeler[K, L], describe Describer[K]) (*Tree[L], LabelMap[L], error) {
	var labels LabelMap[L]
	if describe != nil {
		labels = make(LabelMap[L])
	}

	label := func(f *frame[K, L]) (L, error) {
		var zero L
		if f.src == nil {
			return zero, errs.New(errs.CodeMalformedInput, "node %s is nil", f.path())
		}
		key, err := f.src.Label()
		if err != nil {
			return zero, errs.Wrap(errs.CodeMalformedInput,
				errs.Wrap(errs.CodeLabelExtraction, err, "label of node %s", f.path()),
				"build tree")
		}
		l, err := lb.Label(key)
		if err != nil {
			return zero, fmt.Errorf("derive label of node %s: %w", f.path(), err)
		}
		if labels != nil {
			if _, ok := labels[l]; !ok {
				labels[l] = describe(key)
			}
		}
		return l, nil
	}

	root := &frame[K, L]{src: src}
	l, err := label(root)
	if err != nil {
		return nil, nil, err
	}
	root.dst = &Tree[L]{Label: l}

	stack := []*frame[K, L]{root}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kids, err := f.src.Children()
		if err != nil {
			return nil, nil, errs.Wrap(errs.CodeMalformedInput, err, "children of node %s", f.path())
		}
		if len(kids) == 0 {
			continue
		}

		frames := make([]*frame[K, L], len(kids))
		f.dst.Children = make([]*Tree[L], len(kids))
		for i, kid := range kids {
			cf := &frame[K, L]{src: kid, parent: f, index: i}
			cl, err := label(cf)
			if err != nil {
				return nil, nil, err
			}
			cf.dst = &Tree[L]{Label: cl}
			f.dst.Children[i] = cf.dst
			frames[i] = cf
		}
		for i := len(frames) - 1; i >= 0; i-- {
			stack = append(stack, frames[i])
		}
	}

	return root.dst, labels, nil
}
