// Package tree holds the ordered labeled tree used for profiling and the
// builder that converts any hierarchical source into one.
//
// Sources only need to implement Node: a label accessor and an ordered
// children accessor. Format-specific adapters live in internal/parser.
package tree

// Node is the capability a hierarchical source object exposes: a label and an
// ordered, finite sequence of same-shaped children.
type Node[K any] interface {
	Label() (K, error)
	Children() ([]Node[K], error)
}

// Labeler derives a tree label from a source label.
type Labeler[K any, L comparable] interface {
	Label(key K) (L, error)
}

// LabelerFunc adapts a function to Labeler.
type LabelerFunc[K any, L comparable] func(key K) (L, error)

func (f LabelerFunc[K, L]) Label(key K) (L, error) { return f(key) }

// Identity returns a Labeler that uses the source label unchanged.
func Identity[K comparable]() Labeler[K, K] {
	return LabelerFunc[K, K](func(key K) (K, error) { return key, nil })
}

// Static is an in-memory Node, handy for callers that already hold their
// data as nested values and for tests.
type Static[K any] struct {
	Key  K
	Kids []*Static[K]
}

// S builds a Static node.
func S[K any](key K, kids ...*Static[K]) *Static[K] {
	return &Static[K]{Key: key, Kids: kids}
}

func (s *Static[K]) Label() (K, error) { return s.Key, nil }

func (s *Static[K]) Children() ([]Node[K], error) {
	out := make([]Node[K], len(s.Kids))
	for i, k := range s.Kids {
		if k != nil {
			out[i] = k
		}
	}
	return out, nil
}
