// Package labels provides label-derivation strategies that turn the string
// key a source node exposes (a tag name, an AST kind) into a tree label.
package labels

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/pqgram"
	"github.com/dgallion1/pqgram/internal/tree"
)

// Hash derives compact int64 labels from string keys with xxhash. The same
// key always maps to the same label, across runs and processes. It never
// produces pqgram.FillerValue.
type Hash struct{}

func (Hash) Label(key string) (int64, error) {
	l := int64(xxhash.Sum64String(key))
	if l == pqgram.FillerValue {
		return 0, errs.New(errs.CodeLabelCollision, "key %q hashes to the filler value", key)
	}
	return l, nil
}

// Text uses the key itself as the label.
type Text struct {
	// Fold lower-cases keys so that e.g. <DIV> and <div> share a label.
	Fold bool
}

func (t Text) Label(key string) (string, error) {
	if t.Fold {
		key = strings.ToLower(key)
	}
	return key, nil
}

// Describe is the description used in label maps: the key, trimmed.
func Describe(key string) string {
	return strings.TrimSpace(key)
}

var (
	_ tree.Labeler[string, int64]  = Hash{}
	_ tree.Labeler[string, string] = Text{}
)

// Registry merges per-tree label maps into one map for result
// interpretation. It is safe for concurrent use.
type Registry[L comparable] struct {
	mu     sync.Mutex
	labels tree.LabelMap[L]
}

func NewRegistry[L comparable]() *Registry[L] {
	return &Registry[L]{labels: make(tree.LabelMap[L])}
}

// Merge adds lm to the registry. Two different descriptions for one label
// mean the label strategy collided; that is reported as LABEL_COLLISION
// rather than silently merging unrelated nodes.
func (r *Registry[L]) Merge(lm tree.LabelMap[L]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for l, desc := range lm {
		if prev, ok := r.labels[l]; ok && prev != desc {
			return errs.New(errs.CodeLabelCollision, "label %v describes both %q and %q", l, prev, desc)
		}
		r.labels[l] = desc
	}
	return nil
}

// Snapshot returns a copy of the merged map.
func (r *Registry[L]) Snapshot() tree.LabelMap[L] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(tree.LabelMap[L], len(r.labels))
	for l, d := range r.labels {
		out[l] = d
	}
	return out
}

// Len returns the number of distinct labels seen.
func (r *Registry[L]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.labels)
}
