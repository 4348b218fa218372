// Package pqgram extracts PQGram profiles from ordered labeled trees and
// compares them.
//
// A PQGram of node n is the p labels on the path down to n (its stem)
// followed by a window of q labels from n's sibling list. Positions that run
// off the tree are filled with a filler label that is distinct from every
// real label. The profile of a tree is the multiset of all its grams, and the
// distance between two profiles is 1 - 2|A ∩ B| / (|A| + |B|).
//
//	t := tree.New("R", tree.New("A"), tree.New("B"))
//	p, err := pqgram.Extract(t, 2, 3)
//	d := pqgram.Distance(p, other)
package pqgram

import (
	"fmt"
)

// FillerValue stands in for filler positions when a profile of int64 labels
// is flattened.
const FillerValue int64 = 6888428148507855167

// DisplayFiller stands in for filler positions in string renderings.
const DisplayFiller = "*"

// Label is a gram position: either a real tree label or the filler.
type Label[L comparable] struct {
	value  L
	filler bool
}

// Real wraps a tree label.
func Real[L comparable](v L) Label[L] {
	return Label[L]{value: v}
}

// Filler returns the filler label.
func Filler[L comparable]() Label[L] {
	return Label[L]{filler: true}
}

func (l Label[L]) IsFiller() bool {
	return l.filler
}

// Value returns the wrapped tree label. ok is false for the filler.
func (l Label[L]) Value() (v L, ok bool) {
	return l.value, !l.filler
}

func (l Label[L]) String() string {
	if l.filler {
		return DisplayFiller
	}
	return fmt.Sprint(l.value)
}

// Gram is one PQGram: p stem labels followed by q window labels.
type Gram[L comparable] []Label[L]

// Equal reports whether g and o hold the same labels in the same order.
func (g Gram[L]) Equal(o Gram[L]) bool {
	if len(g) != len(o) {
		return false
	}
	for i := range g {
		if g[i] != o[i] {
			return false
		}
	}
	return true
}

// Flat returns g's labels with filler positions replaced by filler. It fails
// with LABEL_COLLISION if a real label equals filler.
func (g Gram[L]) Flat(filler L) ([]L, error) {
	out := make([]L, len(g))
	for i, l := range g {
		if l.filler {
			out[i] = filler
			continue
		}
		if l.value == filler {
			return nil, collision(l.value)
		}
		out[i] = l.value
	}
	return out, nil
}
