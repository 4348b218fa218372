package pqgram

import (
	"slices"
)

// Comparator computes the PQGram distance between two profiles.
//
// The distance is (U - 2I) / U, where U = |A| + |B| and I is the size of the
// bag intersection. It lies in [0, 1], is 0 for equal bags and for two empty
// profiles, and is symmetric. A Comparator is safe for concurrent use.
type Comparator[L comparable] struct {
	equal  func(a, b Label[L]) bool
	weight func(g Gram[L]) float64
}

// CompareOption configures a Comparator.
type CompareOption[L comparable] func(*Comparator[L])

// WithLabelEqual replaces exact label equality. eq must be an equivalence
// relation; two grams match when every position is equivalent. eq is never
// called with filler on one side and a real label on the other.
func WithLabelEqual[L comparable](eq func(a, b L) bool) CompareOption[L] {
	return func(c *Comparator[L]) {
		c.equal = func(a, b Label[L]) bool {
			if a.filler || b.filler {
				return a.filler == b.filler
			}
			return eq(a.value, b.value)
		}
	}
}

// WithWeight weights every occurrence of a gram by w(g) instead of 1.
// Weights must be positive for a zero distance to imply equal profiles.
func WithWeight[L comparable](w func(g Gram[L]) float64) CompareOption[L] {
	return func(c *Comparator[L]) { c.weight = w }
}

func NewComparator[L comparable](opts ...CompareOption[L]) *Comparator[L] {
	c := &Comparator[L]{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Distance compares two profiles with exact equality and unit weights. A nil
// profile is treated as empty.
func Distance[L comparable](a, b *Profile[L]) float64 {
	return (&Comparator[L]{}).Distance(a, b)
}

// Distance returns the distance between a and b. Profiles of different shape
// share no grams, so comparing them is allowed but rarely meaningful.
func (c *Comparator[L]) Distance(a, b *Profile[L]) float64 {
	if c.equal != nil {
		return c.classDistance(a, b)
	}
	if c.weight == nil {
		u := a.Len() + b.Len()
		if u == 0 {
			return 0
		}
		inter := 0
		for _, e := range entriesOf(a) {
			if m := b.countHashed(e.gram, e.hash); m > 0 {
				inter += min(e.count, m)
			}
		}
		return ratio(float64(u), float64(inter))
	}

	u := c.mass(a) + c.mass(b)
	var terms []float64
	for _, e := range entriesOf(a) {
		if m := b.countHashed(e.gram, e.hash); m > 0 {
			terms = append(terms, float64(min(e.count, m))*c.weight(e.gram))
		}
	}
	return ratio(u, sum(terms))
}

// classDistance groups the grams of both profiles into equivalence classes
// under c.equal and intersects per class.
func (c *Comparator[L]) classDistance(a, b *Profile[L]) float64 {
	type class struct {
		rep    Gram[L]
		ma, mb float64
	}
	var classes []class
	add := func(g Gram[L], count int, left bool) {
		w := float64(count)
		if c.weight != nil {
			w *= c.weight(g)
		}
		for i := range classes {
			if c.gramEqual(classes[i].rep, g) {
				if left {
					classes[i].ma += w
				} else {
					classes[i].mb += w
				}
				return
			}
		}
		cl := class{rep: g}
		if left {
			cl.ma = w
		} else {
			cl.mb = w
		}
		classes = append(classes, cl)
	}
	for _, e := range entriesOf(a) {
		add(e.gram, e.count, true)
	}
	for _, e := range entriesOf(b) {
		add(e.gram, e.count, false)
	}

	terms := make([]float64, 0, len(classes))
	ma := make([]float64, 0, len(classes))
	mb := make([]float64, 0, len(classes))
	for _, cl := range classes {
		ma = append(ma, cl.ma)
		mb = append(mb, cl.mb)
		if cl.ma > 0 && cl.mb > 0 {
			terms = append(terms, min(cl.ma, cl.mb))
		}
	}
	return ratio(sum(ma)+sum(mb), sum(terms))
}

func (c *Comparator[L]) gramEqual(x, y Gram[L]) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if !c.equal(x[i], y[i]) {
			return false
		}
	}
	return true
}

// mass is the weighted size of p.
func (c *Comparator[L]) mass(p *Profile[L]) float64 {
	if p == nil {
		return 0
	}
	if c.weight == nil {
		return float64(len(p.grams))
	}
	terms := make([]float64, len(p.entries))
	for i, e := range p.entries {
		terms[i] = float64(e.count) * c.weight(e.gram)
	}
	return sum(terms)
}

func entriesOf[L comparable](p *Profile[L]) []entry[L] {
	if p == nil {
		return nil
	}
	return p.entries
}

func (pr *Profile[L]) countHashed(g Gram[L], h uint64) int {
	if pr == nil {
		return 0
	}
	if i := pr.find(g, h); i >= 0 {
		return pr.entries[i].count
	}
	return 0
}

// sum adds terms in ascending order so the result does not depend on which
// profile the terms were collected from.
func sum(terms []float64) float64 {
	slices.Sort(terms)
	var s float64
	for _, t := range terms {
		s += t
	}
	return s
}

func ratio(u, inter float64) float64 {
	if u <= 0 {
		return 0
	}
	d := (u - 2*inter) / u
	return min(max(d, 0), 1)
}
