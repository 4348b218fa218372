package pqgram

import (
	"hash/maphash"

	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/tree"
)

// MaxShape bounds p and q.
const MaxShape = 64

// Options control profile extraction.
type Options struct {
	// LeafGrams adds one gram per leaf, anchored at a synthetic filler
	// child of the leaf.
	LeafGrams bool
}

// Option configures Extract.
type Option func(*Options)

// WithLeafGrams enables leaf-extension grams.
func WithLeafGrams() Option {
	return func(o *Options) { o.LeafGrams = true }
}

// Profile is the multiset of PQGrams of one tree. It records the shape it
// was extracted with; only profiles of equal shape are comparable. A Profile
// is immutable and safe for concurrent reads.
type Profile[L comparable] struct {
	p, q      int
	leafGrams bool
	grams     []Gram[L]

	entries []entry[L]
	index   map[uint64][]int
}

// entry is one distinct gram and its multiplicity.
type entry[L comparable] struct {
	gram  Gram[L]
	hash  uint64
	count int
}

var seed = maphash.MakeSeed()

func hashGram[L comparable](g Gram[L]) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	for _, l := range g {
		maphash.WriteComparable(&h, l)
	}
	return h.Sum64()
}

// ValidateShape reports whether p and q are usable shape parameters.
func ValidateShape(p, q int) error {
	if p < 1 || p > MaxShape {
		return errs.New(errs.CodeInvalidShape, "p must be in [1, %d], got %d", MaxShape, p)
	}
	if q < 1 || q > MaxShape {
		return errs.New(errs.CodeInvalidShape, "q must be in [1, %d], got %d", MaxShape, q)
	}
	return nil
}

// Extract computes the (p, q) profile of t.
//
// Every node contributes one gram, in pre-order. The stem of node n is the
// last p labels of [filler × (p-1), root, ..., n]. The window is q entries of
// n's sibling list padded with ⌊q/2⌋ fillers on each side, starting ⌊q/2⌋
// positions left of n; the root's sibling list is just the root. With
// WithLeafGrams every leaf adds a second gram whose stem is extended by a
// filler and whose window is all filler.
//
// Extraction is deterministic and never recurses.
func Extract[L comparable](t *tree.Tree[L], p, q int, opts ...Option) (*Profile[L], error) {
	if err := ValidateShape(p, q); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errs.New(errs.CodeMalformedInput, "tree is nil")
	}
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	filler := Filler[L]()
	half := q / 2

	type item struct {
		node  *tree.Tree[L]
		depth int
		sibs  []*tree.Tree[L]
		pos   int
	}

	// path holds p-1 leading fillers, then the labels root..current.
	path := make([]Label[L], p-1, p-1+16)
	for i := range path {
		path[i] = filler
	}

	var grams []Gram[L]
	stack := []item{{node: t, sibs: []*tree.Tree[L]{t}}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path = append(path[:p-1+it.depth], Real(it.node.Label))

		g := make(Gram[L], 0, p+q)
		g = append(g, path[len(path)-p:]...)
		for j := it.pos - half; j < it.pos-half+q; j++ {
			if j < 0 || j >= len(it.sibs) {
				g = append(g, filler)
			} else {
				g = append(g, Real(it.sibs[j].Label))
			}
		}
		grams = append(grams, g)

		if it.node.IsLeaf() {
			if o.LeafGrams {
				lg := make(Gram[L], 0, p+q)
				lg = append(lg, path[len(path)-p+1:]...)
				for range q + 1 {
					lg = append(lg, filler)
				}
				grams = append(grams, lg)
			}
			continue
		}

		kids := it.node.Children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, item{node: kids[i], depth: it.depth + 1, sibs: kids, pos: i})
		}
	}

	return newProfile(p, q, o.LeafGrams, grams), nil
}

func newProfile[L comparable](p, q int, leafGrams bool, grams []Gram[L]) *Profile[L] {
	pr := &Profile[L]{
		p:         p,
		q:         q,
		leafGrams: leafGrams,
		grams:     grams,
		index:     make(map[uint64][]int, len(grams)),
	}
	for _, g := range grams {
		h := hashGram(g)
		if i := pr.find(g, h); i >= 0 {
			pr.entries[i].count++
			continue
		}
		pr.index[h] = append(pr.index[h], len(pr.entries))
		pr.entries = append(pr.entries, entry[L]{gram: g, hash: h, count: 1})
	}
	return pr
}

func (pr *Profile[L]) find(g Gram[L], h uint64) int {
	for _, i := range pr.index[h] {
		if pr.entries[i].gram.Equal(g) {
			return i
		}
	}
	return -1
}

// P returns the stem length the profile was extracted with.
func (pr *Profile[L]) P() int { return pr.p }

// Q returns the window length the profile was extracted with.
func (pr *Profile[L]) Q() int { return pr.q }

// LeafGrams reports whether leaf-extension grams were extracted.
func (pr *Profile[L]) LeafGrams() bool { return pr.leafGrams }

// Len returns the number of grams, counting multiplicity.
func (pr *Profile[L]) Len() int {
	if pr == nil {
		return 0
	}
	return len(pr.grams)
}

// Distinct returns the number of distinct grams.
func (pr *Profile[L]) Distinct() int {
	if pr == nil {
		return 0
	}
	return len(pr.entries)
}

// Grams returns the grams in extraction order. Callers must not modify them.
func (pr *Profile[L]) Grams() []Gram[L] {
	return pr.grams
}

// Count returns the multiplicity of g in the profile.
func (pr *Profile[L]) Count(g Gram[L]) int {
	if pr == nil {
		return 0
	}
	if i := pr.find(g, hashGram(g)); i >= 0 {
		return pr.entries[i].count
	}
	return 0
}

// SameShape reports whether pr and o were extracted with the same p, q and
// leaf-gram setting.
func (pr *Profile[L]) SameShape(o *Profile[L]) bool {
	return pr.p == o.p && pr.q == o.q && pr.leafGrams == o.leafGrams
}

// Flatten returns the grams as plain label slices with filler positions set
// to filler. It fails with LABEL_COLLISION if a real label equals filler.
func (pr *Profile[L]) Flatten(filler L) ([][]L, error) {
	out := make([][]L, len(pr.grams))
	for i, g := range pr.grams {
		flat, err := g.Flat(filler)
		if err != nil {
			return nil, err
		}
		out[i] = flat
	}
	return out, nil
}

// FromFlat rebuilds a profile from the output of Flatten. Positions equal to
// filler become filler labels.
func FromFlat[L comparable](p, q int, leafGrams bool, flat [][]L, filler L) (*Profile[L], error) {
	if err := ValidateShape(p, q); err != nil {
		return nil, err
	}
	grams := make([]Gram[L], len(flat))
	for i, row := range flat {
		if len(row) != p+q {
			return nil, errs.New(errs.CodeInvalidInput, "gram %d has %d labels, want %d", i, len(row), p+q)
		}
		g := make(Gram[L], len(row))
		for j, v := range row {
			if v == filler {
				g[j] = Filler[L]()
			} else {
				g[j] = Real(v)
			}
		}
		grams[i] = g
	}
	return newProfile(p, q, leafGrams, grams), nil
}

func collision[L comparable](v L) error {
	return errs.New(errs.CodeLabelCollision, "label %v equals the filler value", v)
}
