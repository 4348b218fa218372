// Package compare runs PQGram comparisons over collections of profiles.
//
// Every mode enumerates all of its pairs: Matrix compares every unordered
// pair of one collection (MatrixSize(n) comparisons), Cross every pair of two
// collections (CrossSize(n, m)), and OneToMany one anchor against a
// collection (m). There is no sampling, pruning or early exit, so callers
// bound collection sizes themselves.
//
// Work is spread across a fixed number of workers. Results land in slots
// indexed by pair position, so output order is deterministic and independent
// of scheduling. The context is checked between comparisons.
package compare

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/pqgram"
)

// Pair is the distance between item I of the first collection and item J of
// the second (or of the same collection, in Matrix mode).
type Pair struct {
	I        int     `json:"i"`
	J        int     `json:"j"`
	Distance float64 `json:"distance"`
}

// Match is the distance between the anchor and item Index of the
// collection.
type Match struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

// IndexError identifies the input that failed. Collection is 0 for the
// first (or only) collection and 1 for the second.
type IndexError struct {
	Collection int
	Index      int
	Err        error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("collection %d index %d: %v", e.Collection, e.Index, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Failures lists every failed input of a partial-mode run, in index order.
type Failures []*IndexError

func (f Failures) Error() string {
	parts := make([]string, len(f))
	for i, e := range f {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d inputs failed: %s", len(f), strings.Join(parts, "; "))
}

// Progress is called with the number of completed comparisons (or
// extractions) and the total. It may be called from several goroutines.
type Progress func(done, total int)

// Engine runs batch comparisons. An Engine is safe for concurrent use.
type Engine[L comparable] struct {
	workers  int
	partial  bool
	cmp      *pqgram.Comparator[L]
	progress Progress
}

// Option configures an Engine.
type Option[L comparable] func(*Engine[L])

// WithWorkers sets the number of concurrent workers. Values below 1 mean
// GOMAXPROCS.
func WithWorkers[L comparable](n int) Option[L] {
	return func(e *Engine[L]) { e.workers = n }
}

// WithComparator replaces the default exact, unit-weight comparator.
func WithComparator[L comparable](c *pqgram.Comparator[L]) Option[L] {
	return func(e *Engine[L]) { e.cmp = c }
}

// WithPartial makes profile extraction keep going past failing inputs. The
// failures are returned as Failures and the failing slots are left nil;
// comparisons skip them.
func WithPartial[L comparable]() Option[L] {
	return func(e *Engine[L]) { e.partial = true }
}

// WithProgress registers a progress callback.
func WithProgress[L comparable](fn Progress) Option[L] {
	return func(e *Engine[L]) { e.progress = fn }
}

func New[L comparable](opts ...Option[L]) *Engine[L] {
	e := &Engine[L]{}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if e.cmp == nil {
		e.cmp = pqgram.NewComparator[L]()
	}
	return e
}

// Workers returns the configured worker count.
func (e *Engine[L]) Workers() int { return e.workers }

// Partial reports whether the engine runs in partial mode.
func (e *Engine[L]) Partial() bool { return e.partial }

// MatrixSize is the number of comparisons Matrix performs on n profiles.
func MatrixSize(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// CrossSize is the number of comparisons Cross performs on n and m profiles.
func CrossSize(n, m int) int {
	return n * m
}

// matrixOffset is the slot of pair (i, i+1) in row-major i<j order.
func matrixOffset(i, n int) int {
	return i * (2*n - i - 1) / 2
}

// checkShapes verifies that every non-nil profile shares the shape of the
// first non-nil profile in ref or cols.
func checkShapes[L comparable](cols ...[]*pqgram.Profile[L]) error {
	var ref *pqgram.Profile[L]
	for c, col := range cols {
		for i, p := range col {
			if p == nil {
				continue
			}
			if ref == nil {
				ref = p
				continue
			}
			if !ref.SameShape(p) {
				return &IndexError{Collection: c, Index: i, Err: errs.New(errs.CodeInvalidInput,
					"profile shape p=%d q=%d leaf=%t differs from p=%d q=%d leaf=%t",
					p.P(), p.Q(), p.LeafGrams(), ref.P(), ref.Q(), ref.LeafGrams())}
			}
		}
	}
	return nil
}
