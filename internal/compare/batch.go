package compare

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/pqgram/internal/pqgram"
)

// slot is one result position; ok is false when the pair was skipped
// because a profile was missing.
type slot struct {
	d  float64
	ok bool
}

// tracker counts completed work and reports it through the engine's
// Progress callback.
type tracker struct {
	done  atomic.Int64
	total int
	fn    Progress
}

func (t *tracker) add(n int) {
	if t.fn == nil || n == 0 {
		return
	}
	t.fn(int(t.done.Add(int64(n))), t.total)
}

func (e *Engine[L]) tracker(total int) *tracker {
	return &tracker{total: total, fn: e.progress}
}

// Matrix compares every unordered pair (i, j), i < j, of profiles. Results
// are in row-major order: (0,1), (0,2), ..., (1,2), ... Pairs involving a nil
// profile are omitted.
func (e *Engine[L]) Matrix(ctx context.Context, profiles []*pqgram.Profile[L]) ([]Pair, error) {
	if err := checkShapes(profiles); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(profiles)
	slots := make([]slot, MatrixSize(n))
	tr := e.tracker(len(slots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n-1; i++ {
		g.Go(func() error {
			base := matrixOffset(i, n)
			for j := i + 1; j < n; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if profiles[i] != nil && profiles[j] != nil {
					slots[base+j-i-1] = slot{d: e.cmp.Distance(profiles[i], profiles[j]), ok: true}
				}
			}
			tr.add(n - i - 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Pair, 0, len(slots))
	k := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			if s := slots[k]; s.ok {
				out = append(out, Pair{I: i, J: j, Distance: s.d})
			}
			k++
		}
	}
	return out, nil
}

// Cross compares every profile of a with every profile of b. Results are in
// row-major order: (0,0), (0,1), ..., (1,0), ... Pairs involving a nil
// profile are omitted.
func (e *Engine[L]) Cross(ctx context.Context, a, b []*pqgram.Profile[L]) ([]Pair, error) {
	if err := checkShapes(a, b); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, m := len(a), len(b)
	slots := make([]slot, CrossSize(n, m))
	tr := e.tracker(len(slots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range n {
		g.Go(func() error {
			for j := range m {
				if err := ctx.Err(); err != nil {
					return err
				}
				if a[i] != nil && b[j] != nil {
					slots[i*m+j] = slot{d: e.cmp.Distance(a[i], b[j]), ok: true}
				}
			}
			tr.add(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Pair, 0, len(slots))
	for k, s := range slots {
		if s.ok {
			out = append(out, Pair{I: k / m, J: k % m, Distance: s.d})
		}
	}
	return out, nil
}

// OneToMany compares one against every profile of many. Results are in the
// order of many; indices refer to positions in many. An empty many yields
// no results.
func (e *Engine[L]) OneToMany(ctx context.Context, one *pqgram.Profile[L], many []*pqgram.Profile[L]) ([]Match, error) {
	if err := checkShapes([]*pqgram.Profile[L]{one}, many); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := len(many)
	slots := make([]slot, m)
	tr := e.tracker(m)

	chunk := max(1, (m+e.workers-1)/e.workers)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for lo := 0; lo < m; lo += chunk {
		hi := min(lo+chunk, m)
		g.Go(func() error {
			for j := lo; j < hi; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if one != nil && many[j] != nil {
					slots[j] = slot{d: e.cmp.Distance(one, many[j]), ok: true}
				}
			}
			tr.add(hi - lo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Match, 0, m)
	for j, s := range slots {
		if s.ok {
			out = append(out, Match{Index: j, Distance: s.d})
		}
	}
	return out, nil
}
