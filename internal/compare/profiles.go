package compare

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/pqgram/internal/pqgram"
	"github.com/dgallion1/pqgram/internal/tree"
)

// Profiles extracts the (p, q) profile of every tree, once per tree. The
// shape is validated before any work starts. collection is the number
// reported in IndexError.
//
// By default the first failure cancels the run and is returned as an
// *IndexError. In partial mode every failure is collected into Failures and
// the corresponding slot of the result is nil.
func (e *Engine[L]) Profiles(ctx context.Context, collection int, trees []*tree.Tree[L], p, q int, opts ...pqgram.Option) ([]*pqgram.Profile[L], error) {
	return run(ctx, e, collection, len(trees), p, q, func(i int) (*pqgram.Profile[L], error) {
		return pqgram.Extract(trees[i], p, q, opts...)
	})
}

// BuildProfiles builds a tree from every source with lb and extracts its
// profile. Trees are dropped as soon as their profile exists. Failure
// handling follows Engine.Profiles.
func BuildProfiles[K any, L comparable](ctx context.Context, e *Engine[L], collection int, srcs []tree.Node[K], lb tree.Labeler[K, L], p, q int, opts ...pqgram.Option) ([]*pqgram.Profile[L], error) {
	return run(ctx, e, collection, len(srcs), p, q, func(i int) (*pqgram.Profile[L], error) {
		t, err := tree.Build(srcs[i], lb)
		if err != nil {
			return nil, err
		}
		return pqgram.Extract(t, p, q, opts...)
	})
}

// run extracts n profiles through fn on the engine's workers.
func run[L comparable](ctx context.Context, e *Engine[L], collection, n, p, q int, fn func(i int) (*pqgram.Profile[L], error)) ([]*pqgram.Profile[L], error) {
	if err := pqgram.ValidateShape(p, q); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*pqgram.Profile[L], n)
	tr := e.tracker(n)

	var (
		mu       sync.Mutex
		failures Failures
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pr, err := fn(i)
			if err != nil {
				ie := &IndexError{Collection: collection, Index: i, Err: err}
				if !e.partial {
					return ie
				}
				mu.Lock()
				failures = append(failures, ie)
				mu.Unlock()
			} else {
				out[i] = pr
			}
			tr.add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		slices.SortFunc(failures, func(a, b *IndexError) int { return a.Index - b.Index })
		return out, failures
	}
	return out, nil
}
