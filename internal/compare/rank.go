package compare

import (
	"cmp"
	"context"
	"slices"

	"github.com/dgallion1/pqgram/internal/pqgram"
)

// SortPairs orders pairs by ascending distance. Ties keep their enumeration
// order.
func SortPairs(pairs []Pair) {
	slices.SortStableFunc(pairs, func(a, b Pair) int { return cmp.Compare(a.Distance, b.Distance) })
}

// SortMatches orders matches by ascending distance. Ties keep their
// enumeration order.
func SortMatches(matches []Match) {
	slices.SortStableFunc(matches, func(a, b Match) int { return cmp.Compare(a.Distance, b.Distance) })
}

// Nearest returns many ranked by similarity to one, most similar first.
func (e *Engine[L]) Nearest(ctx context.Context, one *pqgram.Profile[L], many []*pqgram.Profile[L]) ([]Match, error) {
	matches, err := e.OneToMany(ctx, one, many)
	if err != nil {
		return nil, err
	}
	SortMatches(matches)
	return matches, nil
}

// BestPairsInSet returns every pair of profiles, most similar first.
func (e *Engine[L]) BestPairsInSet(ctx context.Context, profiles []*pqgram.Profile[L]) ([]Pair, error) {
	pairs, err := e.Matrix(ctx, profiles)
	if err != nil {
		return nil, err
	}
	SortPairs(pairs)
	return pairs, nil
}

// BestPairsBetween returns every pair across a and b, most similar first.
func (e *Engine[L]) BestPairsBetween(ctx context.Context, a, b []*pqgram.Profile[L]) ([]Pair, error) {
	pairs, err := e.Cross(ctx, a, b)
	if err != nil {
		return nil, err
	}
	SortPairs(pairs)
	return pairs, nil
}

// Top returns at most k matches. k <= 0 returns all of them.
func Top(matches []Match, k int) []Match {
	if k <= 0 || k >= len(matches) {
		return matches
	}
	return matches[:k]
}
