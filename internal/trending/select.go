package trending

import (
	"cmp"
	"slices"
	"time"
)

// Item is anything that can be ranked by trendiness.
type Item interface {
	Score(now time.Time) float64
	Filtered() bool
}

// Select drops filtered and ineligible items, orders the rest by score
// (highest first, ties in input order) and keeps at most limit of them.
// eligible may be nil.
func Select[T Item](items []T, now time.Time, limit int, eligible func(T) bool) []T {
	if limit <= 0 {
		return []T{}
	}

	type scored struct {
		item  T
		score float64
	}

	candidates := make([]scored, 0, len(items))
	for _, it := range items {
		if it.Filtered() {
			continue
		}
		if eligible != nil && !eligible(it) {
			continue
		}
		candidates = append(candidates, scored{item: it, score: it.Score(now)})
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]T, len(candidates))
	for i, c := range candidates {
		out[i] = c.item
	}
	return out
}

// Since returns an eligibility predicate accepting items timestamped at or
// after cutoff.
func Since[T any](cutoff time.Time, ts func(T) time.Time) func(T) bool {
	return func(it T) bool {
		return !ts(it).Before(cutoff)
	}
}
