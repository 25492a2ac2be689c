package trending

import (
	"math/rand/v2"
	"slices"
)

// Sample returns up to n distinct elements of items in random order. The
// input slice is left untouched.
func Sample[T any](items []T, n int, r *rand.Rand) []T {
	if n <= 0 || len(items) == 0 {
		return []T{}
	}
	pool := slices.Clone(items)
	if n > len(pool) {
		n = len(pool)
	}
	// partial Fisher-Yates
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
