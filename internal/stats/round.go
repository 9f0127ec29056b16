package stats

import (
	"math"
	"sort"
)

// round3 rounds x to 3 fractional digits, half away from zero on the scaled
// value. Every stored time and percentage goes through it.
func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// median returns the exact median of values without reordering them.
// It returns 0 for an empty slice.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
