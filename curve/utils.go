package curve

import "sort"

// findBracket returns the indices of the two points that bracket target in a sorted
// slice. Outside the range both indices point at the nearest edge.
//
// This uses binary search for O(log n) complexity instead of O(n) linear search.
func findBracket(xs []float64, target float64) (lo, hi int) {
	n := len(xs)
	if n == 0 {
		return -1, -1
	}
	// first index with xs[i] >= target
	idx := sort.SearchFloat64s(xs, target)
	switch {
	case idx == 0:
		return 0, 0
	case idx >= n:
		return n - 1, n - 1
	case xs[idx] == target:
		return idx, idx
	}
	return idx - 1, idx
}

// interpolate evaluates the piecewise-linear function through (xs, ys) at x with flat
// extrapolation. xs must be sorted ascending and non-empty.
func interpolate(xs, ys []float64, x float64) float64 {
	lo, hi := findBracket(xs, x)
	if lo == hi {
		return ys[lo]
	}
	w := (x - xs[lo]) / (xs[hi] - xs[lo])
	return ys[lo] + w*(ys[hi]-ys[lo])
}
