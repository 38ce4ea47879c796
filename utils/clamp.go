package utils

import "golang.org/x/exp/constraints"

// Clamp limits t to the interval [lo, hi]. The bounds may be given in either order.
func Clamp[T constraints.Ordered](t, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if t < lo {
		return lo
	}
	if t > hi {
		return hi
	}
	return t
}

// Wrap returns the non-negative remainder of n divided by m.
func Wrap(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}
