// Package interp implements local polynomial interpolation of sampled series.
package interp

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultOrder is the polynomial degree used for ephemeris interpolation.
// Ten 15-minute samples span 2¼ hours of a GEO/IGSO arc; higher orders start
// to ring at the window edges.
const DefaultOrder = 9

var (
	// ErrOutOfRange flags a query outside the sampled span. The returned value
	// is an extrapolation and should be treated as degraded.
	ErrOutOfRange = errors.New("query outside sampled range")

	// ErrTooFewSamples is returned when the series is shorter than order+1.
	ErrTooFewSamples = errors.New("not enough samples for interpolation order")
)

// Window returns the start index of the n consecutive samples centered as
// closely as possible on q. At the series boundaries the window is one-sided.
// times must be strictly increasing and len(times) >= n.
func Window(times []float64, q float64, n int) int {
	idx := sort.SearchFloat64s(times, q)
	start := idx - n/2
	// An odd window has one spare sample; it goes to the side of the nearer
	// neighbour of q.
	if n%2 == 1 && idx > 0 && idx < len(times) && q-times[idx-1] < times[idx]-q {
		start--
	}
	if start < 0 {
		start = 0
	}
	if max := len(times) - n; start > max {
		start = max
	}
	return start
}

// Lagrange evaluates at q the degree-order polynomial through the order+1
// samples nearest q. When q lies outside [times[0], times[len-1]] the
// extrapolated value is returned together with ErrOutOfRange.
func Lagrange(times, values []float64, q float64, order int) (float64, error) {
	if len(times) != len(values) {
		return 0, fmt.Errorf("times and values differ in length: %d != %d", len(times), len(values))
	}
	if order < 1 {
		return 0, fmt.Errorf("invalid interpolation order %d", order)
	}
	n := order + 1
	if len(times) < n {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrTooFewSamples, len(times), n)
	}

	start := Window(times, q, n)
	v := evaluate(times[start:start+n], values[start:start+n], q)

	if q < times[0] || q > times[len(times)-1] {
		return v, fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfRange, q, times[0], times[len(times)-1])
	}
	return v, nil
}

// evaluate computes the Lagrange form Σ yⱼ·Πₘ≠ⱼ (q−xₘ)/(xⱼ−xₘ).
func evaluate(xs, ys []float64, q float64) float64 {
	for j, x := range xs {
		if q == x {
			return ys[j]
		}
	}

	var sum float64
	for j := range xs {
		basis := 1.0
		for m := range xs {
			if m == j {
				continue
			}
			basis *= (q - xs[m]) / (xs[j] - xs[m])
		}
		sum += ys[j] * basis
	}
	return sum
}
