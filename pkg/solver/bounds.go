package solver

import (
	"fmt"
	"math"

	"github.com/iwvelando/market-equilibrium/pkg/mathutil"
)

// Bounds holds a per-unknown box constraint Lower[i] <= x[i] <= Upper[i].
// Infinite entries leave that side unconstrained.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Box returns n-dimensional bounds with the same interval on every unknown.
func Box(n int, lower, upper float64) Bounds {
	b := Bounds{Lower: make([]float64, n), Upper: make([]float64, n)}
	for i := 0; i < n; i++ {
		b.Lower[i] = lower
		b.Upper[i] = upper
	}
	return b
}

// Unbounded returns n-dimensional bounds with no constraint on any unknown.
func Unbounded(n int) Bounds {
	return Box(n, math.Inf(-1), math.Inf(1))
}

// Validate returns an error unless the bounds describe a non-empty box of
// dimension n.
func (b Bounds) Validate(n int) error {
	if len(b.Lower) != n || len(b.Upper) != n {
		return fmt.Errorf("bounds dimension (%d, %d) does not match %d unknowns", len(b.Lower), len(b.Upper), n)
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(b.Lower[i]) || math.IsNaN(b.Upper[i]) {
			return fmt.Errorf("bound %d is NaN", i)
		}
		if b.Lower[i] > b.Upper[i] {
			return fmt.Errorf("lower bound %g exceeds upper bound %g for unknown %d", b.Lower[i], b.Upper[i], i)
		}
	}
	return nil
}

// Contains reports whether x lies inside the box, edges included.
func (b Bounds) Contains(x []float64) bool {
	if len(x) != len(b.Lower) || len(x) != len(b.Upper) {
		return false
	}
	for i, v := range x {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

// inset returns the interior box for unknown i: each finite bound pulled a
// relative distance feasibilityStep inward. A box narrower than that
// collapses to its midpoint.
func (b Bounds) inset(i int) (float64, float64) {
	lo, hi := b.Lower[i], b.Upper[i]
	if !math.IsInf(lo, 0) {
		lo += feasibilityStep * math.Max(1, math.Abs(lo))
	}
	if !math.IsInf(hi, 0) {
		hi -= feasibilityStep * math.Max(1, math.Abs(hi))
	}
	if lo > hi {
		mid := b.Lower[i] + (b.Upper[i]-b.Lower[i])/2
		return mid, mid
	}
	return lo, hi
}

// strictlyFeasible clamps x into the interior box in place.
func (b Bounds) strictlyFeasible(x []float64) {
	for i := range x {
		lo, hi := b.inset(i)
		x[i] = mathutil.Clamp(x[i], lo, hi)
	}
}

// stepBack keeps trial strictly inside the box. An unknown whose step would
// leave the interior moves boundaryFraction of the way from x to the
// interior bound instead.
func (b Bounds) stepBack(x, trial []float64) {
	for i := range trial {
		lo, hi := b.inset(i)
		if trial[i] < lo {
			trial[i] = x[i] + boundaryFraction*(lo-x[i])
		} else if trial[i] > hi {
			trial[i] = x[i] + boundaryFraction*(hi-x[i])
		}
		trial[i] = mathutil.Clamp(trial[i], lo, hi)
	}
}

// projectedGradientNorm returns the infinity norm of the gradient after
// zeroing the components that a descent step could not follow because the
// unknown already sits on the interior bound it would cross.
func (b Bounds) projectedGradientNorm(x, g []float64) float64 {
	norm := 0.0
	for i, gi := range g {
		lo, hi := b.inset(i)
		if x[i] <= lo && gi > 0 {
			continue
		}
		if x[i] >= hi && gi < 0 {
			continue
		}
		if a := math.Abs(gi); a > norm {
			norm = a
		}
	}
	return norm
}
