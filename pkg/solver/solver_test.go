package solver

import (
	"math"
	"testing"

	"github.com/iwvelando/market-equilibrium/pkg/mathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadratic(x []float64) []float64 {
	return []float64{x[0]*x[0] - 0.25}
}

func TestSolveFindsInteriorRoot(t *testing.T) {
	res := Solve(quadratic, []float64{1}, Box(1, 0, 1), DefaultOptions())

	require.True(t, res.Converged, "status %s, residual %g", res.Status, res.MaxResidual())
	assert.InDelta(t, 0.5, res.X[0], 1e-6)
	assert.True(t, res.Status.Terminated())
	assert.Greater(t, res.Evaluations, res.Iterations)
}

func TestSolveLinearSystemUnbounded(t *testing.T) {
	sys := func(x []float64) []float64 {
		return []float64{x[0] + x[1] - 3, x[0] - x[1] - 1}
	}
	res := Solve(sys, []float64{0, 0}, Unbounded(2), DefaultOptions())

	require.True(t, res.Converged, "status %s", res.Status)
	assert.InDelta(t, 2, res.X[0], 1e-8)
	assert.InDelta(t, 1, res.X[1], 1e-8)
}

func TestSolveRootOutsideBoxIsNotConverged(t *testing.T) {
	sys := func(x []float64) []float64 {
		return []float64{x[0] + 1}
	}
	res := Solve(sys, []float64{1}, Box(1, 0, 1), DefaultOptions())

	assert.False(t, res.Converged)
	assert.True(t, Box(1, 0, 1).Contains(res.X))
	assert.InDelta(t, 0, res.X[0], 1e-9)
	assert.InDelta(t, 1, res.MaxResidual(), 1e-6)
}

func TestSolveKeepsIteratesOffTheBounds(t *testing.T) {
	// The least-squares minimum lies on x[0] = 0; callers divide by the
	// unknowns, so the returned point must stay strictly inside.
	sys := func(x []float64) []float64 {
		return []float64{x[0] + 1, x[1] - 0.5}
	}
	res := Solve(sys, []float64{1, 1}, Box(2, 0, 1), DefaultOptions())

	assert.Greater(t, res.X[0], 0.0)
	assert.InDelta(t, 0, res.X[0], 1e-9)
	assert.InDelta(t, 0.5, res.X[1], 1e-6)
	assert.True(t, mathutil.IsFinite(1/res.X[0]))
	assert.False(t, res.Converged)
	assert.True(t, res.Status.Terminated(), "status %s", res.Status)
}

func TestSolveRespectsIterationCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxIterations = 1
	res := Solve(quadratic, []float64{1}, Box(1, 0, 1), opts)

	assert.Equal(t, StatusMaxIterations, res.Status)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.True(t, Box(1, 0, 1).Contains(res.X))
}

func TestSolveAvoidsSingularEdge(t *testing.T) {
	// Residual diverges at x = 0; the start sits on that bound.
	sys := func(x []float64) []float64 {
		return []float64{1/x[0] - 4}
	}
	res := Solve(sys, []float64{0}, Box(1, 0, 1), DefaultOptions())

	require.True(t, res.Converged, "status %s", res.Status)
	assert.InDelta(t, 0.25, res.X[0], 1e-6)
}

func TestSolveBadStart(t *testing.T) {
	sys := func(x []float64) []float64 {
		return []float64{math.NaN()}
	}
	res := Solve(sys, []float64{0.5}, Box(1, 0, 1), DefaultOptions())

	assert.Equal(t, StatusBadStart, res.Status)
	assert.False(t, res.Converged)
	assert.Equal(t, []float64{0.5}, res.X)
}

func TestSolveBadInput(t *testing.T) {
	tests := []struct {
		name   string
		x0     []float64
		bounds Bounds
		sys    System
	}{
		{"dimension mismatch", []float64{0.5, 0.5}, Box(1, 0, 1), quadratic},
		{"inverted bounds", []float64{0.5}, Box(1, 1, 0), quadratic},
		{"empty start", nil, Box(0, 0, 1), quadratic},
		{"nil system", []float64{0.5}, Box(1, 0, 1), nil},
		{"empty residual", []float64{0.5}, Box(1, 0, 1), func([]float64) []float64 { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Solve(tt.sys, tt.x0, tt.bounds, DefaultOptions())
			assert.Equal(t, StatusBadInput, res.Status)
			assert.False(t, res.Converged)
		})
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	sys := func(x []float64) []float64 {
		return []float64{x[0]*x[0] + x[1] - 0.5, x[0] - x[1]*x[1]}
	}
	first := Solve(sys, []float64{1, 1}, Box(2, 0, 1), DefaultOptions())
	second := Solve(sys, []float64{1, 1}, Box(2, 0, 1), DefaultOptions())

	assert.Equal(t, first, second)
}

func TestSolveDoesNotMutateStart(t *testing.T) {
	x0 := []float64{1}
	_ = Solve(quadratic, x0, Box(1, 0, 1), DefaultOptions())
	assert.Equal(t, []float64{1}, x0)
}

func TestOptionsNormalize(t *testing.T) {
	opts := Options{MaxIterations: -1, FTol: 0, XTol: 1e-3}
	opts.Normalize()

	d := DefaultOptions()
	assert.Equal(t, d.MaxIterations, opts.MaxIterations)
	assert.Equal(t, d.FTol, opts.FTol)
	assert.Equal(t, 1e-3, opts.XTol)
	assert.Equal(t, d.GTol, opts.GTol)
	assert.Equal(t, d.ResidualTolerance, opts.ResidualTolerance)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "gradient", StatusGradient.String())
	assert.Equal(t, "max_iterations", StatusMaxIterations.String())
	assert.Equal(t, "unknown", Status(99).String())
	assert.False(t, StatusMaxIterations.Terminated())
	assert.False(t, StatusBadStart.Terminated())
}

func TestStepBackStaysInside(t *testing.T) {
	b := Box(3, 0, 1)
	x := []float64{0.2, 0.5, 0.9}
	trial := []float64{-0.3, 0.4, 1.7}
	b.stepBack(x, trial)

	assert.InDelta(t, 0.2*(1-boundaryFraction), trial[0], 1e-9)
	assert.Equal(t, 0.4, trial[1])
	assert.InDelta(t, 0.9+boundaryFraction*0.1, trial[2], 1e-9)
	for _, v := range trial {
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestInset(t *testing.T) {
	lo, hi := Box(1, 0, 1).inset(0)
	assert.Greater(t, lo, 0.0)
	assert.Less(t, hi, 1.0)

	lo, hi = Unbounded(1).inset(0)
	assert.True(t, math.IsInf(lo, -1))
	assert.True(t, math.IsInf(hi, 1))

	lo, hi = Box(1, 2, 2).inset(0)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 2.0, hi)
}
