// Package solver finds roots of small nonlinear systems inside a box by
// minimizing half the squared residual norm with a projected
// Levenberg-Marquardt iteration.
//
// A solve never fails loudly. Whatever happens, the caller gets the best
// iterate found, strictly inside any finite bound, together with a
// termination Status and a Converged flag.
package solver

import (
	"errors"
	"math"

	"github.com/iwvelando/market-equilibrium/pkg/constants"
	"github.com/iwvelando/market-equilibrium/pkg/mathutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// feasibilityStep is the relative offset that separates every iterate
	// from the bounds.
	feasibilityStep = 1e-10

	// boundaryFraction is how far a step heading out of the box may travel
	// toward the bound.
	boundaryFraction = 0.995

	// zeroCost is the cost below which the iterate is treated as an exact root.
	zeroCost = 1e-30

	initialDamping = 1e-3
	minDamping     = 1e-15
	maxDamping     = 1e16
)

var sqrtEpsilon = math.Sqrt(2.220446049250313e-16)

// System maps a vector of unknowns to a residual vector that vanishes at a root.
type System func(x []float64) []float64

// Status describes why a solve stopped.
type Status int

const (
	// StatusMaxIterations means the iteration budget ran out.
	StatusMaxIterations Status = iota
	// StatusGradient means the projected gradient fell below GTol.
	StatusGradient
	// StatusCost means the cost stopped decreasing (FTol) or reached zero.
	StatusCost
	// StatusStep means the accepted step fell below XTol.
	StatusStep
	// StatusStalled means no damping level produced a better iterate.
	StatusStalled
	// StatusBadStart means the residual was not finite at the start point.
	StatusBadStart
	// StatusBadInput means the start point, bounds or residual dimension were unusable.
	StatusBadInput
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusMaxIterations:
		return "max_iterations"
	case StatusGradient:
		return "gradient"
	case StatusCost:
		return "cost"
	case StatusStep:
		return "step"
	case StatusStalled:
		return "stalled"
	case StatusBadStart:
		return "bad_start"
	case StatusBadInput:
		return "bad_input"
	default:
		return "unknown"
	}
}

// Terminated reports whether the solver met one of its own stopping
// criteria, as opposed to running out of budget or being unable to start.
func (s Status) Terminated() bool {
	switch s {
	case StatusGradient, StatusCost, StatusStep, StatusStalled:
		return true
	}
	return false
}

// Options controls the iteration budget and stopping criteria.
type Options struct {
	MaxIterations     int     `mapstructure:"maxIterations"`
	FTol              float64 `mapstructure:"fTol"`
	XTol              float64 `mapstructure:"xTol"`
	GTol              float64 `mapstructure:"gTol"`
	ResidualTolerance float64 `mapstructure:"residualTolerance"`
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{
		MaxIterations:     constants.DefaultMaxIterations,
		FTol:              constants.DefaultFTol,
		XTol:              constants.DefaultXTol,
		GTol:              constants.DefaultGTol,
		ResidualTolerance: constants.DefaultResidualTolerance,
	}
}

// Normalize replaces unset or non-positive fields with defaults.
func (o *Options) Normalize() {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.FTol <= 0 {
		o.FTol = d.FTol
	}
	if o.XTol <= 0 {
		o.XTol = d.XTol
	}
	if o.GTol <= 0 {
		o.GTol = d.GTol
	}
	if o.ResidualTolerance <= 0 {
		o.ResidualTolerance = d.ResidualTolerance
	}
}

// Result is the outcome of a single solve.
type Result struct {
	X           []float64
	Residuals   []float64
	Cost        float64
	Iterations  int
	Evaluations int
	Status      Status
	// Converged is set when the solver stopped on its own criteria and every
	// residual is within ResidualTolerance of zero.
	Converged bool
}

// MaxResidual returns the largest absolute residual at X.
func (r Result) MaxResidual() float64 {
	return mathutil.MaxAbs(r.Residuals)
}

type problem struct {
	sys         System
	bounds      Bounds
	m           int
	evaluations int
}

// eval evaluates the system on a private copy of x. A residual of the wrong
// length is reported as non-finite.
func (p *problem) eval(x []float64) ([]float64, bool) {
	p.evaluations++
	r := p.sys(append([]float64(nil), x...))
	if len(r) != p.m {
		return r, false
	}
	return r, mathutil.AllFinite(r)
}

// jacobian builds a finite-difference Jacobian at x. Each column steps
// forward unless that would leave the box, in which case it steps backward.
func (p *problem) jacobian(x, r []float64) *mat.Dense {
	n := len(x)
	jac := mat.NewDense(p.m, n, nil)
	xt := append([]float64(nil), x...)
	for j := 0; j < n; j++ {
		h := sqrtEpsilon * math.Max(1, math.Abs(x[j]))
		if x[j]+h > p.bounds.Upper[j] {
			h = -h
		}
		xt[j] = x[j] + h
		rt, ok := p.eval(xt)
		if !ok && x[j]-h >= p.bounds.Lower[j] && x[j]-h <= p.bounds.Upper[j] {
			h = -h
			xt[j] = x[j] + h
			rt, ok = p.eval(xt)
		}
		step := xt[j] - x[j]
		xt[j] = x[j]
		if !ok || step == 0 {
			continue
		}
		for i := 0; i < p.m; i++ {
			jac.Set(i, j, (rt[i]-r[i])/step)
		}
	}
	return jac
}

func halfSquaredNorm(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}

// Solve searches for a root of sys starting from x0 while keeping every
// unknown inside bounds. It stops after opts.MaxIterations iterations at the
// latest.
func Solve(sys System, x0 []float64, bounds Bounds, opts Options) Result {
	opts.Normalize()
	n := len(x0)
	x := append([]float64(nil), x0...)
	if n == 0 || sys == nil || bounds.Validate(n) != nil {
		return Result{X: x, Cost: math.NaN(), Status: StatusBadInput}
	}

	bounds.strictlyFeasible(x)
	p := &problem{sys: sys, bounds: bounds}
	r := sys(append([]float64(nil), x...))
	p.evaluations++
	p.m = len(r)
	if p.m == 0 {
		return Result{X: x, Cost: math.NaN(), Evaluations: p.evaluations, Status: StatusBadInput}
	}
	if !mathutil.AllFinite(r) {
		return Result{X: x, Residuals: r, Cost: math.NaN(), Evaluations: p.evaluations, Status: StatusBadStart}
	}

	cost := halfSquaredNorm(r)
	jac := p.jacobian(x, r)
	damping := initialDamping
	growth := 2.0
	status := StatusMaxIterations

	iter := 0
	for ; iter < opts.MaxIterations; iter++ {
		if cost <= zeroCost {
			status = StatusCost
			break
		}

		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(p.m, append([]float64(nil), r...)))
		if bounds.projectedGradientNorm(x, grad.RawVector().Data) <= opts.GTol {
			status = StatusGradient
			break
		}

		trial, ok := dampedStep(jac, &grad, x, damping, bounds)
		var rTrial []float64
		if ok {
			rTrial, ok = p.eval(trial)
		}
		if !ok || halfSquaredNorm(rTrial) >= cost {
			damping *= growth
			growth *= 2
			if damping > maxDamping {
				status = StatusStalled
				break
			}
			continue
		}

		stepNorm := floats.Distance(trial, x, 2)
		prevCost := cost
		x, r = trial, rTrial
		cost = halfSquaredNorm(r)
		if prevCost-cost <= opts.FTol*prevCost {
			status = StatusCost
			iter++
			break
		}
		if stepNorm <= opts.XTol*(opts.XTol+floats.Norm(x, 2)) {
			status = StatusStep
			iter++
			break
		}
		jac = p.jacobian(x, r)
		damping = math.Max(damping/3, minDamping)
		growth = 2
	}

	return Result{
		X:           x,
		Residuals:   r,
		Cost:        cost,
		Iterations:  iter,
		Evaluations: p.evaluations,
		Status:      status,
		Converged:   status.Terminated() && mathutil.WithinTolerance(mathutil.MaxAbs(r), 0, opts.ResidualTolerance),
	}
}

// dampedStep solves (JᵀJ + λ·diag(JᵀJ))δ = Jᵀr and returns x - δ stepped
// back into the interior of the box. ok is false when the damped system
// could not be solved or the step does not move.
func dampedStep(jac *mat.Dense, grad *mat.VecDense, x []float64, damping float64, bounds Bounds) ([]float64, bool) {
	n := len(x)
	var normal mat.Dense
	normal.Mul(jac.T(), jac)
	scale := diagonalScale(&normal)
	for i := 0; i < n; i++ {
		normal.Set(i, i, normal.At(i, i)+damping*scale[i])
	}

	var delta mat.VecDense
	if err := delta.SolveVec(&normal, grad); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, false
		}
	}

	trial := make([]float64, n)
	for i := 0; i < n; i++ {
		trial[i] = x[i] - delta.AtVec(i)
	}
	if !mathutil.AllFinite(trial) {
		return nil, false
	}
	bounds.stepBack(x, trial)
	if floats.Equal(trial, x) {
		return nil, false
	}
	return trial, true
}

// diagonalScale returns the diagonal of JᵀJ with zero columns lifted to a
// small fraction of the largest entry so the damped system stays solvable.
func diagonalScale(normal *mat.Dense) []float64 {
	n, _ := normal.Dims()
	scale := make([]float64, n)
	max := 0.0
	for i := 0; i < n; i++ {
		scale[i] = normal.At(i, i)
		max = math.Max(max, scale[i])
	}
	floor := 1e-12 * max
	if max == 0 {
		floor = 1
	}
	for i := range scale {
		scale[i] = math.Max(scale[i], floor)
	}
	return scale
}
