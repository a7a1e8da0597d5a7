// Package analysis post-processes a finished sweep: derivative conditions at
// a multi-homing equilibrium, monopoly welfare at each regime's shutdown
// threshold, and the pipeline that produces the full report.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/market-equilibrium/internal/equilibrium"
	"github.com/iwvelando/market-equilibrium/pkg/model"
	"github.com/iwvelando/market-equilibrium/pkg/solver"
)

var (
	// ErrWrongRegime is returned when a derivative analysis is asked of a
	// record that is not multi-homing.
	ErrWrongRegime = errors.New("derivative analysis requires a multi-homing equilibrium")

	// ErrNotConverged is returned when an input equilibrium or one of the
	// derivative systems did not converge.
	ErrNotConverged = errors.New("solve did not converge")
)

// DerivativeResult holds the first and second derivatives of demand and
// supply with respect to the asymmetry parameter at a base equilibrium.
type DerivativeResult struct {
	Asymmetry       float64
	Base            model.Pair
	Discriminant    float64
	First           model.Pair
	Second          model.Pair
	FirstConverged  bool
	SecondConverged bool
	// ProfitDerivative is NaN unless both derivative systems converged.
	ProfitDerivative float64
}

// Converged reports whether both derivative systems converged.
func (r DerivativeResult) Converged() bool {
	return r.FirstConverged && r.SecondConverged
}

// Derivatives solves the two derivative systems at the side-1 demand and
// supply of rec. The result is returned whenever rec is usable, even if a
// derivative system fails; the error then wraps ErrNotConverged.
func Derivatives(rec equilibrium.Record, opts solver.Options) (*DerivativeResult, error) {
	if rec.Regime != equilibrium.Multi {
		return nil, fmt.Errorf("%s-homing record at asymmetry %g: %w", rec.Regime, rec.Asymmetry, ErrWrongRegime)
	}
	if !rec.Converged {
		return nil, fmt.Errorf("base equilibrium at asymmetry %g: %w", rec.Asymmetry, ErrNotConverged)
	}

	base := model.Pair{Demand: rec.Demand1, Supply: rec.Supply1}
	result := &DerivativeResult{
		Asymmetry:        rec.Asymmetry,
		Base:             base,
		Discriminant:     model.Discriminant(base),
		ProfitDerivative: math.NaN(),
	}

	first := solver.Solve(model.FirstDerivative(base), []float64{0, 0}, solver.Unbounded(2), opts)
	result.First = model.Pair{Demand: first.X[0], Supply: first.X[1]}
	result.FirstConverged = first.Converged

	second := solver.Solve(model.SecondDerivative(base, result.First), []float64{0, 0}, solver.Unbounded(2), opts)
	result.Second = model.Pair{Demand: second.X[0], Supply: second.X[1]}
	result.SecondConverged = second.Converged

	if !result.FirstConverged {
		return result, fmt.Errorf("first derivative system (%s): %w", first.Status, ErrNotConverged)
	}
	if !result.SecondConverged {
		return result, fmt.Errorf("second derivative system (%s): %w", second.Status, ErrNotConverged)
	}
	result.ProfitDerivative = model.ProfitDerivative(base, result.Second)
	return result, nil
}
