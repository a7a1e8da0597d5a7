package analysis

import (
	"fmt"

	"github.com/iwvelando/market-equilibrium/internal/equilibrium"
	"github.com/iwvelando/market-equilibrium/pkg/constants"
	"github.com/iwvelando/market-equilibrium/pkg/model"
	"github.com/iwvelando/market-equilibrium/pkg/solver"
)

// MonopolyResult holds the monopoly equilibrium and its welfare metrics at
// one asymmetry value.
type MonopolyResult struct {
	Asymmetry float64
	Demand    float64
	Supply    float64
	model.Welfare
	Converged bool
}

// Monopoly solves the reduced two-unknown system at asymmetry a and
// evaluates profit, rider surplus and driver surplus at the solution.
func Monopoly(a float64, opts solver.Options) MonopolyResult {
	guess := []float64{constants.MonopolyGuess, constants.MonopolyGuess}
	bounds := solver.Box(2, constants.ShareLowerBound, constants.ShareUpperBound)
	res := solver.Solve(model.Monopoly(a), guess, bounds, opts)

	sol := model.Pair{Demand: res.X[0], Supply: res.X[1]}
	return MonopolyResult{
		Asymmetry: a,
		Demand:    sol.Demand,
		Supply:    sol.Supply,
		Welfare:   model.MonopolyWelfare(a, sol),
		Converged: res.Converged,
	}
}

// MonopolyAt evaluates the monopoly at a shutdown threshold. It fails fast
// when the threshold was not found.
func MonopolyAt(th equilibrium.Threshold, opts solver.Options) (*MonopolyResult, error) {
	a, err := th.Value()
	if err != nil {
		return nil, fmt.Errorf("monopoly evaluation: %w", err)
	}
	result := Monopoly(a, opts)
	return &result, nil
}
