// Package equilibrium sweeps the asymmetry parameter, solving the
// single-homing and multi-homing FOC systems at every step, and locates the
// shutdown threshold in the resulting tables.
package equilibrium

import (
	"fmt"

	"github.com/iwvelando/market-equilibrium/pkg/constants"
	"github.com/iwvelando/market-equilibrium/pkg/model"
	"github.com/iwvelando/market-equilibrium/pkg/solver"
)

// Regime is a competitive regime of the two-sided market.
type Regime string

const (
	Single Regime = constants.RegimeSingle
	Multi  Regime = constants.RegimeMulti
)

// Regimes lists every regime in reporting order.
var Regimes = []Regime{Single, Multi}

// Side selects one side of the market.
type Side int

const (
	Side1 Side = 1
	Side2 Side = 2
)

// ParseSide converts a configured side number into a Side.
func ParseSide(n int) (Side, error) {
	switch Side(n) {
	case Side1, Side2:
		return Side(n), nil
	}
	return 0, fmt.Errorf("market side must be 1 or 2, got %d", n)
}

// Record is one solved equilibrium. Field order matches the exported tables.
type Record struct {
	Asymmetry float64
	Demand1   float64
	Supply1   float64
	Demand2   float64
	Supply2   float64
	Profit1   float64
	Profit2   float64
	Regime    Regime
	Converged bool
}

// Profit returns the profit of the given side.
func (r Record) Profit(side Side) float64 {
	if side == Side1 {
		return r.Profit1
	}
	return r.Profit2
}

// Unknowns returns (d1, s1, d2, s2) in the order the FOC systems expect.
func (r Record) Unknowns() []float64 {
	return []float64{r.Demand1, r.Supply1, r.Demand2, r.Supply2}
}

// Table is the ordered sweep output for one regime.
type Table struct {
	Regime  Regime
	Records []Record
}

// Tables holds one table per regime. The two are never aliased.
type Tables struct {
	Single Table
	Multi  Table
}

// Table returns the table for regime.
func (t *Tables) Table(regime Regime) Table {
	if regime == Single {
		return t.Single
	}
	return t.Multi
}

// System returns the FOC system of regime at asymmetry a.
func System(regime Regime, a float64) solver.System {
	if regime == Single {
		return model.Single(a)
	}
	return model.Multi(a)
}

// Profits evaluates both sides' profits of regime at the solution x.
func Profits(regime Regime, a float64, x []float64) (float64, float64) {
	if regime == Single {
		return model.SingleProfits(a, x)
	}
	return model.MultiProfits(a, x)
}

// SolveStep solves regime at asymmetry a from the canonical initial guess
// within [0, 1]^4 and returns the resulting record.
func SolveStep(regime Regime, a float64, opts solver.Options) (Record, solver.Result) {
	guess := []float64{
		constants.CompetitionGuess,
		constants.CompetitionGuess,
		constants.CompetitionGuess,
		constants.CompetitionGuess,
	}
	bounds := solver.Box(len(guess), constants.ShareLowerBound, constants.ShareUpperBound)
	res := solver.Solve(System(regime, a), guess, bounds, opts)

	x := res.X
	p1, p2 := Profits(regime, a, x)
	return Record{
		Asymmetry: a,
		Demand1:   x[0],
		Supply1:   x[1],
		Demand2:   x[2],
		Supply2:   x[3],
		Profit1:   p1,
		Profit2:   p2,
		Regime:    regime,
		Converged: res.Converged,
	}, res
}
