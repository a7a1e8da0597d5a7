// Package testutil provides common utility functions for testing.
package testutil

import (
	"errors"
	"fmt"

	"github.com/iwvelando/market-equilibrium/internal/analysis"
	"github.com/iwvelando/market-equilibrium/internal/config"
	"github.com/iwvelando/market-equilibrium/internal/equilibrium"
	"github.com/iwvelando/market-equilibrium/pkg/model"
)

// FindRecord finds the first record at the given asymmetry.
// Returns a pointer into records if found, nil otherwise.
func FindRecord(records []equilibrium.Record, asymmetry float64) *equilibrium.Record {
	for i := range records {
		if records[i].Asymmetry == asymmetry {
			return &records[i]
		}
	}
	return nil
}

// SampleReport builds a small hand-made report without running the solver.
// The single-homing table has a shutdown threshold at 0.9, the multi-homing
// table has none.
func SampleReport() *analysis.Report {
	sweep := config.SweepConfig{InitialAsymmetry: 1, StepSize: 0.1, Steps: 2}
	single := equilibrium.Table{Regime: equilibrium.Single, Records: []equilibrium.Record{
		{Asymmetry: 1, Demand1: 0.2, Supply1: 0.1, Demand2: 0.25, Supply2: 0.12, Profit1: 0.01, Profit2: 0.002, Regime: equilibrium.Single, Converged: true},
		{Asymmetry: 0.9, Demand1: 0.21, Supply1: 0.11, Demand2: 0.24, Supply2: 0.11, Profit1: 0.02, Profit2: -0.001, Regime: equilibrium.Single, Converged: false},
	}}
	multi := equilibrium.Table{Regime: equilibrium.Multi, Records: []equilibrium.Record{
		{Asymmetry: 1, Demand1: 0.18, Supply1: 0.09, Demand2: 0.22, Supply2: 0.1, Profit1: 0.03, Profit2: 0.004, Regime: equilibrium.Multi, Converged: true},
		{Asymmetry: 0.9, Demand1: 0.19, Supply1: 0.1, Demand2: 0.21, Supply2: 0.1, Profit1: 0.031, Profit2: 0.005, Regime: equilibrium.Multi, Converged: true},
	}}

	singleThreshold := equilibrium.ShutdownThreshold(single, equilibrium.Side2)
	multiThreshold := equilibrium.ShutdownThreshold(multi, equilibrium.Side2)
	_, multiErr := multiThreshold.Value()

	return &analysis.Report{
		RunID:  "00000000-0000-4000-8000-000000000000",
		Sweep:  sweep,
		Tables: &equilibrium.Tables{Single: single, Multi: multi},
		Regimes: []analysis.RegimeSummary{
			{
				Regime:    equilibrium.Single,
				Converged: single.ConvergedCount(),
				Threshold: singleThreshold,
				Monopoly: &analysis.MonopolyResult{
					Asymmetry: singleThreshold.Asymmetry,
					Demand:    0.3,
					Supply:    0.35,
					Welfare:   model.MonopolyWelfare(singleThreshold.Asymmetry, model.Pair{Demand: 0.3, Supply: 0.35}),
					Converged: true,
				},
			},
			{
				Regime:      equilibrium.Multi,
				Converged:   multi.ConvergedCount(),
				Threshold:   multiThreshold,
				MonopolyErr: fmt.Errorf("monopoly evaluation: %w", multiErr),
			},
		},
		DerivativesErr: errors.New("derivative analysis skipped"),
	}
}
