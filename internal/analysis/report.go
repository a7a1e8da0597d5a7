package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/iwvelando/market-equilibrium/internal/config"
	"github.com/iwvelando/market-equilibrium/internal/equilibrium"
	"go.uber.org/zap"
)

// RegimeSummary collects the post-sweep results for one regime.
type RegimeSummary struct {
	Regime    equilibrium.Regime
	Converged int
	Threshold equilibrium.Threshold
	Monopoly  *MonopolyResult
	// MonopolyErr is set when the monopoly could not be evaluated, e.g.
	// because the regime has no shutdown threshold.
	MonopolyErr error
}

// Report is the complete output of one run.
type Report struct {
	RunID          string
	Sweep          config.SweepConfig
	Tables         *equilibrium.Tables
	Regimes        []RegimeSummary
	Derivatives    *DerivativeResult
	DerivativesErr error
}

// Summary returns the summary for regime.
func (r *Report) Summary(regime equilibrium.Regime) (RegimeSummary, bool) {
	for _, s := range r.Regimes {
		if s.Regime == regime {
			return s, true
		}
	}
	return RegimeSummary{}, false
}

// Run sweeps both regimes and derives the thresholds, the derivative
// conditions at the last converged multi-homing record and the monopoly
// metrics from the tables. Analysis failures are
// recorded in the report; only an invalid configuration or a cancelled
// sweep returns an error.
func Run(ctx context.Context, logger *zap.Logger, conf config.Configuration) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	side, err := equilibrium.ParseSide(conf.Analysis.ThresholdSide)
	if err != nil {
		return nil, err
	}

	sweeper, err := equilibrium.NewSweeper(logger, conf.Sweep, conf.Solver)
	if err != nil {
		return nil, err
	}
	tables, err := sweeper.Run(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:  uuid.NewString(),
		Sweep:  conf.Sweep,
		Tables: tables,
	}

	for _, regime := range equilibrium.Regimes {
		table := tables.Table(regime)
		summary := RegimeSummary{
			Regime:    regime,
			Converged: table.ConvergedCount(),
			Threshold: equilibrium.ShutdownThreshold(table, side),
		}
		summary.Monopoly, summary.MonopolyErr = MonopolyAt(summary.Threshold, conf.Solver)
		if summary.MonopolyErr != nil {
			logger.Error("monopoly evaluation failed",
				zap.String("op", "analysis.Run"),
				zap.String("regime", string(regime)),
				zap.Error(summary.MonopolyErr),
			)
		} else {
			logger.Info("shutdown threshold located",
				zap.String("op", "analysis.Run"),
				zap.String("regime", string(regime)),
				zap.Int("side", int(side)),
				zap.Float64("threshold", summary.Threshold.Asymmetry),
				zap.Bool("monopolyConverged", summary.Monopoly.Converged),
			)
		}
		report.Regimes = append(report.Regimes, summary)
	}

	if base, ok := tables.Multi.LastConverged(); ok {
		report.Derivatives, report.DerivativesErr = Derivatives(base, conf.Solver)
	} else {
		report.DerivativesErr = fmt.Errorf("no converged multi-homing record: %w", ErrNotConverged)
	}
	if report.DerivativesErr != nil {
		logger.Warn("derivative analysis incomplete",
			zap.String("op", "analysis.Run"),
			zap.Error(report.DerivativesErr),
		)
	} else {
		logger.Info("derivative analysis finished",
			zap.String("op", "analysis.Run"),
			zap.Float64("asymmetry", report.Derivatives.Asymmetry),
			zap.Float64("profitDerivative", report.Derivatives.ProfitDerivative),
		)
	}

	logger.Info("analysis finished",
		zap.String("op", "analysis.Run"),
		zap.String("runID", report.RunID),
	)
	return report, nil
}

// String renders a one-line description of the regime summary.
func (s RegimeSummary) String() string {
	return fmt.Sprintf("%s: %d converged, threshold %s", s.Regime, s.Converged, s.Threshold)
}
