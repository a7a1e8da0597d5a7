package equilibrium

import (
	"context"
	"fmt"
	"runtime"

	"github.com/iwvelando/market-equilibrium/internal/config"
	"github.com/iwvelando/market-equilibrium/pkg/solver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweeper solves both regimes at every step of the asymmetry sweep.
// Steps are independent and run on a bounded pool of workers; each writes
// only its own index.
type Sweeper struct {
	logger *zap.Logger
	sweep  config.SweepConfig
	opts   solver.Options
}

// NewSweeper constructs a Sweeper for the provided sweep and solver settings.
func NewSweeper(logger *zap.Logger, sweep config.SweepConfig, opts solver.Options) (*Sweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sweep.Steps <= 0 {
		return nil, fmt.Errorf("sweep steps must be positive, got %d", sweep.Steps)
	}
	if !(sweep.StepSize > 0) {
		return nil, fmt.Errorf("sweep step size must be positive, got %v", sweep.StepSize)
	}
	if sweep.Workers < 0 {
		return nil, fmt.Errorf("sweep workers must not be negative, got %d", sweep.Workers)
	}
	opts.Normalize()
	return &Sweeper{logger: logger, sweep: sweep, opts: opts}, nil
}

// AsymmetryAt returns the asymmetry value of step i, a_0 - i*step.
func (s *Sweeper) AsymmetryAt(i int) float64 {
	return s.sweep.AsymmetryAt(i)
}

// Run executes the sweep. It returns an error only when ctx is cancelled;
// steps that fail to converge are kept and flagged.
func (s *Sweeper) Run(ctx context.Context) (*Tables, error) {
	n := s.sweep.Steps
	single := make([]Record, n)
	multi := make([]Record, n)

	workers := s.sweep.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	s.logger.Info("starting asymmetry sweep",
		zap.String("op", "equilibrium.Run"),
		zap.Float64("initialAsymmetry", s.sweep.InitialAsymmetry),
		zap.Float64("stepSize", s.sweep.StepSize),
		zap.Int("steps", n),
		zap.Int("workers", workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := s.AsymmetryAt(i)
			single[i] = s.solve(Single, i, a)
			multi[i] = s.solve(Multi, i, a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep aborted: %w", err)
	}

	tables := &Tables{
		Single: Table{Regime: Single, Records: single},
		Multi:  Table{Regime: Multi, Records: multi},
	}
	for _, regime := range Regimes {
		table := tables.Table(regime)
		s.logger.Info("sweep finished",
			zap.String("op", "equilibrium.Run"),
			zap.String("regime", string(regime)),
			zap.Int("records", len(table.Records)),
			zap.Int("converged", table.ConvergedCount()),
		)
	}
	return tables, nil
}

func (s *Sweeper) solve(regime Regime, step int, a float64) Record {
	rec, res := SolveStep(regime, a, s.opts)
	if !res.Converged {
		s.logger.Debug("equilibrium did not converge",
			zap.String("op", "equilibrium.solve"),
			zap.String("regime", string(regime)),
			zap.Int("step", step),
			zap.Float64("asymmetry", a),
			zap.String("status", res.Status.String()),
			zap.Int("iterations", res.Iterations),
			zap.Float64("maxResidual", res.MaxResidual()),
		)
	}
	return rec
}

// ConvergedCount returns the number of converged records in the table.
func (t Table) ConvergedCount() int {
	count := 0
	for _, rec := range t.Records {
		if rec.Converged {
			count++
		}
	}
	return count
}

// LastConverged returns the converged record that comes last in sweep order.
func (t Table) LastConverged() (Record, bool) {
	for i := len(t.Records) - 1; i >= 0; i-- {
		if t.Records[i].Converged {
			return t.Records[i], true
		}
	}
	return Record{}, false
}
