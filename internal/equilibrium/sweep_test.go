package equilibrium

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/iwvelando/market-equilibrium/internal/config"
	"github.com/iwvelando/market-equilibrium/pkg/mathutil"
	"github.com/iwvelando/market-equilibrium/pkg/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newSweeper(t *testing.T, sweep config.SweepConfig) *Sweeper {
	t.Helper()
	s, err := NewSweeper(zap.NewNop(), sweep, solver.DefaultOptions())
	require.NoError(t, err)
	return s
}

func checkRecord(t *testing.T, rec Record, regime Regime) {
	t.Helper()
	assert.Equal(t, regime, rec.Regime)
	for _, v := range rec.Unknowns() {
		assert.Greater(t, v, 0.0, "unknown on or below lower bound at a=%v", rec.Asymmetry)
		assert.Less(t, v, 1.0, "unknown on or above upper bound at a=%v", rec.Asymmetry)
	}
	assert.True(t, mathutil.IsFinite(rec.Profit1) && mathutil.IsFinite(rec.Profit2),
		"profits must be populated at a=%v", rec.Asymmetry)
	if rec.Converged {
		residual := System(regime, rec.Asymmetry)(rec.Unknowns())
		assert.True(t, mathutil.WithinTolerance(mathutil.MaxAbs(residual), 0, solver.DefaultOptions().ResidualTolerance),
			"converged %s record at a=%v does not solve its FOC system", regime, rec.Asymmetry)
	}
}

func TestSweepThreeSteps(t *testing.T) {
	s := newSweeper(t, config.SweepConfig{InitialAsymmetry: 1.0, StepSize: 0.1, Steps: 3})

	tables, err := s.Run(context.Background())
	require.NoError(t, err)

	want := []float64{1.0, 0.9, 0.8}
	for _, regime := range Regimes {
		table := tables.Table(regime)
		require.Equal(t, regime, table.Regime)
		require.Len(t, table.Records, 3)
		for i, rec := range table.Records {
			assert.InDelta(t, want[i], rec.Asymmetry, 1e-12)
			assert.Equal(t, s.AsymmetryAt(i), rec.Asymmetry)
			checkRecord(t, rec, regime)
		}
	}
}

func TestSweepAsymmetryIsArithmetic(t *testing.T) {
	s := newSweeper(t, config.SweepConfig{InitialAsymmetry: 0.75, StepSize: 0.05, Steps: 12, Workers: 3})

	tables, err := s.Run(context.Background())
	require.NoError(t, err)

	for _, regime := range Regimes {
		records := tables.Table(regime).Records
		require.Len(t, records, 12)
		for i, rec := range records {
			assert.InDelta(t, 0.75-float64(i)*0.05, rec.Asymmetry, 1e-15)
			assert.Equal(t, s.AsymmetryAt(i), rec.Asymmetry)
			if i > 0 {
				assert.Less(t, rec.Asymmetry, records[i-1].Asymmetry)
			}
			checkRecord(t, rec, regime)
		}
	}
}

func TestSweepKeepsProfitsFiniteAtLowAsymmetry(t *testing.T) {
	s := newSweeper(t, config.SweepConfig{InitialAsymmetry: 0.65, StepSize: 0.05, Steps: 10})

	tables, err := s.Run(context.Background())
	require.NoError(t, err)

	for _, rec := range tables.Multi.Records {
		require.LessOrEqual(t, rec.Asymmetry, 0.65)
		assert.Greater(t, rec.Supply2, 0.0, "s_2 pinned to its bound at a=%v", rec.Asymmetry)
		assert.False(t, math.IsInf(rec.Profit2, 0), "pi_2 infinite at a=%v", rec.Asymmetry)
		checkRecord(t, rec, Multi)
	}
	for _, rec := range tables.Single.Records {
		checkRecord(t, rec, Single)
	}
}

func TestLastConverged(t *testing.T) {
	table := Table{Regime: Multi, Records: []Record{
		{Asymmetry: 1, Converged: true},
		{Asymmetry: 0.9, Converged: true},
		{Asymmetry: 0.8},
	}}
	rec, ok := table.LastConverged()
	require.True(t, ok)
	assert.Equal(t, 0.9, rec.Asymmetry)

	_, ok = Table{Regime: Multi, Records: []Record{{Asymmetry: 1}}}.LastConverged()
	assert.False(t, ok)
}

func TestSweepIsIndependentOfWorkerCount(t *testing.T) {
	sweep := config.SweepConfig{InitialAsymmetry: 1, StepSize: 0.07, Steps: 6, Workers: 1}
	sequential, err := newSweeper(t, sweep).Run(context.Background())
	require.NoError(t, err)

	sweep.Workers = 4
	parallel, err := newSweeper(t, sweep).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

func TestSweepTablesAreNotAliased(t *testing.T) {
	tables, err := newSweeper(t, config.SweepConfig{InitialAsymmetry: 1, StepSize: 0.1, Steps: 2}).Run(context.Background())
	require.NoError(t, err)

	tables.Single.Records[0].Profit2 = math.Inf(-1)
	assert.False(t, math.IsInf(tables.Multi.Records[0].Profit2, -1))
	assert.Equal(t, Single, tables.Single.Records[1].Regime)
	assert.Equal(t, Multi, tables.Multi.Records[1].Regime)
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSweeper(t, config.SweepConfig{InitialAsymmetry: 1, StepSize: 0.1, Steps: 50}).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSweepLogsSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s, err := NewSweeper(zap.New(core), config.SweepConfig{InitialAsymmetry: 1, StepSize: 0.1, Steps: 2}, solver.Options{})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	finished := logs.FilterMessage("sweep finished").All()
	require.Len(t, finished, 2)
	assert.Equal(t, "single", finished[0].ContextMap()["regime"])
	assert.Equal(t, "multi", finished[1].ContextMap()["regime"])
	assert.Equal(t, int64(2), finished[0].ContextMap()["records"])
}

func TestNewSweeperRejectsBadSweep(t *testing.T) {
	tests := []struct {
		name  string
		sweep config.SweepConfig
	}{
		{"zero steps", config.SweepConfig{InitialAsymmetry: 1, StepSize: 0.1}},
		{"zero step size", config.SweepConfig{InitialAsymmetry: 1, Steps: 3}},
		{"NaN step size", config.SweepConfig{InitialAsymmetry: 1, StepSize: math.NaN(), Steps: 3}},
		{"negative workers", config.SweepConfig{InitialAsymmetry: 1, StepSize: 0.1, Steps: 3, Workers: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSweeper(nil, tt.sweep, solver.DefaultOptions())
			assert.Error(t, err)
		})
	}
}

func TestSolveStepIsDeterministic(t *testing.T) {
	first, res := SolveStep(Multi, 0.85, solver.DefaultOptions())
	second, _ := SolveStep(Multi, 0.85, solver.DefaultOptions())

	assert.Equal(t, first, second)
	assert.Equal(t, res.Converged, first.Converged)
	checkRecord(t, first, Multi)
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide(2)
	require.NoError(t, err)
	assert.Equal(t, Side2, side)

	_, err = ParseSide(0)
	assert.Error(t, err)
}

func TestReferenceSweep(t *testing.T) {
	if testing.Short() {
		t.Skip("full reference sweep skipped in short mode")
	}
	conf := config.Default()
	s := newSweeper(t, conf.Sweep)

	tables, err := s.Run(context.Background())
	require.NoError(t, err)

	for _, regime := range Regimes {
		records := tables.Table(regime).Records
		require.Len(t, records, conf.Sweep.Steps)
		assert.Equal(t, 1.0, records[0].Asymmetry)
		for i, rec := range records {
			assert.Equal(t, conf.Sweep.AsymmetryAt(i), rec.Asymmetry)
			checkRecord(t, rec, regime)
		}
	}
}
