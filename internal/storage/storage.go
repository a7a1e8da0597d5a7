// Package storage provides an SQLite archive of sweep runs: the sweep
// parameters, every equilibrium record and the per-regime thresholds.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/market-equilibrium/internal/analysis"
	"github.com/iwvelando/market-equilibrium/internal/equilibrium"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// Run is the archived header of one sweep.
type Run struct {
	ID               string
	InitialAsymmetry float64
	StepSize         float64
	Steps            int
	CreatedAt        time.Time
	// ProfitDerivative is nil when the derivative analysis did not complete.
	ProfitDerivative *float64
}

// New opens or creates the SQLite database at dbPath.
func New(dbPath string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                TEXT PRIMARY KEY,
			initial_asymmetry REAL NOT NULL,
			step_size         REAL NOT NULL,
			steps             INTEGER NOT NULL,
			profit_derivative REAL,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS equilibria (
			run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			regime    TEXT NOT NULL,
			step      INTEGER NOT NULL,
			alpha     REAL NOT NULL,
			d_1       REAL NOT NULL,
			s_1       REAL NOT NULL,
			d_2       REAL NOT NULL,
			s_2       REAL NOT NULL,
			pi_1      REAL NOT NULL,
			pi_2      REAL NOT NULL,
			converged INTEGER NOT NULL,
			PRIMARY KEY (run_id, regime, step)
		)`,
		`CREATE TABLE IF NOT EXISTS thresholds (
			run_id             TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			regime             TEXT NOT NULL,
			side               INTEGER NOT NULL,
			alpha              REAL,
			monopoly_demand    REAL,
			monopoly_supply    REAL,
			monopoly_profit    REAL,
			rider_surplus      REAL,
			driver_surplus     REAL,
			monopoly_converged INTEGER,
			PRIMARY KEY (run_id, regime)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun archives report in a single transaction. A report without a run
// id is assigned a fresh one; the id used is returned.
func (s *Storage) SaveRun(report *analysis.Report) (string, error) {
	if report == nil || report.Tables == nil {
		return "", fmt.Errorf("invalid report: no tables")
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var derivative sql.NullFloat64
	if d := report.Derivatives; d != nil && report.DerivativesErr == nil {
		derivative = sql.NullFloat64{Float64: d.ProfitDerivative, Valid: true}
	}
	if _, err := tx.Exec(`
		INSERT INTO runs (id, initial_asymmetry, step_size, steps, profit_derivative, created_at)
		VALUES (?,?,?,?,?,?)`,
		report.RunID, report.Sweep.InitialAsymmetry, report.Sweep.StepSize, report.Sweep.Steps,
		derivative, time.Now().UnixNano(),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO equilibria
			(run_id, regime, step, alpha, d_1, s_1, d_2, s_2, pi_1, pi_2, converged)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare equilibrium insert: %w", err)
	}
	defer stmt.Close()
	for _, regime := range equilibrium.Regimes {
		for i, rec := range report.Tables.Table(regime).Records {
			if _, err := stmt.Exec(report.RunID, string(regime), i, rec.Asymmetry,
				rec.Demand1, rec.Supply1, rec.Demand2, rec.Supply2,
				rec.Profit1, rec.Profit2, rec.Converged,
			); err != nil {
				return "", fmt.Errorf("failed to insert %s equilibrium %d: %w", regime, i, err)
			}
		}
	}

	for _, summary := range report.Regimes {
		if err := insertThreshold(tx, report.RunID, summary); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return report.RunID, nil
}

func insertThreshold(tx *sql.Tx, runID string, summary analysis.RegimeSummary) error {
	var (
		alpha, demand, supply, profit, rider, driver sql.NullFloat64
		converged                                    sql.NullBool
	)
	if summary.Threshold.Found {
		alpha = sql.NullFloat64{Float64: summary.Threshold.Asymmetry, Valid: true}
	}
	if m := summary.Monopoly; m != nil {
		demand = sql.NullFloat64{Float64: m.Demand, Valid: true}
		supply = sql.NullFloat64{Float64: m.Supply, Valid: true}
		profit = sql.NullFloat64{Float64: m.Profit, Valid: true}
		rider = sql.NullFloat64{Float64: m.RiderSurplus, Valid: true}
		driver = sql.NullFloat64{Float64: m.DriverSurplus, Valid: true}
		converged = sql.NullBool{Bool: m.Converged, Valid: true}
	}
	_, err := tx.Exec(`
		INSERT INTO thresholds
			(run_id, regime, side, alpha, monopoly_demand, monopoly_supply,
			 monopoly_profit, rider_surplus, driver_surplus, monopoly_converged)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		runID, string(summary.Regime), int(summary.Threshold.Side),
		alpha, demand, supply, profit, rider, driver, converged,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s threshold: %w", summary.Regime, err)
	}
	return nil
}

// GetRun returns the archived header of runID.
func (s *Storage) GetRun(runID string) (*Run, error) {
	var (
		run        Run
		derivative sql.NullFloat64
		createdAt  int64
	)
	err := s.db.QueryRow(`
		SELECT id, initial_asymmetry, step_size, steps, profit_derivative, created_at
		FROM runs WHERE id = ?`, runID,
	).Scan(&run.ID, &run.InitialAsymmetry, &run.StepSize, &run.Steps, &derivative, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.CreatedAt = time.Unix(0, createdAt)
	if derivative.Valid {
		run.ProfitDerivative = &derivative.Float64
	}
	return &run, nil
}

// LoadTable returns the archived records of one regime in sweep order.
func (s *Storage) LoadTable(runID string, regime equilibrium.Regime) (equilibrium.Table, error) {
	table := equilibrium.Table{Regime: regime}
	rows, err := s.db.Query(`
		SELECT alpha, d_1, s_1, d_2, s_2, pi_1, pi_2, converged
		FROM equilibria WHERE run_id = ? AND regime = ?
		ORDER BY step`, runID, string(regime))
	if err != nil {
		return table, fmt.Errorf("failed to query equilibria: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec := equilibrium.Record{Regime: regime}
		if err := rows.Scan(&rec.Asymmetry, &rec.Demand1, &rec.Supply1, &rec.Demand2, &rec.Supply2,
			&rec.Profit1, &rec.Profit2, &rec.Converged); err != nil {
			return table, fmt.Errorf("failed to scan equilibrium: %w", err)
		}
		table.Records = append(table.Records, rec)
	}
	return table, rows.Err()
}

// LoadThresholds returns the archived shutdown thresholds of runID.
func (s *Storage) LoadThresholds(runID string) ([]equilibrium.Threshold, error) {
	rows, err := s.db.Query(`
		SELECT regime, side, alpha FROM thresholds WHERE run_id = ? ORDER BY regime DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()
	var thresholds []equilibrium.Threshold
	for rows.Next() {
		var (
			th     equilibrium.Threshold
			regime string
			side   int
			alpha  sql.NullFloat64
		)
		if err := rows.Scan(&regime, &side, &alpha); err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		th.Regime = equilibrium.Regime(regime)
		th.Side = equilibrium.Side(side)
		th.Asymmetry, th.Found = alpha.Float64, alpha.Valid
		thresholds = append(thresholds, th)
	}
	return thresholds, rows.Err()
}
