// Package output provides utilities for formatting and displaying equilibrium results.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/iwvelando/market-equilibrium/internal/analysis"
	"github.com/iwvelando/market-equilibrium/internal/equilibrium"
	"github.com/iwvelando/market-equilibrium/pkg/constants"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Header is the column layout shared by the CSV table files and CsvFormat.
var Header = []string{"alpha", "d_1", "s_1", "d_2", "s_2", "pi_1", "pi_2", "type", "nonneg"}

// PrettyFormat outputs a human-readable rather than machine-readable report.
func PrettyFormat(report *analysis.Report) {
	p := message.NewPrinter(language.English)
	_, _ = p.Printf("Run %s: %d steps from alpha %.4f by %g\n\n",
		report.RunID, report.Sweep.Steps, report.Sweep.InitialAsymmetry, report.Sweep.StepSize)

	for _, regime := range equilibrium.Regimes {
		table := report.Tables.Table(regime)
		fmt.Printf("--- Results for %s-homing ---\n", regime)
		fmt.Printf("alpha  | d_1      | s_1      | d_2      | s_2      | pi_1      | pi_2      | converged\n")
		fmt.Printf("_____  | ________ | ________ | ________ | ________ | _________ | _________ | _________\n")
		for _, rec := range table.Records {
			_, _ = p.Printf("%.4f | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %t\n",
				rec.Asymmetry, rec.Demand1, rec.Supply1, rec.Demand2, rec.Supply2,
				rec.Profit1, rec.Profit2, rec.Converged)
		}
		fmt.Printf("\n")
	}

	fmt.Printf("--- Summary ---\n")
	for _, summary := range report.Regimes {
		_, _ = p.Printf("%s-homing: %d of %d converged, shutdown threshold (pi_%d < 0): %s\n",
			summary.Regime, summary.Converged, len(report.Tables.Table(summary.Regime).Records),
			summary.Threshold.Side, summary.Threshold)
		if summary.MonopolyErr != nil {
			fmt.Printf("  Monopoly: unavailable (%v)\n", summary.MonopolyErr)
			continue
		}
		m := summary.Monopoly
		_, _ = p.Printf("  Monopoly at alpha %.6f: d %.6f, s %.6f, converged %t\n",
			m.Asymmetry, m.Demand, m.Supply, m.Converged)
		_, _ = p.Printf("  Profit: %.6f, Rider surplus: %.6f, Driver surplus: %.6f\n",
			m.Profit, m.RiderSurplus, m.DriverSurplus)
	}

	if d := report.Derivatives; d != nil {
		_, _ = p.Printf("Derivatives at alpha %.6f (d %.6f, s %.6f):\n", d.Asymmetry, d.Base.Demand, d.Base.Supply)
		_, _ = p.Printf("  d' %.6f, s' %.6f\n", d.First.Demand, d.First.Supply)
		_, _ = p.Printf("  d'' %.6f, s'' %.6f\n", d.Second.Demand, d.Second.Supply)
		_, _ = p.Printf("  Profit derivative: %.6f\n", d.ProfitDerivative)
	}
	if report.DerivativesErr != nil {
		fmt.Printf("Derivative analysis incomplete: %v\n", report.DerivativesErr)
	}
}

// CsvFormat outputs both tables in comma-separated value format under a
// single header; the type column tells the regimes apart.
func CsvFormat(report *analysis.Report) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, regime := range equilibrium.Regimes {
		if err := writeRecords(w, report.Tables.Table(regime)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteCSV writes one table with its header to w.
func WriteCSV(w io.Writer, table equilibrium.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := writeRecords(cw, table); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteTables writes single.csv and multi.csv into dir, creating it if
// needed, and returns the paths written.
func WriteTables(dir string, tables *equilibrium.Tables) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	files := map[equilibrium.Regime]string{
		equilibrium.Single: constants.SingleTableFile,
		equilibrium.Multi:  constants.MultiTableFile,
	}
	var paths []string
	for _, regime := range equilibrium.Regimes {
		path := filepath.Join(dir, files[regime])
		if err := writeFile(path, tables.Table(regime)); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, table equilibrium.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, table); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeRecords(w *csv.Writer, table equilibrium.Table) error {
	for _, rec := range table.Records {
		row := []string{
			formatFloat(rec.Asymmetry),
			formatFloat(rec.Demand1),
			formatFloat(rec.Supply1),
			formatFloat(rec.Demand2),
			formatFloat(rec.Supply2),
			formatFloat(rec.Profit1),
			formatFloat(rec.Profit2),
			string(rec.Regime),
			strconv.FormatBool(rec.Converged),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
