package equilibrium

import (
	"errors"
	"fmt"

	"github.com/iwvelando/market-equilibrium/pkg/mathutil"
)

// ErrNoThreshold is returned when a table has no record with negative
// profit on the selected side.
var ErrNoThreshold = errors.New("no shutdown threshold")

// Threshold is the largest asymmetry at which the selected side's profit
// is negative. Found is false when no such record exists.
type Threshold struct {
	Regime    Regime
	Side      Side
	Asymmetry float64
	Found     bool
}

// ShutdownThreshold scans table for records whose profit on side is
// negative and returns the largest asymmetry among them.
func ShutdownThreshold(table Table, side Side) Threshold {
	th := Threshold{Regime: table.Regime, Side: side}
	for _, rec := range table.Records {
		if !mathutil.IsNegative(rec.Profit(side)) {
			continue
		}
		if !th.Found || rec.Asymmetry > th.Asymmetry {
			th.Asymmetry = rec.Asymmetry
			th.Found = true
		}
	}
	return th
}

// Value returns the threshold asymmetry, or ErrNoThreshold when it is absent.
func (t Threshold) Value() (float64, error) {
	if !t.Found {
		return 0, fmt.Errorf("%s-homing side %d: %w", t.Regime, t.Side, ErrNoThreshold)
	}
	return t.Asymmetry, nil
}

// String renders the threshold for logs and reports.
func (t Threshold) String() string {
	if !t.Found {
		return "none"
	}
	return fmt.Sprintf("%.6f", t.Asymmetry)
}
