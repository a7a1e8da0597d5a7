// Package constants provides shared constants for the market-equilibrium application.
package constants

// Sweep defaults reproduce the reference run: 5000 decrements of the
// asymmetry parameter starting from a symmetric market.
const (
	// DefaultInitialAsymmetry is the asymmetry value of the first sweep step
	DefaultInitialAsymmetry = 1.0

	// DefaultStepSize is the decrement applied to the asymmetry per step
	DefaultStepSize = 0.0001

	// DefaultSteps is the number of sweep steps per regime
	DefaultSteps = 5000

	// DefaultWorkers is the number of concurrent sweep workers; 0 means GOMAXPROCS
	DefaultWorkers = 0
)

// Solver defaults
const (
	// DefaultMaxIterations caps the number of Levenberg-Marquardt iterations per solve
	DefaultMaxIterations = 400

	// DefaultFTol is the relative cost-reduction tolerance
	DefaultFTol = 1e-12

	// DefaultXTol is the relative step-size tolerance
	DefaultXTol = 1e-12

	// DefaultGTol is the projected-gradient tolerance
	DefaultGTol = 1e-12

	// DefaultResidualTolerance is the largest absolute residual accepted as a root
	DefaultResidualTolerance = 1e-6
)

// Model bounds: every demand/supply unknown is a normalized share.
const (
	// ShareLowerBound is the lower bound for demand and supply unknowns
	ShareLowerBound = 0.0

	// ShareUpperBound is the upper bound for demand and supply unknowns
	ShareUpperBound = 1.0

	// CompetitionGuess is the canonical initial guess for the four-unknown systems
	CompetitionGuess = 1.0

	// MonopolyGuess is the canonical initial guess for the monopoly system
	MonopolyGuess = 0.1
)

// Regime tags as written to the result tables
const (
	// RegimeSingle tags single-homing records
	RegimeSingle = "single"

	// RegimeMulti tags multi-homing records
	RegimeMulti = "multi"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// DefaultOutputDirectory is where the per-regime CSV files are written
	DefaultOutputDirectory = "."

	// SingleTableFile is the CSV file name for the single-homing table
	SingleTableFile = "single.csv"

	// MultiTableFile is the CSV file name for the multi-homing table
	MultiTableFile = "multi.csv"
)

// Analysis defaults
const (
	// DefaultThresholdSide is the market side whose negative profit marks shutdown
	DefaultThresholdSide = 2
)
