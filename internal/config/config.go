// Package config defines the data structures related to configuration and
// includes functions for loading, normalizing and validating it.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/market-equilibrium/pkg/constants"
	"github.com/iwvelando/market-equilibrium/pkg/solver"
	"github.com/iwvelando/market-equilibrium/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for market-equilibrium.
type Configuration struct {
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Solver   solver.Options `mapstructure:"solver"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// SweepConfig controls the asymmetry sweep.
type SweepConfig struct {
	InitialAsymmetry float64 `mapstructure:"initialAsymmetry"`
	StepSize         float64 `mapstructure:"stepSize"`
	Steps            int     `mapstructure:"steps"`
	Workers          int     `mapstructure:"workers"` // 0 means GOMAXPROCS
}

// AnalysisConfig controls the post-sweep analysis.
type AnalysisConfig struct {
	ThresholdSide int `mapstructure:"thresholdSide"` // market side whose profit marks shutdown
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `mapstructure:"level"`      // debug, info, warn, error
	Format     string `mapstructure:"format"`     // json, console
	OutputFile string `mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format    string `mapstructure:"format"`    // pretty, csv
	Directory string `mapstructure:"directory"` // where single.csv and multi.csv are written; empty disables
}

// StorageConfig holds the optional SQLite run archive location.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// Default returns the configuration of the reference run.
func Default() Configuration {
	return Configuration{
		Sweep: SweepConfig{
			InitialAsymmetry: constants.DefaultInitialAsymmetry,
			StepSize:         constants.DefaultStepSize,
			Steps:            constants.DefaultSteps,
			Workers:          constants.DefaultWorkers,
		},
		Solver:   solver.DefaultOptions(),
		Analysis: AnalysisConfig{ThresholdSide: constants.DefaultThresholdSide},
		Output: OutputConfig{
			Format:    constants.OutputFormatPretty,
			Directory: constants.DefaultOutputDirectory,
		},
	}
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there on top of the defaults. An empty path yields the
// defaults.
func LoadConfiguration(configPath string) (*Configuration, error) {
	configuration := Default()
	if configPath == "" {
		configuration.Normalize()
		return &configuration, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.SetEnvPrefix("MARKET_EQUILIBRIUM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}

	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	configuration.Normalize()
	return &configuration, nil
}

// Normalize applies defaults to unset fields and canonicalizes strings.
func (c *Configuration) Normalize() {
	c.Solver.Normalize()
	if c.Analysis.ThresholdSide == 0 {
		c.Analysis.ThresholdSide = constants.DefaultThresholdSide
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate returns an error when the configuration cannot drive a run.
func (c *Configuration) Validate() error {
	if math.IsNaN(c.Sweep.InitialAsymmetry) || math.IsInf(c.Sweep.InitialAsymmetry, 0) {
		return fmt.Errorf("sweep initial asymmetry must be finite, got %v", c.Sweep.InitialAsymmetry)
	}
	if !(c.Sweep.StepSize > 0) || math.IsInf(c.Sweep.StepSize, 0) {
		return fmt.Errorf("sweep step size must be positive and finite, got %v", c.Sweep.StepSize)
	}
	if c.Sweep.Steps <= 0 {
		return fmt.Errorf("sweep steps must be positive, got %d", c.Sweep.Steps)
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("sweep workers must not be negative, got %d", c.Sweep.Workers)
	}
	if c.Analysis.ThresholdSide != 1 && c.Analysis.ThresholdSide != 2 {
		return fmt.Errorf("analysis threshold side must be 1 or 2, got %d", c.Analysis.ThresholdSide)
	}
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	if c.Logging.Level != "" {
		if err := validation.ValidateLogLevel(c.Logging.Level); err != nil {
			return err
		}
	}
	if c.Logging.Format != "" {
		if err := validation.ValidateLogFormat(c.Logging.Format); err != nil {
			return err
		}
	}
	return nil
}

// AsymmetryAt returns the asymmetry value of step i, a_0 - i*step.
// The explicit conversion keeps the product from being fused into the
// subtraction.
func (s SweepConfig) AsymmetryAt(i int) float64 {
	return s.InitialAsymmetry - float64(float64(i)*s.StepSize)
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	last := c.Sweep.AsymmetryAt(c.Sweep.Steps - 1)
	if last < 0 {
		warnings = append(warnings, fmt.Sprintf("sweep reaches negative asymmetry %.6g; profits there have no economic reading", last))
	}
	if c.Sweep.InitialAsymmetry > 1 {
		warnings = append(warnings, fmt.Sprintf("sweep starts above the symmetric market at asymmetry %.6g", c.Sweep.InitialAsymmetry))
	}
	if c.Output.Directory == "" && c.Storage.Path == "" {
		warnings = append(warnings, "no output directory or storage path configured; result tables will only be printed")
	}
	return warnings
}
