package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/iwvelando/market-equilibrium/internal/analysis"
	"github.com/iwvelando/market-equilibrium/internal/config"
	"github.com/iwvelando/market-equilibrium/internal/storage"
	"github.com/iwvelando/market-equilibrium/pkg/constants"
	"github.com/iwvelando/market-equilibrium/pkg/output"
	"github.com/iwvelando/market-equilibrium/pkg/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info" // Default to info level
	}

	// Parse log level
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	// Determine output format
	format := loggingConfig.Format
	if format == "" {
		format = "json" // Default to JSON for production
	}

	// Configure encoder
	var config zap.Config
	switch format {
	case "console":
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	case "json":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	// Logs go to stderr unless a file is configured; stdout carries the results.
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	// Configure output file if specified
	if loggingConfig.OutputFile != "" {
		// Ensure the directory exists
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		// Test if we can create/write to the file
		if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		} else {
			_ = file.Close()
		}

		config.OutputPaths = []string{loggingConfig.OutputFile}
		config.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return config.Build()
}

// applyOverrides copies the non-empty CLI flags onto the configuration.
func applyOverrides(conf *config.Configuration, outputFormat, outputDir, dbPath string, steps int) {
	if outputFormat != "" {
		conf.Output.Format = outputFormat
	}
	if outputDir != "" {
		conf.Output.Directory = outputDir
	}
	if dbPath != "" {
		conf.Storage.Path = dbPath
	}
	if steps > 0 {
		conf.Sweep.Steps = steps
	}
	conf.Normalize()
}

func main() {
	configLocation := flag.String("config", "", "path to configuration file; empty runs the reference sweep")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	outputDir := flag.String("output-dir", "", "directory for single.csv and multi.csv")
	dbPath := flag.String("db", "", "SQLite file to archive the run in")
	steps := flag.Int("steps", 0, "number of sweep steps override")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	applyOverrides(conf, *outputFormatFlag, *outputDir, *dbPath, *steps)

	if err := validation.ValidateOutputFormat(conf.Output.Format); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}
	if err := conf.Validate(); err != nil {
		logger.Fatal("invalid configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := analysis.Run(ctx, logger, *conf)
	if err != nil {
		logger.Fatal("failed to compute equilibria",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	if conf.Output.Directory != "" {
		paths, err := output.WriteTables(conf.Output.Directory, report.Tables)
		if err != nil {
			logger.Fatal("failed to write result tables",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		logger.Info("result tables written",
			zap.String("op", "main"),
			zap.Strings("paths", paths),
		)
	}

	if conf.Storage.Path != "" {
		if err := archive(conf.Storage.Path, report); err != nil {
			logger.Fatal("failed to archive run",
				zap.String("op", "main"),
				zap.String("path", conf.Storage.Path),
				zap.Error(err),
			)
		}
		logger.Info("run archived",
			zap.String("op", "main"),
			zap.String("runID", report.RunID),
			zap.String("path", conf.Storage.Path),
		)
	}

	switch conf.Output.Format {
	case constants.OutputFormatPretty:
		output.PrettyFormat(report)
	case constants.OutputFormatCSV:
		if err := output.CsvFormat(report); err != nil {
			logger.Fatal("failed to write CSV output",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}
}

func archive(path string, report *analysis.Report) error {
	store, err := storage.New(path)
	if err != nil {
		return err
	}
	if _, err := store.SaveRun(report); err != nil {
		_ = store.Close()
		return err
	}
	return store.Close()
}
