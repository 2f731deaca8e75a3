package cli

import (
	"fmt"
	"time"

	"github.com/sdejongh/treereconcile/pkg/config"
	"github.com/sdejongh/treereconcile/pkg/logging"
	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/storage"
)

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	return config.Load(globalFlags.ConfigFile)
}

// applyFlagsToConfig overrides config values with command-line flags
func applyFlagsToConfig(cfg *config.Config, f *ScanFlags) error {
	if f.Source != "" || f.Target != "" {
		// An ad-hoc task replaces the configured ones
		cfg.Tasks = []config.TaskConfig{{
			Name:           f.Name,
			Source:         f.Source,
			Target:         f.Target,
			CompareContent: f.CompareContent,
		}}
	} else if f.CompareContent {
		for i := range cfg.Tasks {
			cfg.Tasks[i].CompareContent = true
		}
	}

	if f.Parallel > 0 {
		cfg.Scan.MaxWorkers = f.Parallel
	}
	if f.MaxDepth > 0 {
		cfg.Scan.MaxDepth = f.MaxDepth
	}
	if f.TimeTolerance != "" {
		d, err := time.ParseDuration(f.TimeTolerance)
		if err != nil {
			return fmt.Errorf("invalid time tolerance %q: %w", f.TimeTolerance, err)
		}
		cfg.Scan.TimeTolerance = d
	}
	if f.AmbiguousPolicy != "" {
		cfg.Scan.AmbiguousPolicy = f.AmbiguousPolicy
	}
	if len(f.Exclude) > 0 {
		cfg.Scan.Exclude = f.Exclude
	}

	if globalFlags.Output != "" {
		cfg.Output.Format = globalFlags.Output
	}
	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}
	if globalFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = globalFlags.LogFile
	}
	if globalFlags.LogFormat != "" {
		cfg.Logging.Format = globalFlags.LogFormat
	}
	if globalFlags.LogLevel != "" {
		cfg.Logging.Level = globalFlags.LogLevel
	}
	if globalFlags.Verbose {
		cfg.Logging.Level = "debug"
	}

	return cfg.Validate()
}

// validateTasks rejects tasks whose roots overlap. A missing source is left
// to the scan, which reports it as a failed path of that task only.
func validateTasks(tasks []models.Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks: pass --source and --target or configure tasks")
	}

	for _, task := range tasks {
		sourceAbs, err := storage.NormalizePath(task.Source)
		if err != nil {
			return fmt.Errorf("%s: failed to resolve source path: %w", task.Label(), err)
		}
		targetAbs, err := storage.NormalizePath(task.Target)
		if err != nil {
			return fmt.Errorf("%s: failed to resolve target path: %w", task.Label(), err)
		}

		if sourceAbs == targetAbs {
			return fmt.Errorf("%s: source and target cannot be the same: %s", task.Label(), sourceAbs)
		}
		if storage.IsWithin(targetAbs, sourceAbs) {
			return fmt.Errorf("%s: target cannot be inside source directory", task.Label())
		}
		if storage.IsWithin(sourceAbs, targetAbs) {
			return fmt.Errorf("%s: source cannot be inside target directory", task.Label())
		}
	}
	return nil
}

// createLogger creates a logger based on configuration
func createLogger(cfg *config.Config) (logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewNullLogger(), nil
	}

	lc, err := cfg.FileLoggerConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFileLogger(lc)
}
