package config

import (
	"fmt"
	"time"

	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/ratelimit"
)

// Config represents the application configuration
type Config struct {
	Scan        ScanConfig        `yaml:"scan"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tasks       []TaskConfig      `yaml:"tasks"`
	Directories []DirectoryConfig `yaml:"directories"`
}

// ScanConfig holds scan and execution settings
type ScanConfig struct {
	MaxWorkers           int           `yaml:"max_workers"`
	MaxDepth             int           `yaml:"max_depth"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	SizeWarningThreshold int64         `yaml:"size_warning_threshold"` // bytes, 0 disables
	TimeTolerance        time.Duration `yaml:"time_tolerance"`
	AmbiguousPolicy      string        `yaml:"ambiguous_policy"` // "flag", "verify" or "copy_back"
	BufferSize           int           `yaml:"buffer_size"`
	BandwidthLimit       string        `yaml:"bandwidth_limit,omitempty"` // e.g. "10M", empty is unlimited
	Exclude              []string      `yaml:"exclude"`
}

// TaskConfig is one (source, target) pair to reconcile
type TaskConfig struct {
	Name           string `yaml:"name,omitempty"`
	Source         string `yaml:"source"`
	Target         string `yaml:"target"`
	CompareContent bool   `yaml:"compare_content,omitempty"`
}

// DirectoryConfig assigns a permanence level and a grouping policy to a directory
type DirectoryConfig struct {
	Path       string `yaml:"path"`
	Permanence string `yaml:"permanence,omitempty"` // "high", "medium" or "low"
	Grouping   string `yaml:"grouping,omitempty"`   // "do_not_group", "group_all" or "group_sub_items"
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"` // "json" or "text"
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	File       string `yaml:"file"`   // Log file path (empty = default path)
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			MaxWorkers:           10,
			MaxDepth:             512,
			PollInterval:         250 * time.Millisecond,
			SizeWarningThreshold: 1 << 30,
			TimeTolerance:        0,
			AmbiguousPolicy:      string(models.AmbiguousFlag),
			BufferSize:           65536,
			Exclude: []string{
				"*.tmp",
				".git/",
			},
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Format:     "json",
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Scan.MaxWorkers < 1 {
		return &models.ValidationError{
			Field:   "scan.max_workers",
			Message: "must be at least 1",
		}
	}

	if c.Scan.MaxDepth < 1 {
		return &models.ValidationError{
			Field:   "scan.max_depth",
			Message: "must be at least 1",
		}
	}

	if c.Scan.PollInterval <= 0 {
		return &models.ValidationError{
			Field:   "scan.poll_interval",
			Message: "must be positive",
		}
	}

	if c.Scan.SizeWarningThreshold < 0 {
		return &models.ValidationError{
			Field:   "scan.size_warning_threshold",
			Message: "must not be negative",
		}
	}

	if c.Scan.TimeTolerance < 0 {
		return &models.ValidationError{
			Field:   "scan.time_tolerance",
			Message: "must not be negative",
		}
	}

	if !models.AmbiguousPolicy(c.Scan.AmbiguousPolicy).Valid() {
		return &models.ValidationError{
			Field:   "scan.ambiguous_policy",
			Message: "must be 'flag', 'verify', or 'copy_back'",
		}
	}

	if c.Scan.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "scan.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if _, err := ratelimit.ParseLimit(c.Scan.BandwidthLimit); err != nil {
		return &models.ValidationError{
			Field:   "scan.bandwidth_limit",
			Message: err.Error(),
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	for i, task := range c.Tasks {
		if err := task.toTask().Validate(); err != nil {
			return &models.ValidationError{
				Field:   fmt.Sprintf("tasks[%d]", i),
				Message: err.Error(),
			}
		}
	}

	for i, dir := range c.Directories {
		field := fmt.Sprintf("directories[%d]", i)
		if dir.Path == "" {
			return &models.ValidationError{Field: field, Message: "path is required"}
		}
		if _, err := models.ParsePermanence(dir.Permanence); err != nil {
			return &models.ValidationError{Field: field, Message: err.Error()}
		}
		if _, err := models.ParseGroupingPolicy(dir.Grouping); err != nil {
			return &models.ValidationError{Field: field, Message: err.Error()}
		}
	}

	return nil
}
