package config

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sdejongh/treereconcile/pkg/grouping"
	"github.com/sdejongh/treereconcile/pkg/logging"
	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/ratelimit"
	"github.com/sdejongh/treereconcile/pkg/storage"
	"github.com/sdejongh/treereconcile/pkg/sync"
)

func (t TaskConfig) toTask() models.Task {
	return models.Task{
		Name:           t.Name,
		Source:         t.Source,
		Target:         t.Target,
		CompareContent: t.CompareContent,
	}
}

// SyncConfig returns the orchestrator settings
func (c *Config) SyncConfig() sync.Config {
	return sync.Config{
		MaxWorkers:   c.Scan.MaxWorkers,
		PollInterval: c.Scan.PollInterval,
		Scan: sync.ScanConfig{
			MaxDepth:             c.Scan.MaxDepth,
			TimeTolerance:        c.Scan.TimeTolerance,
			AmbiguousPolicy:      models.AmbiguousPolicy(c.Scan.AmbiguousPolicy),
			BufferSize:           c.Scan.BufferSize,
			SizeWarningThreshold: c.Scan.SizeWarningThreshold,
			Exclude:              append([]string(nil), c.Scan.Exclude...),
		},
	}
}

// Storage returns the local filesystem backend used to apply a plan
func (c *Config) Storage() (*storage.Local, error) {
	limit, err := ratelimit.ParseLimit(c.Scan.BandwidthLimit)
	if err != nil {
		return nil, err
	}
	return storage.NewLocal(c.Scan.BufferSize).WithMaxDepth(c.Scan.MaxDepth).WithBandwidthLimit(limit), nil
}

// BuildTasks returns the configured tasks, each with a fresh ID
func (c *Config) BuildTasks() []models.Task {
	tasks := make([]models.Task, 0, len(c.Tasks))
	for _, tc := range c.Tasks {
		task := tc.toTask()
		task.ID = uuid.NewString()
		tasks = append(tasks, task)
	}
	return tasks
}

// BuildIndex returns the directory group index of the configured rules
func (c *Config) BuildIndex() (*grouping.Index, error) {
	rules := make([]grouping.Rule, 0, len(c.Directories))
	for i, dir := range c.Directories {
		permanence, err := models.ParsePermanence(dir.Permanence)
		if err != nil {
			return nil, fmt.Errorf("directories[%d]: %w", i, err)
		}
		policy, err := models.ParseGroupingPolicy(dir.Grouping)
		if err != nil {
			return nil, fmt.Errorf("directories[%d]: %w", i, err)
		}
		rules = append(rules, grouping.Rule{
			Path:       dir.Path,
			Permanence: permanence,
			Policy:     policy,
		})
	}
	return grouping.NewIndex(rules, c.Scan.SizeWarningThreshold)
}

// FileLoggerConfig returns the settings of the file logger. An empty file
// falls back to DefaultLogPath.
func (c *Config) FileLoggerConfig() (logging.FileLoggerConfig, error) {
	path := c.Logging.File
	if path == "" {
		p, err := DefaultLogPath()
		if err != nil {
			return logging.FileLoggerConfig{}, err
		}
		path = p
	}
	return logging.FileLoggerConfig{
		Path:       path,
		Format:     logging.Format(c.Logging.Format),
		Level:      logging.ParseLevel(c.Logging.Level),
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}, nil
}
