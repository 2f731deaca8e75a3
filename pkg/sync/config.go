package sync

import (
	"time"

	"github.com/sdejongh/treereconcile/pkg/grouping"
	"github.com/sdejongh/treereconcile/pkg/models"
)

// ScanConfig holds the settings of a single DiffEngine
type ScanConfig struct {
	// MaxDepth bounds the directory recursion below the task root
	MaxDepth int
	// TimeTolerance treats modification times closer than this as equal
	TimeTolerance time.Duration
	// AmbiguousPolicy decides what to do with a target newer than its source
	AmbiguousPolicy models.AmbiguousPolicy
	// BufferSize is the read buffer used for content comparison
	BufferSize int
	// SizeWarningThreshold flags groups with a member larger than this, in bytes
	SizeWarningThreshold int64
	// Exclude lists glob patterns hiding entries on both sides
	Exclude []string
}

// Config holds the settings of a scan run
type Config struct {
	// MaxWorkers bounds the number of tasks scanned concurrently
	MaxWorkers int
	// PollInterval is the period of progress snapshots
	PollInterval time.Duration
	Scan         ScanConfig
}

// DefaultScanConfig returns the default DiffEngine settings
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		MaxDepth:             512,
		AmbiguousPolicy:      models.AmbiguousFlag,
		BufferSize:           64 * 1024,
		SizeWarningThreshold: 1 << 30,
	}
}

// DefaultConfig returns the default scan run settings
func DefaultConfig() Config {
	return Config{
		MaxWorkers:   10,
		PollInterval: 250 * time.Millisecond,
		Scan:         DefaultScanConfig(),
	}
}

// normalized fills zero values with defaults
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MaxWorkers < 1 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	c.Scan = c.Scan.normalized()
	return c
}

func (c ScanConfig) normalized() ScanConfig {
	d := DefaultScanConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.TimeTolerance < 0 {
		c.TimeTolerance = 0
	}
	if !c.AmbiguousPolicy.Valid() {
		c.AmbiguousPolicy = d.AmbiguousPolicy
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	return c
}

// Resolver maps a path to the directory group governing it, or nil.
// *grouping.Index is the usual implementation.
type Resolver interface {
	Lookup(path string) *grouping.DirectoryGroup
}
