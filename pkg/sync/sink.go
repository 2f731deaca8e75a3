package sync

import (
	"time"

	"github.com/sdejongh/treereconcile/pkg/models"
)

// Snapshot is a periodic view of a running scan
type Snapshot struct {
	ScanID     string
	TasksTotal int
	TasksDone  int
	// Counters aggregates the tasks merged so far
	Counters models.Counters
	// Live totals, including the tasks still running
	FilesScanned int64
	DirsScanned  int64
	ItemsFound   int64
	Elapsed      time.Duration
}

// ExecuteUpdate reports the outcome of one executed entry
type ExecuteUpdate struct {
	Index  int // 1-based position in the entry list
	Total  int
	Path   string
	Action models.BackupAction
	Status models.BackupStatus
	Done   int // items done by this entry
	Failed int // items failed by this entry
}

// ProgressSink receives progress and results from scans and executions.
// Calls come from the goroutine running Scan or Execute.
type ProgressSink interface {
	ScanProgress(snapshot Snapshot)
	ScanComplete(report *ScanReport)
	ExecuteProgress(update ExecuteUpdate)
	ExecuteComplete(report *ExecuteReport)
}

// NullSink discards everything
type NullSink struct{}

// ScanProgress does nothing
func (NullSink) ScanProgress(Snapshot) {}

// ScanComplete does nothing
func (NullSink) ScanComplete(*ScanReport) {}

// ExecuteProgress does nothing
func (NullSink) ExecuteProgress(ExecuteUpdate) {}

// ExecuteComplete does nothing
func (NullSink) ExecuteComplete(*ExecuteReport) {}
