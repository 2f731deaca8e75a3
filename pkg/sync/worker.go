package sync

import (
	"context"
	"errors"
	"time"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/logging"
	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/storage"
)

// ExecuteReport is the outcome of an execution run
type ExecuteReport struct {
	// Remaining holds the entries left after pruning done items
	Remaining []backup.Entry
	Volumes   []storage.VolumeReport
	Executed  int // items done
	Failed    int // items failed
	Duration  time.Duration
	Cancelled bool
}

// Executor applies backup entries to the filesystem, one at a time, in list
// order. Entries may touch overlapping paths, so they are never run in
// parallel.
type Executor struct {
	ops      backup.Operations
	registry *storage.VolumeRegistry
	logger   logging.Logger
	sink     ProgressSink
}

// NewExecutor creates an executor. registry, logger and sink may be nil.
func NewExecutor(ops backup.Operations, registry *storage.VolumeRegistry, logger logging.Logger, sink ProgressSink) *Executor {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if sink == nil {
		sink = NullSink{}
	}
	return &Executor{ops: ops, registry: registry, logger: logger, sink: sink}
}

// Execute runs every pending entry and updates counters. The volume of each
// target is registered before anything changes so the report can compare
// the usable space before and after. Cancelling ctx stops before the next
// entry.
func (x *Executor) Execute(ctx context.Context, entries []backup.Entry, counters *models.Counters) *ExecuteReport {
	start := time.Now()
	report := &ExecuteReport{}

	if x.registry != nil {
		for _, item := range backup.Items(entries) {
			if item.Target == "" || !item.Pending() {
				continue
			}
			if err := x.registry.AddPotentialChange(item.Target, item.SizeDifference); err != nil {
				x.logger.Warn(ctx, "Failed to resolve target volume", logging.Fields{
					"path":  item.Target,
					"error": err.Error(),
				})
			}
		}
	}

	x.logger.Info(ctx, "Starting execution", logging.Fields{"entries": len(entries)})

	for i, entry := range entries {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		if !entry.Pending() {
			continue
		}

		pending := pendingItems(entry)
		err := entry.Execute(ctx, x.ops, counters, x.logger)
		if err != nil && !errors.Is(err, backup.ErrAlreadyExecuted) {
			// Only a context error reaches here
			report.Cancelled = true
		}

		update := ExecuteUpdate{
			Index:  i + 1,
			Total:  len(entries),
			Path:   entry.Path(),
			Action: entry.Key().Action,
			Status: entry.Key().Status,
		}
		for _, item := range pending {
			switch item.Status {
			case models.StatusDone:
				update.Done++
			case models.StatusFailed:
				update.Failed++
			}
		}
		report.Executed += update.Done
		report.Failed += update.Failed
		x.sink.ExecuteProgress(update)

		if report.Cancelled {
			break
		}
	}

	if x.registry != nil {
		volumes, err := x.registry.Report()
		if err != nil {
			x.logger.Warn(ctx, "Failed to measure target volumes", logging.Fields{"error": err.Error()})
		}
		report.Volumes = volumes
	}

	report.Remaining = backup.Prune(entries)
	report.Duration = time.Since(start)

	x.logger.Info(ctx, "Execution finished", logging.Fields{
		"executed":  report.Executed,
		"failed":    report.Failed,
		"remaining": len(report.Remaining),
		"cancelled": report.Cancelled,
	})

	x.sink.ExecuteComplete(report)
	return report
}

// pendingItems returns the items of entry not executed yet
func pendingItems(entry backup.Entry) []*backup.Item {
	var pending []*backup.Item
	for _, item := range backup.Items([]backup.Entry{entry}) {
		if item.Pending() {
			pending = append(pending, item)
		}
	}
	return pending
}
