package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/logging"
	"github.com/sdejongh/treereconcile/pkg/models"
)

// ScanReport is the merged outcome of a scan run
type ScanReport struct {
	ID          string
	Entries     []backup.Entry
	Counters    models.Counters
	FailedPaths []string
	// TaskStatus maps task IDs to a human readable status
	TaskStatus map[string]string
	Results    []*TaskResult
	Started    time.Time
	Finished   time.Time
	Cancelled  bool
}

// Duration returns how long the scan took
func (r *ScanReport) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// taskRun tracks one DiffEngine scheduled on the pool
type taskRun struct {
	engine *DiffEngine
	result *TaskResult
	merged bool
}

// Orchestrator scans many tasks concurrently on a bounded pool and merges
// their results
type Orchestrator struct {
	config   Config
	resolver Resolver
	logger   logging.Logger
	sink     ProgressSink
}

// NewOrchestrator creates a scan orchestrator. resolver and sink may be nil.
func NewOrchestrator(config Config, resolver Resolver, logger logging.Logger, sink ProgressSink) *Orchestrator {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if sink == nil {
		sink = NullSink{}
	}
	return &Orchestrator{
		config:   config.normalized(),
		resolver: resolver,
		logger:   logger,
		sink:     sink,
	}
}

// Scan runs one DiffEngine per task and merges the results in completion
// order. Invalid tasks are rejected before anything is scanned. Cancelling
// ctx stops every engine at its next directory boundary; the partial
// results gathered so far are still returned.
func (o *Orchestrator) Scan(ctx context.Context, tasks []models.Task) (*ScanReport, error) {
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid task %q: %w", tasks[i].Label(), err)
		}
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
	}

	// Groups from a previous run must not absorb new items
	if c, ok := o.resolver.(interface{ Clear() }); ok {
		c.Clear()
	}

	report := &ScanReport{
		ID:         uuid.NewString(),
		TaskStatus: make(map[string]string, len(tasks)),
		Started:    time.Now(),
	}

	o.logger.Info(ctx, "Starting scan", logging.Fields{
		"scan_id":     report.ID,
		"tasks":       len(tasks),
		"max_workers": o.config.MaxWorkers,
	})

	runs := make([]*taskRun, len(tasks))
	for i, task := range tasks {
		runs[i] = &taskRun{engine: NewDiffEngine(task, o.config.Scan, o.resolver, o.logger)}
	}

	// Each task signals its completion exactly once; the buffer never blocks
	done := make(chan int, len(runs))
	var g errgroup.Group
	g.SetLimit(o.config.MaxWorkers)
	go func() {
		for i := range runs {
			i := i
			g.Go(func() error {
				runs[i].result = runs[i].engine.Run(ctx)
				done <- i
				return nil
			})
		}
	}()

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	remaining := len(runs)
	for remaining > 0 {
		select {
		case i := <-done:
			if o.merge(report, runs[i]) {
				remaining--
			}
			o.sink.ScanProgress(o.snapshot(report, runs))
		case <-ticker.C:
			o.sink.ScanProgress(o.snapshot(report, runs))
		}
	}
	g.Wait()

	report.Finished = time.Now()
	report.Cancelled = ctx.Err() != nil

	o.logger.Info(ctx, "Scan finished", logging.Fields{
		"scan_id":   report.ID,
		"items":     report.Counters.Found.Total(),
		"errors":    len(report.FailedPaths),
		"duration":  report.Duration().String(),
		"cancelled": report.Cancelled,
	})

	o.sink.ScanComplete(report)
	return report, nil
}

// merge folds a completed task into the report, once
func (o *Orchestrator) merge(report *ScanReport, run *taskRun) bool {
	if run.merged || run.result == nil {
		return false
	}
	run.merged = true

	result := run.result
	report.Entries = append(report.Entries, result.Entries...)
	report.Counters.Add(result.Counters)
	report.FailedPaths = append(report.FailedPaths, result.FailedPaths...)
	report.TaskStatus[result.Task.ID] = result.Status
	report.Results = append(report.Results, result)
	return true
}

// snapshot builds a progress view from merged tasks and running engines
func (o *Orchestrator) snapshot(report *ScanReport, runs []*taskRun) Snapshot {
	s := Snapshot{
		ScanID:     report.ID,
		TasksTotal: len(runs),
		Counters:   report.Counters,
		Elapsed:    time.Since(report.Started),
	}
	for _, run := range runs {
		p := run.engine.Progress()
		s.FilesScanned += p.FilesScanned
		s.DirsScanned += p.DirsScanned
		s.ItemsFound += p.ItemsFound
		if run.merged {
			s.TasksDone++
		}
	}
	return s
}
