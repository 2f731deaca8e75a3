package output

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/sync"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	writer io.Writer
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter(w io.Writer) *HumanFormatter {
	return &HumanFormatter{writer: w}
}

// ScanProgress is ignored, the plan is printed once the scan completes
func (f *HumanFormatter) ScanProgress(sync.Snapshot) {}

// ScanComplete prints the backup plan and a summary of the scan
func (f *HumanFormatter) ScanComplete(report *sync.ScanReport) {
	w := f.writer

	fmt.Fprintf(w, "Scan completed in %s\n\n", report.Duration().Round(time.Millisecond))

	if len(report.Entries) > 0 {
		tw := newTable(w)
		tw.AppendHeader(table.Row{"#", "Action", "Status", "Permanence", "Size", "Path"})
		for i, entry := range report.Entries {
			key := entry.Key()
			tw.AppendRow(table.Row{i + 1, key.Action, key.Status, key.Permanence, formatDelta(entry.Size()), entryLabel(entry)})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
		})
		tw.Render()
		fmt.Fprintln(w)
	}

	c := report.Counters
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Scanned:      %d files, %d dirs\n", c.FilesScanned, c.DirsScanned)
	fmt.Fprintf(w, "  Items found:  %d\n", c.Found.Total())
	for _, action := range models.AllActions {
		if n := c.Found.Get(action); n > 0 {
			fmt.Fprintf(w, "    %-13s %d\n", action+":", n)
		}
	}
	fmt.Fprintf(w, "  Permanence:   %d high, %d medium, %d low\n", c.HighPermanence, c.MediumPermanence, c.LowPermanence)
	fmt.Fprintf(w, "  Target delta: %s\n", formatDelta(c.SizeDelta))

	if len(report.TaskStatus) > 1 {
		fmt.Fprintf(w, "\nTasks:\n")
		for _, result := range sortedResults(report) {
			fmt.Fprintf(w, "  %s: %s\n", result.Task.Label(), result.Status)
		}
	}

	if len(report.FailedPaths) > 0 {
		fmt.Fprintf(w, "\nUnreadable paths:\n")
		for _, path := range report.FailedPaths {
			fmt.Fprintf(w, "  %s\n", path)
		}
	}

	if report.Cancelled {
		fmt.Fprintf(w, "\nStatus: cancelled\n")
	}
}

// ExecuteProgress prints one line per executed entry
func (f *HumanFormatter) ExecuteProgress(update sync.ExecuteUpdate) {
	mark := "✓"
	if update.Failed > 0 {
		mark = "✗"
	}
	fmt.Fprintf(f.writer, "[%d/%d] %s %s %s\n", update.Index, update.Total, mark, update.Action, update.Path)
}

// ExecuteComplete prints the outcome of an execution run
func (f *HumanFormatter) ExecuteComplete(report *sync.ExecuteReport) {
	w := f.writer

	fmt.Fprintf(w, "\nExecution completed in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Done:      %d\n", report.Executed)
	fmt.Fprintf(w, "  Failed:    %d\n", report.Failed)
	fmt.Fprintf(w, "  Remaining: %d entries\n", len(report.Remaining))

	if len(report.Volumes) > 0 {
		fmt.Fprintln(w)
		tw := newTable(w)
		tw.AppendHeader(table.Row{"Volume", "Mount point", "Free before", "Free after", "Used", "Expected"})
		for _, v := range report.Volumes {
			tw.AppendRow(table.Row{v.Volume, v.MountPoint, formatBytes(v.Initial), formatBytes(v.Current), formatDelta(v.Delta), formatDelta(v.Expected)})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
		})
		tw.Render()
	}

	if report.Cancelled {
		fmt.Fprintf(w, "\nStatus: cancelled\n")
	}
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	fmt.Fprintf(f.writer, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	return tw
}

// sortedResults returns the task results ordered by label
func sortedResults(report *sync.ScanReport) []*sync.TaskResult {
	results := append([]*sync.TaskResult(nil), report.Results...)
	sort.Slice(results, func(i, j int) bool {
		return results[i].Task.Label() < results[j].Task.Label()
	})
	return results
}
