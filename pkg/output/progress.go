package output

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"

	"github.com/sdejongh/treereconcile/pkg/sync"
)

const (
	scanTemplate    = `{{string . "phase"}} {{counters . }} tasks {{bar . }} {{string . "detail"}} {{etime . }}`
	executeTemplate = `{{string . "phase"}} {{counters . }} {{bar . }} {{percent . }} {{string . "detail"}}`
)

// getUpdateInterval returns the progress update interval based on OS
// Windows terminals have higher latency with ANSI sequences, so we use a longer interval
func getUpdateInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// ProgressFormatter draws progress bars while scanning and executing, then
// prints results like HumanFormatter
type ProgressFormatter struct {
	*HumanFormatter

	bar         *pb.ProgressBar
	lastDisplay time.Time
	failed      int
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter(w io.Writer) *ProgressFormatter {
	return &ProgressFormatter{HumanFormatter: NewHumanFormatter(w)}
}

// ScanProgress updates the scan bar
func (f *ProgressFormatter) ScanProgress(s sync.Snapshot) {
	if f.bar == nil {
		f.failed = 0
		f.start(scanTemplate, s.TasksTotal, "Scanning")
	}
	f.bar.SetTotal(int64(s.TasksTotal))
	f.bar.SetCurrent(int64(s.TasksDone))
	f.bar.Set("detail", fmt.Sprintf("%s files, %s dirs, %s items",
		humanize.Comma(s.FilesScanned), humanize.Comma(s.DirsScanned), humanize.Comma(s.ItemsFound)))
	f.refresh(s.TasksDone == s.TasksTotal)
}

// ScanComplete removes the scan bar and prints the plan
func (f *ProgressFormatter) ScanComplete(report *sync.ScanReport) {
	f.finish()
	f.HumanFormatter.ScanComplete(report)
}

// ExecuteProgress updates the execution bar
func (f *ProgressFormatter) ExecuteProgress(u sync.ExecuteUpdate) {
	if f.bar == nil {
		f.failed = 0
		f.start(executeTemplate, u.Total, "Executing")
	}
	f.failed += u.Failed
	f.bar.SetCurrent(int64(u.Index))
	detail := string(u.Action) + " " + u.Path
	if f.failed > 0 {
		detail = fmt.Sprintf("(%d failed) %s", f.failed, detail)
	}
	f.bar.Set("detail", detail)
	f.refresh(u.Index == u.Total)
}

// ExecuteComplete removes the execution bar and prints the outcome
func (f *ProgressFormatter) ExecuteComplete(report *sync.ExecuteReport) {
	f.finish()
	f.HumanFormatter.ExecuteComplete(report)
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

func (f *ProgressFormatter) start(template string, total int, phase string) {
	f.bar = pb.New(total).
		SetWriter(f.writer).
		SetTemplateString(template).
		Set("phase", phase).
		Set(pb.Static, true).
		Set(pb.CleanOnFinish, true)
	f.bar.Start()
	f.lastDisplay = time.Time{}
}

// refresh redraws the bar at most once per update interval
func (f *ProgressFormatter) refresh(force bool) {
	now := time.Now()
	if force || now.Sub(f.lastDisplay) > getUpdateInterval() {
		f.bar.Write()
		f.lastDisplay = now
	}
}

func (f *ProgressFormatter) finish() {
	if f.bar == nil {
		return
	}
	f.bar.Finish()
	f.bar = nil
}
