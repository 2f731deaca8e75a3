package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/storage"
	"github.com/sdejongh/treereconcile/pkg/sync"
)

// JSONFormatter writes one JSON document per completed scan and per
// completed execution, for automation and scripting
type JSONFormatter struct {
	writer io.Writer
}

// JSONEntry represents a backup item or group
type JSONEntry struct {
	Path           string      `json:"path"`
	Action         string      `json:"action"`
	Status         string      `json:"status"`
	Permanence     string      `json:"permanence"`
	SizeDifference int64       `json:"size_difference"`
	Source         string      `json:"source,omitempty"`
	Target         string      `json:"target,omitempty"`
	ModTime        string      `json:"mod_time,omitempty"`
	Error          string      `json:"error,omitempty"`
	Items          int         `json:"items,omitempty"`
	ExceedsWarning bool        `json:"exceeds_warning,omitempty"`
	Members        []JSONEntry `json:"members,omitempty"`
}

// JSONTaskData represents the scan outcome of one task
type JSONTaskData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	State       string   `json:"state"`
	Status      string   `json:"status"`
	DurationMs  int64    `json:"duration_ms"`
	FailedPaths []string `json:"failed_paths,omitempty"`
}

// JSONScanData represents a completed scan
type JSONScanData struct {
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	Started     string          `json:"started"`
	Duration    string          `json:"duration"`
	DurationMs  int64           `json:"duration_ms"`
	Cancelled   bool            `json:"cancelled"`
	Counters    models.Counters `json:"counters"`
	Tasks       []JSONTaskData  `json:"tasks"`
	Entries     []JSONEntry     `json:"entries"`
	FailedPaths []string        `json:"failed_paths,omitempty"`
}

// JSONExecuteData represents a completed execution
type JSONExecuteData struct {
	Type       string                 `json:"type"`
	Duration   string                 `json:"duration"`
	DurationMs int64                  `json:"duration_ms"`
	Cancelled  bool                   `json:"cancelled"`
	Executed   int                    `json:"executed"`
	Failed     int                    `json:"failed"`
	Remaining  []JSONEntry            `json:"remaining"`
	Volumes    []storage.VolumeReport `json:"volumes,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// ScanProgress is ignored to keep the output parseable
func (f *JSONFormatter) ScanProgress(sync.Snapshot) {}

// ScanComplete writes the scan document
func (f *JSONFormatter) ScanComplete(report *sync.ScanReport) {
	data := JSONScanData{
		Type:        "scan",
		ID:          report.ID,
		Started:     report.Started.Format(time.RFC3339),
		Duration:    report.Duration().Round(time.Millisecond).String(),
		DurationMs:  report.Duration().Milliseconds(),
		Cancelled:   report.Cancelled,
		Counters:    report.Counters,
		Tasks:       make([]JSONTaskData, 0, len(report.Results)),
		Entries:     jsonEntries(report.Entries),
		FailedPaths: report.FailedPaths,
	}
	for _, result := range sortedResults(report) {
		data.Tasks = append(data.Tasks, JSONTaskData{
			ID:          result.Task.ID,
			Name:        result.Task.Name,
			Source:      result.Task.Source,
			Target:      result.Task.Target,
			State:       string(result.State),
			Status:      result.Status,
			DurationMs:  result.Duration.Milliseconds(),
			FailedPaths: result.FailedPaths,
		})
	}
	f.encode(data)
}

// ExecuteProgress is ignored to keep the output parseable
func (f *JSONFormatter) ExecuteProgress(sync.ExecuteUpdate) {}

// ExecuteComplete writes the execution document
func (f *JSONFormatter) ExecuteComplete(report *sync.ExecuteReport) {
	f.encode(JSONExecuteData{
		Type:       "execute",
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Cancelled:  report.Cancelled,
		Executed:   report.Executed,
		Failed:     report.Failed,
		Remaining:  jsonEntries(report.Remaining),
		Volumes:    report.Volumes,
	})
}

// Error writes an error document
func (f *JSONFormatter) Error(err error) error {
	return f.encode(map[string]string{
		"type":  "error",
		"error": err.Error(),
	})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

func (f *JSONFormatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func jsonEntries(entries []backup.Entry) []JSONEntry {
	out := make([]JSONEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, jsonEntry(entry))
	}
	return out
}

func jsonEntry(entry backup.Entry) JSONEntry {
	key := entry.Key()
	data := JSONEntry{
		Path:           entry.Path(),
		Action:         string(key.Action),
		Status:         string(key.Status),
		Permanence:     string(key.Permanence),
		SizeDifference: entry.Size(),
	}
	switch e := entry.(type) {
	case *backup.Item:
		data.Source = e.Source
		data.Target = e.Target
		if !e.ModTime.IsZero() {
			data.ModTime = e.ModTime.Format(time.RFC3339Nano)
		}
		if e.Err != nil {
			data.Error = e.Err.Error()
		}
	case *backup.Group:
		data.Items = e.Leaves()
		data.ExceedsWarning = e.ExceedsWarning
		data.Members = jsonEntries(e.Members)
	}
	return data
}
