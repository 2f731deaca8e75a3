package output

import (
	"fmt"
	"os"

	"github.com/sdejongh/treereconcile/pkg/sync"
)

// WritePlanReport writes the backup plan of a scan to a file.
// Format can be "human" or "json". An empty plan creates no file.
func WritePlanReport(report *sync.ScanReport, path string, format string) error {
	if len(report.Entries) == 0 && len(report.FailedPaths) == 0 {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	var f Formatter
	switch format {
	case "json":
		f = NewJSONFormatter(file)
	default:
		f = NewHumanFormatter(file)
	}
	f.ScanComplete(report)

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
