package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/sync"
)

// Formatter renders scan and execution results.
// Implementations include human-readable, progress bar and JSON formatters.
type Formatter interface {
	sync.ProgressSink

	// Error reports an error outside of a scan or execution
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// New returns the formatter for format ("human" or "json"). Progress bars
// are only drawn when progress is set and w is a terminal.
func New(format string, w io.Writer, progress bool) (Formatter, error) {
	if w == nil {
		w = os.Stdout
	}
	switch format {
	case "json":
		return NewJSONFormatter(w), nil
	case "human", "":
		if progress && IsTerminal(w) {
			return NewProgressFormatter(w), nil
		}
		return NewHumanFormatter(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// formatBytes formats a byte count in human-readable format
func formatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// formatDelta formats a signed size change, always with a sign
func formatDelta(n int64) string {
	if n > 0 {
		return "+" + formatBytes(n)
	}
	return formatBytes(n)
}

// entryLabel describes what an entry covers, for groups the number of items
func entryLabel(entry backup.Entry) string {
	if g, ok := entry.(*backup.Group); ok {
		label := fmt.Sprintf("%s (%s items)", g.Root, humanize.Comma(int64(g.Leaves())))
		if g.ExceedsWarning {
			label += " [large]"
		}
		return label
	}
	return entry.Path()
}
