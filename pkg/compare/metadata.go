package compare

import (
	"time"

	"github.com/sdejongh/treereconcile/pkg/storage"
)

// Verdict is the outcome of a metadata comparison between two files
type Verdict int

const (
	// VerdictSame means equal modification time and size
	VerdictSame Verdict = iota
	// VerdictSizeDiffers means equal modification time but different size
	VerdictSizeDiffers
	// VerdictSourceNewer means the source was modified after the target
	VerdictSourceNewer
	// VerdictTargetNewer means the target was modified after the source
	VerdictTargetNewer
)

func (v Verdict) String() string {
	switch v {
	case VerdictSame:
		return "same"
	case VerdictSizeDiffers:
		return "size_differs"
	case VerdictSourceNewer:
		return "source_newer"
	case VerdictTargetNewer:
		return "target_newer"
	default:
		return "unknown"
	}
}

// MetadataComparator compares files by size and modification time
type MetadataComparator struct {
	// Tolerance treats modification times closer than this as equal.
	// Zero compares exactly.
	Tolerance time.Duration
}

// NewMetadataComparator creates a metadata comparator with the given time tolerance
func NewMetadataComparator(tolerance time.Duration) *MetadataComparator {
	if tolerance < 0 {
		tolerance = 0
	}
	return &MetadataComparator{Tolerance: tolerance}
}

// Compare decides how the source file relates to the target file.
// Time ordering wins over size: a newer file on either side is reported as
// such whatever the sizes are.
func (c *MetadataComparator) Compare(source, target storage.Attributes) Verdict {
	diff := source.ModTime.Sub(target.ModTime)
	switch {
	case diff > c.Tolerance:
		return VerdictSourceNewer
	case -diff > c.Tolerance:
		return VerdictTargetNewer
	case source.Size != target.Size:
		return VerdictSizeDiffers
	default:
		return VerdictSame
	}
}

// Name returns the comparator name
func (c *MetadataComparator) Name() string {
	return "metadata"
}
