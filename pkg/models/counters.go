package models

// ActionCounts holds one counter per BackupAction
type ActionCounts struct {
	CopyNew     int `json:"copy_new"`
	CopyReplace int `json:"copy_replace"`
	CopyTree    int `json:"copy_tree"`
	Delete      int `json:"delete"`
	DeleteDir   int `json:"delete_dir"`
	Ambiguous   int `json:"ambiguous"`
	CopyTarget  int `json:"copy_target"`
	AdjustTime  int `json:"adjust_time"`
}

// Inc increments the counter of action a
func (c *ActionCounts) Inc(a BackupAction) {
	switch a {
	case ActionCopyNew:
		c.CopyNew++
	case ActionCopyReplace:
		c.CopyReplace++
	case ActionCopyTree:
		c.CopyTree++
	case ActionDelete:
		c.Delete++
	case ActionDeleteDir:
		c.DeleteDir++
	case ActionAmbiguous:
		c.Ambiguous++
	case ActionCopyTarget:
		c.CopyTarget++
	case ActionAdjustTime:
		c.AdjustTime++
	}
}

// Get returns the counter of action a
func (c ActionCounts) Get(a BackupAction) int {
	switch a {
	case ActionCopyNew:
		return c.CopyNew
	case ActionCopyReplace:
		return c.CopyReplace
	case ActionCopyTree:
		return c.CopyTree
	case ActionDelete:
		return c.Delete
	case ActionDeleteDir:
		return c.DeleteDir
	case ActionAmbiguous:
		return c.Ambiguous
	case ActionCopyTarget:
		return c.CopyTarget
	case ActionAdjustTime:
		return c.AdjustTime
	}
	return 0
}

// Total sums every action counter
func (c ActionCounts) Total() int {
	return c.CopyNew + c.CopyReplace + c.CopyTree + c.Delete +
		c.DeleteDir + c.Ambiguous + c.CopyTarget + c.AdjustTime
}

// Add adds o to c field by field
func (c *ActionCounts) Add(o ActionCounts) {
	c.CopyNew += o.CopyNew
	c.CopyReplace += o.CopyReplace
	c.CopyTree += o.CopyTree
	c.Delete += o.Delete
	c.DeleteDir += o.DeleteDir
	c.Ambiguous += o.Ambiguous
	c.CopyTarget += o.CopyTarget
	c.AdjustTime += o.AdjustTime
}

// Counters aggregates scan and execution tallies. A scan task owns one
// instance; the run-level aggregate is the pointwise sum of all of them.
// Counters are not safe for concurrent mutation.
type Counters struct {
	// Scan
	FilesScanned int `json:"files_scanned"`
	DirsScanned  int `json:"dirs_scanned"`
	ScanFailures int `json:"scan_failures"`

	// Found counts items emitted by the scan, Done counts items executed
	Found ActionCounts `json:"found"`
	Done  ActionCounts `json:"done"`

	// Execution outcome by side
	SourceProcessed int `json:"source_processed"`
	TargetProcessed int `json:"target_processed"`
	SourceFailed    int `json:"source_failed"`
	TargetFailed    int `json:"target_failed"`

	// SizeDelta is the signed expected size change of the target, in bytes
	SizeDelta int64 `json:"size_delta"`

	// Items found per permanence level
	HighPermanence   int `json:"high_permanence"`
	MediumPermanence int `json:"medium_permanence"`
	LowPermanence    int `json:"low_permanence"`
}

// Add adds o to c field by field
func (c *Counters) Add(o Counters) {
	c.FilesScanned += o.FilesScanned
	c.DirsScanned += o.DirsScanned
	c.ScanFailures += o.ScanFailures
	c.Found.Add(o.Found)
	c.Done.Add(o.Done)
	c.SourceProcessed += o.SourceProcessed
	c.TargetProcessed += o.TargetProcessed
	c.SourceFailed += o.SourceFailed
	c.TargetFailed += o.TargetFailed
	c.SizeDelta += o.SizeDelta
	c.HighPermanence += o.HighPermanence
	c.MediumPermanence += o.MediumPermanence
	c.LowPermanence += o.LowPermanence
}

// Sum returns the pointwise sum of a and b
func Sum(a, b Counters) Counters {
	a.Add(b)
	return a
}

// Reset sets every counter back to zero
func (c *Counters) Reset() {
	*c = Counters{}
}

// RecordFound tallies an item emitted by the scan
func (c *Counters) RecordFound(a BackupAction, p PermanenceLevel, sizeDifference int64) {
	c.Found.Inc(a)
	c.SizeDelta += sizeDifference
	switch p {
	case PermanenceHigh:
		c.HighPermanence++
	case PermanenceLow:
		c.LowPermanence++
	default:
		c.MediumPermanence++
	}
}

// RecordDone tallies a successfully executed item
func (c *Counters) RecordDone(a BackupAction) {
	c.Done.Inc(a)
	if a.IsTargetSide() {
		c.TargetProcessed++
	} else {
		c.SourceProcessed++
	}
}

// RecordFailed tallies an item whose execution failed
func (c *Counters) RecordFailed(a BackupAction) {
	if a.IsTargetSide() {
		c.TargetFailed++
	} else {
		c.SourceFailed++
	}
}

// RecordScanFailure tallies a path the scan could not read
func (c *Counters) RecordScanFailure() {
	c.ScanFailures++
}

// Failures returns every failure recorded, scan and execution alike
func (c Counters) Failures() int {
	return c.ScanFailures + c.SourceFailed + c.TargetFailed
}

// Processed returns the number of successfully executed items
func (c Counters) Processed() int {
	return c.SourceProcessed + c.TargetProcessed
}
