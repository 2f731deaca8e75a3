package models

// BackupAction is what must happen to a path pair to bring the target in line
// with the source. It is chosen by the scan and never changes afterwards.
type BackupAction string

const (
	// ActionCopyNew copies a file that exists only in the source
	ActionCopyNew BackupAction = "copy_new"
	// ActionCopyReplace overwrites a stale target file
	ActionCopyReplace BackupAction = "copy_replace"
	// ActionCopyTree copies a whole source subtree
	ActionCopyTree BackupAction = "copy_tree"
	// ActionDelete removes a target file with no source counterpart
	ActionDelete BackupAction = "delete"
	// ActionDeleteDir removes a target subtree with no source counterpart
	ActionDeleteDir BackupAction = "delete_dir"
	// ActionAmbiguous marks a target newer than its source
	ActionAmbiguous BackupAction = "ambiguous"
	// ActionCopyTarget copies a newer target back onto the source
	ActionCopyTarget BackupAction = "copy_target"
	// ActionAdjustTime aligns the target timestamp with identical source content
	ActionAdjustTime BackupAction = "adjust_time"
)

// AllActions lists every action in display order
var AllActions = []BackupAction{
	ActionCopyNew,
	ActionCopyReplace,
	ActionCopyTree,
	ActionDelete,
	ActionDeleteDir,
	ActionAmbiguous,
	ActionCopyTarget,
	ActionAdjustTime,
}

// Valid reports whether a is one of the known actions
func (a BackupAction) Valid() bool {
	for _, known := range AllActions {
		if a == known {
			return true
		}
	}
	return false
}

// IsTargetSide reports whether the action only touches the target tree.
// Deletes are bookkept against the target, everything else against the source.
func (a BackupAction) IsTargetSide() bool {
	return a == ActionDelete || a == ActionDeleteDir
}

// BackupStatus tracks an item through execution
type BackupStatus string

const (
	// StatusDifferent is the initial state of every item
	StatusDifferent BackupStatus = "different"
	// StatusDiffByContent is a different item detected by byte comparison
	StatusDiffByContent BackupStatus = "diff_by_content"
	// StatusSameContent marks identical content under a newer target timestamp
	StatusSameContent BackupStatus = "same_content"
	// StatusDone is terminal: the action was applied
	StatusDone BackupStatus = "done"
	// StatusFailed is terminal: the action could not be applied
	StatusFailed BackupStatus = "failed"
)

// IsPending reports whether the item has not been executed yet
func (s BackupStatus) IsPending() bool {
	switch s {
	case StatusDifferent, StatusDiffByContent, StatusSameContent:
		return true
	default:
		return false
	}
}

// PermanenceLevel classifies how critical the accidental loss of a directory is.
// It drives reporting emphasis only.
type PermanenceLevel string

const (
	PermanenceHigh   PermanenceLevel = "high"
	PermanenceMedium PermanenceLevel = "medium"
	PermanenceLow    PermanenceLevel = "low"
)

// DefaultPermanence applies to paths no directory rule covers
const DefaultPermanence = PermanenceMedium

// ParsePermanence parses a permanence level, defaulting the empty string
func ParsePermanence(s string) (PermanenceLevel, error) {
	switch PermanenceLevel(s) {
	case "":
		return DefaultPermanence, nil
	case PermanenceHigh, PermanenceMedium, PermanenceLow:
		return PermanenceLevel(s), nil
	}
	return "", &ValidationError{Field: "permanence", Message: "unknown permanence level " + s}
}

// GroupingPolicy decides how items below a directory are aggregated
type GroupingPolicy string

const (
	// GroupNone routes items into the flat list
	GroupNone GroupingPolicy = "do_not_group"
	// GroupAll folds every item of the same action and status into one group
	GroupAll GroupingPolicy = "group_all"
	// GroupSubItems groups separately per immediate child directory
	GroupSubItems GroupingPolicy = "group_sub_items"
)

// ParseGroupingPolicy parses a grouping policy, defaulting the empty string
func ParseGroupingPolicy(s string) (GroupingPolicy, error) {
	switch GroupingPolicy(s) {
	case "":
		return GroupNone, nil
	case GroupNone, GroupAll, GroupSubItems:
		return GroupingPolicy(s), nil
	}
	return "", &ValidationError{Field: "grouping", Message: "unknown grouping policy " + s}
}

// AmbiguousPolicy decides what happens when a target file is newer than its source
type AmbiguousPolicy string

const (
	// AmbiguousFlag always reports the pair as ambiguous
	AmbiguousFlag AmbiguousPolicy = "flag"
	// AmbiguousVerify compares content first: identical pairs only get their
	// timestamp adjusted, differing pairs stay ambiguous
	AmbiguousVerify AmbiguousPolicy = "verify"
	// AmbiguousCopyBack compares content first: identical pairs get their
	// timestamp adjusted, differing pairs copy the target back onto the source
	AmbiguousCopyBack AmbiguousPolicy = "copy_back"
)

// Valid reports whether p is a known policy
func (p AmbiguousPolicy) Valid() bool {
	switch p {
	case AmbiguousFlag, AmbiguousVerify, AmbiguousCopyBack:
		return true
	}
	return false
}
