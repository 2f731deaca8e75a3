package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/sdejongh/treereconcile/pkg/logging"
	"github.com/sdejongh/treereconcile/pkg/models"
)

// ErrAlreadyExecuted is returned when executing an entry that already reached
// a terminal status
var ErrAlreadyExecuted = errors.New("backup entry already executed")

// Operations is the set of filesystem operations execution relies on
type Operations interface {
	CopyFile(ctx context.Context, src, dst string) error
	CopyTree(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, path string) error
	DeleteTree(ctx context.Context, path string) error
	SetModTime(ctx context.Context, path string, t time.Time) error
	MakeWritable(ctx context.Context, path, template string) error
}

// Key identifies what an entry may be grouped with
type Key struct {
	Action     models.BackupAction
	Status     models.BackupStatus
	Permanence models.PermanenceLevel
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Action, k.Status, k.Permanence)
}

// Entry is either a single Item or a Group of entries
type Entry interface {
	// Key returns the action, status and permanence of the entry
	Key() Key
	// Path returns the target path of an item or the root of a group
	Path() string
	// Size returns the expected change of used space on the target, in bytes
	Size() int64
	// Leaves returns the number of items the entry stands for
	Leaves() int
	// Pending reports whether the entry still has work to do
	Pending() bool
	// Execute applies the entry to the filesystem
	Execute(ctx context.Context, ops Operations, counters *models.Counters, logger logging.Logger) error
}

// Item is one atomic unit of work: a path pair and the action reconciling it
type Item struct {
	Source   string // empty for pure deletions
	Target   string
	Ancestor string // closest existing source ancestor, template for permission recovery

	Action         models.BackupAction
	Status         models.BackupStatus
	SizeDifference int64 // signed, relative to the target
	Permanence     models.PermanenceLevel

	// ModTime is the modification time applied by ActionAdjustTime
	ModTime time.Time

	// Err holds the last execution failure
	Err error
}

// NewItem creates an item in the initial different status with the default
// permanence
func NewItem(source, target string, action models.BackupAction, sizeDifference int64) *Item {
	return &Item{
		Source:         source,
		Target:         target,
		Action:         action,
		Status:         models.StatusDifferent,
		SizeDifference: sizeDifference,
		Permanence:     models.DefaultPermanence,
	}
}

// Key returns the grouping key of the item
func (i *Item) Key() Key {
	return Key{Action: i.Action, Status: i.Status, Permanence: i.Permanence}
}

// Path returns the target path, or the source path when there is no target
func (i *Item) Path() string {
	if i.Target != "" {
		return i.Target
	}
	return i.Source
}

// Size returns the signed size difference
func (i *Item) Size() int64 {
	return i.SizeDifference
}

// Leaves returns 1
func (i *Item) Leaves() int {
	return 1
}

// Pending reports whether the item has not been executed yet
func (i *Item) Pending() bool {
	return i.Status.IsPending()
}

// Execute applies the item action. A permission failure triggers exactly one
// attempt to make the written path writable followed by one retry.
// Failures are recorded on the item and in counters, not returned; the
// returned error is only ErrAlreadyExecuted or a context error.
func (i *Item) Execute(ctx context.Context, ops Operations, counters *models.Counters, logger logging.Logger) error {
	if !i.Pending() {
		return ErrAlreadyExecuted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := logging.Fields{
		"action": string(i.Action),
		"source": i.Source,
		"target": i.Target,
	}

	err := i.apply(ctx, ops)
	if err != nil && errors.Is(err, fs.ErrPermission) {
		logger.Warn(ctx, "Permission denied, making path writable", fields)
		if fixErr := ops.MakeWritable(ctx, i.writtenPath(), i.Ancestor); fixErr != nil {
			logger.Error(ctx, "Failed to make path writable", fixErr, fields)
		} else {
			err = i.apply(ctx, ops)
		}
	}

	if err != nil {
		i.Status = models.StatusFailed
		i.Err = err
		counters.RecordFailed(i.Action)
		logger.Error(ctx, "Backup action failed", err, fields)
		return nil
	}

	i.Status = models.StatusDone
	i.Err = nil
	counters.RecordDone(i.Action)
	logger.Debug(ctx, "Backup action done", fields)
	return nil
}

// apply dispatches the filesystem operation matching the action
func (i *Item) apply(ctx context.Context, ops Operations) error {
	switch i.Action {
	case models.ActionCopyNew, models.ActionCopyReplace, models.ActionAmbiguous:
		return ops.CopyFile(ctx, i.Source, i.Target)
	case models.ActionCopyTarget:
		return ops.CopyFile(ctx, i.Target, i.Source)
	case models.ActionCopyTree:
		return ops.CopyTree(ctx, i.Source, i.Target)
	case models.ActionDelete:
		return ops.Delete(ctx, i.Target)
	case models.ActionDeleteDir:
		return ops.DeleteTree(ctx, i.Target)
	case models.ActionAdjustTime:
		return ops.SetModTime(ctx, i.Target, i.ModTime)
	default:
		return fmt.Errorf("unknown backup action %q", i.Action)
	}
}

// writtenPath returns the path the action modifies
func (i *Item) writtenPath() string {
	if i.Action == models.ActionCopyTarget {
		return i.Source
	}
	return i.Target
}
