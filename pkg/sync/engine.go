package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/compare"
	"github.com/sdejongh/treereconcile/pkg/grouping"
	"github.com/sdejongh/treereconcile/pkg/logging"
	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/storage"
)

var (
	// ErrMaxDepthExceeded is recorded when a directory lies deeper than the
	// configured maximum below its task root
	ErrMaxDepthExceeded = errors.New("maximum directory depth exceeded")
	// ErrSourceMissing is recorded when a task source vanished but its
	// target still exists
	ErrSourceMissing = errors.New("source does not exist")
)

// EngineProgress is a point in time view of a running DiffEngine
type EngineProgress struct {
	FilesScanned int64
	DirsScanned  int64
	ItemsFound   int64
}

// DiffEngine walks one source/target pair and produces the backup entries
// reconciling the target with the source. An engine runs once.
type DiffEngine struct {
	task     models.Task
	config   ScanConfig
	resolver Resolver
	logger   logging.Logger

	metadata *compare.MetadataComparator
	content  compare.ContentComparator
	exclude  *excluder

	sourceRoot string
	targetRoot string
	result     *TaskResult

	filesScanned atomic.Int64
	dirsScanned  atomic.Int64
	itemsFound   atomic.Int64
}

// NewDiffEngine creates a DiffEngine for task. resolver may be nil.
func NewDiffEngine(task models.Task, config ScanConfig, resolver Resolver, logger logging.Logger) *DiffEngine {
	config = config.normalized()
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &DiffEngine{
		task:     task,
		config:   config,
		resolver: resolver,
		logger: logger.WithFields(logging.Fields{
			"task": task.Label(),
		}),
		metadata: compare.NewMetadataComparator(config.TimeTolerance),
		content:  compare.NewBinaryComparator(config.BufferSize),
		exclude:  newExcluder(config.Exclude),
	}
}

// Progress returns the current scan progress. It is safe to call while Run
// is in progress.
func (e *DiffEngine) Progress() EngineProgress {
	return EngineProgress{
		FilesScanned: e.filesScanned.Load(),
		DirsScanned:  e.dirsScanned.Load(),
		ItemsFound:   e.itemsFound.Load(),
	}
}

// Run scans the task. Read errors never abort the scan: they are recorded
// in the result and the remaining paths are still compared. Cancelling ctx
// stops the recursion at the next directory boundary.
func (e *DiffEngine) Run(ctx context.Context) *TaskResult {
	start := time.Now()
	e.result = &TaskResult{Task: e.task}
	defer func() {
		e.result.Counters.FilesScanned = int(e.filesScanned.Load())
		e.result.Counters.DirsScanned = int(e.dirsScanned.Load())
		e.result.finish(ctx.Err() != nil, start)
	}()

	if err := e.task.Validate(); err != nil {
		e.result.State = TaskFailed
		e.result.Status = err.Error()
		return e.result
	}

	var err error
	if e.sourceRoot, err = storage.NormalizePath(e.task.Source); err != nil {
		e.result.State = TaskFailed
		e.result.Status = err.Error()
		return e.result
	}
	if e.targetRoot, err = storage.NormalizePath(e.task.Target); err != nil {
		e.result.State = TaskFailed
		e.result.Status = err.Error()
		return e.result
	}

	e.logger.Info(ctx, "Scanning task", logging.Fields{
		"source":          e.sourceRoot,
		"target":          e.targetRoot,
		"compare_content": e.task.CompareContent,
	})

	pair := storage.NewPathPair(e.sourceRoot, e.targetRoot)
	src, err := pair.SourceAttributes()
	if err != nil {
		e.fail(ctx, pair.Source, err)
		return e.result
	}
	tgt, err := pair.TargetAttributes()
	if err != nil {
		e.fail(ctx, pair.Target, err)
		return e.result
	}

	switch {
	case !src.Exists && !tgt.Exists:
		e.logger.Warn(ctx, "Neither source nor target exists", nil)
	case !src.Exists:
		e.fail(ctx, pair.Source, ErrSourceMissing)
	case !src.IsDir:
		e.scanFile(ctx, pair, src, tgt)
	default:
		e.scanDir(ctx, pair, src, tgt, "", 0)
	}

	e.logger.Info(ctx, "Task scanned", logging.Fields{
		"items":  e.itemsFound.Load(),
		"errors": len(e.result.FailedPaths),
	})
	return e.result
}

// scanFile handles a task whose source is a single file
func (e *DiffEngine) scanFile(ctx context.Context, pair *storage.PathPair, src, tgt storage.Attributes) {
	e.filesScanned.Add(1)
	ancestor := filepath.Dir(pair.Source)

	switch {
	case !tgt.Exists:
		e.emit(ctx, backup.NewItem(pair.Source, pair.Target, models.ActionCopyNew, src.Size), ancestor)
	case tgt.IsDir:
		e.emitReplacement(ctx,
			backup.NewItem("", pair.Target, models.ActionDeleteDir, -e.treeSize(ctx, pair.Target)),
			backup.NewItem(pair.Source, pair.Target, models.ActionCopyNew, src.Size),
			ancestor)
	default:
		e.compareFiles(ctx, pair, src, tgt, ancestor)
	}
}

// scanDir reconciles the source directory of pair with its target.
// rel is the path of the directory relative to the task root.
func (e *DiffEngine) scanDir(ctx context.Context, pair *storage.PathPair, src, tgt storage.Attributes, rel string, depth int) {
	if ctx.Err() != nil {
		return
	}
	if depth > e.config.MaxDepth {
		err := fmt.Errorf("%w: %d levels below %s", ErrMaxDepthExceeded, depth, e.sourceRoot)
		e.logger.Error(ctx, "Directory too deep, subtree skipped", err, logging.Fields{"path": pair.Source})
		e.recordFailure(pair.Source)
		return
	}

	if tgt.Exists && !tgt.IsDir {
		// A file is in the way of the directory
		e.emitReplacement(ctx,
			backup.NewItem("", pair.Target, models.ActionDelete, -tgt.Size),
			backup.NewItem(pair.Source, pair.Target, models.ActionCopyTree, e.treeSize(ctx, pair.Source)),
			pair.Source)
		return
	}
	if !tgt.Exists {
		e.emit(ctx, backup.NewItem(pair.Source, pair.Target, models.ActionCopyTree, e.treeSize(ctx, pair.Source)), pair.Source)
		return
	}

	e.dirsScanned.Add(1)

	sourceEntries, err := os.ReadDir(pair.Source)
	if err != nil {
		e.fail(ctx, pair.Source, err)
		return
	}
	targetEntries, err := os.ReadDir(pair.Target)
	if err != nil {
		e.fail(ctx, pair.Target, err)
		return
	}

	sourceByName := make(map[string]fs.DirEntry, len(sourceEntries))
	for _, entry := range sourceEntries {
		sourceByName[entry.Name()] = entry
	}

	// Target children without a source counterpart are deleted
	matched := make(map[string]fs.DirEntry, len(targetEntries))
	for _, entry := range targetEntries {
		childRel := filepath.Join(rel, entry.Name())
		if _, ok := sourceByName[entry.Name()]; ok {
			matched[entry.Name()] = entry
			continue
		}
		child := storage.NewPathPairFromEntries("", nil, filepath.Join(pair.Target, entry.Name()), entry)
		attrs, err := child.TargetAttributes()
		if err != nil {
			e.fail(ctx, child.Target, err)
			continue
		}
		if !attrs.Exists || e.exclude.match(childRel, attrs.IsDir) {
			continue
		}
		if attrs.IsDir {
			e.emit(ctx, backup.NewItem("", child.Target, models.ActionDeleteDir, -e.treeSize(ctx, child.Target)), pair.Source)
		} else {
			e.filesScanned.Add(1)
			e.emit(ctx, backup.NewItem("", child.Target, models.ActionDelete, -attrs.Size), pair.Source)
		}
	}

	for _, entry := range sourceEntries {
		childRel := filepath.Join(rel, entry.Name())
		child := pair.Child(entry.Name(), entry, matched[entry.Name()])

		childSrc, err := child.SourceAttributes()
		if err != nil {
			e.fail(ctx, child.Source, err)
			continue
		}
		if !childSrc.Exists || e.exclude.match(childRel, childSrc.IsDir) {
			continue
		}

		if _, ok := matched[entry.Name()]; !ok {
			if childSrc.IsDir {
				e.emit(ctx, backup.NewItem(child.Source, child.Target, models.ActionCopyTree, e.treeSize(ctx, child.Source)), pair.Source)
			} else {
				e.filesScanned.Add(1)
				e.emit(ctx, backup.NewItem(child.Source, child.Target, models.ActionCopyNew, childSrc.Size), pair.Source)
			}
			continue
		}

		childTgt, err := child.TargetAttributes()
		if err != nil {
			e.fail(ctx, child.Target, err)
			continue
		}

		switch {
		case childSrc.IsDir:
			// Also covers a file in the way and a target that vanished
			e.scanDir(ctx, child, childSrc, childTgt, childRel, depth+1)
		case childTgt.Exists && childTgt.IsDir:
			e.filesScanned.Add(1)
			e.emitReplacement(ctx,
				backup.NewItem("", child.Target, models.ActionDeleteDir, -e.treeSize(ctx, child.Target)),
				backup.NewItem(child.Source, child.Target, models.ActionCopyNew, childSrc.Size),
				pair.Source)
		case !childTgt.Exists:
			e.filesScanned.Add(1)
			e.emit(ctx, backup.NewItem(child.Source, child.Target, models.ActionCopyNew, childSrc.Size), pair.Source)
		default:
			e.filesScanned.Add(1)
			e.compareFiles(ctx, child, childSrc, childTgt, pair.Source)
		}
	}
}

// compareFiles emits the item reconciling two existing files, if any
func (e *DiffEngine) compareFiles(ctx context.Context, pair *storage.PathPair, src, tgt storage.Attributes, ancestor string) {
	sizeDifference := src.Size - tgt.Size

	if e.task.CompareContent {
		cmp, err := e.content.Compare(ctx, pair.Source, pair.Target)
		if err != nil {
			if ctx.Err() == nil {
				e.fail(ctx, pair.Source, err)
			}
			return
		}
		if !cmp.Identical() {
			e.logger.Debug(ctx, "Content differs", logging.Fields{"path": pair.Source, "reason": cmp.Reason})
			item := backup.NewItem(pair.Source, pair.Target, models.ActionCopyReplace, sizeDifference)
			item.Status = models.StatusDiffByContent
			e.emit(ctx, item, ancestor)
		}
		return
	}

	switch e.metadata.Compare(src, tgt) {
	case compare.VerdictSame:
	case compare.VerdictSizeDiffers, compare.VerdictSourceNewer:
		e.emit(ctx, backup.NewItem(pair.Source, pair.Target, models.ActionCopyReplace, sizeDifference), ancestor)
	case compare.VerdictTargetNewer:
		e.targetNewer(ctx, pair, src, sizeDifference, ancestor)
	}
}

// targetNewer applies the ambiguous policy to a target newer than its source
func (e *DiffEngine) targetNewer(ctx context.Context, pair *storage.PathPair, src storage.Attributes, sizeDifference int64, ancestor string) {
	if e.config.AmbiguousPolicy == models.AmbiguousFlag {
		e.emit(ctx, backup.NewItem(pair.Source, pair.Target, models.ActionAmbiguous, sizeDifference), ancestor)
		return
	}

	cmp, err := e.content.Compare(ctx, pair.Source, pair.Target)
	if err != nil {
		if ctx.Err() == nil {
			e.fail(ctx, pair.Source, err)
		}
		return
	}

	switch {
	case cmp.Identical():
		item := backup.NewItem(pair.Source, pair.Target, models.ActionAdjustTime, 0)
		item.Status = models.StatusSameContent
		item.ModTime = src.ModTime
		e.emit(ctx, item, ancestor)
	case e.config.AmbiguousPolicy == models.AmbiguousCopyBack:
		e.emit(ctx, backup.NewItem(pair.Source, pair.Target, models.ActionCopyTarget, 0), ancestor)
	default:
		e.emit(ctx, backup.NewItem(pair.Source, pair.Target, models.ActionAmbiguous, sizeDifference), ancestor)
	}
}

// emit records item and adds it to the result, folding it into a group when
// its directory asks for one
func (e *DiffEngine) emit(ctx context.Context, item *backup.Item, ancestor string) {
	dir := e.record(ctx, item, ancestor)
	if dir == nil || !dir.Grouped() {
		e.result.Entries = append(e.result.Entries, item)
		return
	}

	group, created, err := dir.AddScopedBackupItem(e.task.ID, item)
	if err != nil {
		// Grouping invariant broken: keep the work visible in the flat list
		e.logger.Error(ctx, "Failed to group item", err, logging.Fields{
			"path":      item.Path(),
			"directory": dir.Path,
		})
		e.result.Entries = append(e.result.Entries, item)
		return
	}
	if created {
		e.result.Entries = append(e.result.Entries, group)
	}
}

// emitReplacement adds a removal and the copy taking its place. Both stay
// ungrouped and adjacent, removal first.
func (e *DiffEngine) emitReplacement(ctx context.Context, removal, replacement *backup.Item, ancestor string) {
	e.record(ctx, removal, ancestor)
	e.record(ctx, replacement, ancestor)
	e.result.Entries = append(e.result.Entries, removal, replacement)
}

// record classifies and tallies item, returning its directory group if any
func (e *DiffEngine) record(ctx context.Context, item *backup.Item, ancestor string) *grouping.DirectoryGroup {
	item.Ancestor = ancestor

	dir := e.lookup(item)
	if dir != nil {
		item.Permanence = dir.Permanence
	}
	e.result.Counters.RecordFound(item.Action, item.Permanence, item.SizeDifference)
	e.itemsFound.Add(1)

	e.logger.Debug(ctx, "Difference found", logging.Fields{
		"action": string(item.Action),
		"path":   item.Path(),
		"size":   item.SizeDifference,
	})
	return dir
}

// lookup resolves the directory group of item by target, then by source
func (e *DiffEngine) lookup(item *backup.Item) *grouping.DirectoryGroup {
	if e.resolver == nil {
		return nil
	}
	if item.Target != "" {
		if dir := e.resolver.Lookup(item.Target); dir != nil {
			return dir
		}
	}
	if item.Source != "" {
		return e.resolver.Lookup(item.Source)
	}
	return nil
}

// treeSize returns the size of the tree at root, recording unreadable paths
func (e *DiffEngine) treeSize(ctx context.Context, root string) int64 {
	return storage.TreeSize(root, e.config.MaxDepth, func(path string, err error) {
		e.fail(ctx, path, err)
	})
}

// fail records a path that could not be read
func (e *DiffEngine) fail(ctx context.Context, path string, err error) {
	e.logger.Warn(ctx, "Failed to read path", logging.Fields{
		"path":  path,
		"error": err.Error(),
	})
	e.recordFailure(path)
}

func (e *DiffEngine) recordFailure(path string) {
	e.result.FailedPaths = append(e.result.FailedPaths, path)
	e.result.Counters.RecordScanFailure()
}
