package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/grouping"
	"github.com/sdejongh/treereconcile/pkg/models"
)

// testTree helps building source and target trees with controlled times
type testTree struct {
	t      *testing.T
	root   string
	source string
	target string
	base   time.Time
}

func newTestTree(t *testing.T) *testTree {
	t.Helper()
	root := t.TempDir()
	tree := &testTree{
		t:      t,
		root:   root,
		source: filepath.Join(root, "source"),
		target: filepath.Join(root, "target"),
		base:   time.Now().Add(-time.Hour).Truncate(time.Second),
	}
	tree.mkdir(tree.source)
	tree.mkdir(tree.target)
	return tree
}

func (tr *testTree) mkdir(path string) {
	tr.t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		tr.t.Fatalf("failed to create dir: %v", err)
	}
}

// write creates dir/rel with content and a modification time offset from base
func (tr *testTree) write(dir, rel, content string, offset time.Duration) string {
	tr.t.Helper()
	path := filepath.Join(dir, rel)
	tr.mkdir(filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tr.t.Fatalf("failed to write file: %v", err)
	}
	when := tr.base.Add(offset)
	if err := os.Chtimes(path, when, when); err != nil {
		tr.t.Fatalf("failed to set times: %v", err)
	}
	return path
}

// both writes the same file on both sides
func (tr *testTree) both(rel, content string) {
	tr.write(tr.source, rel, content, 0)
	tr.write(tr.target, rel, content, 0)
}

func (tr *testTree) task() models.Task {
	return models.Task{ID: "t1", Name: "test", Source: tr.source, Target: tr.target}
}

func (tr *testTree) scan(config ScanConfig, resolver Resolver) *TaskResult {
	tr.t.Helper()
	return NewDiffEngine(tr.task(), config, resolver, nil).Run(context.Background())
}

// byTarget indexes the items of entries by target path relative to the target root
func (tr *testTree) byTarget(entries []backup.Entry) map[string][]*backup.Item {
	out := make(map[string][]*backup.Item)
	for _, item := range backup.Items(entries) {
		rel, err := filepath.Rel(tr.target, item.Target)
		if err != nil {
			tr.t.Fatalf("item outside target: %s", item.Target)
		}
		out[filepath.ToSlash(rel)] = append(out[filepath.ToSlash(rel)], item)
	}
	return out
}

func expectItem(t *testing.T, items map[string][]*backup.Item, rel string, action models.BackupAction, size int64) *backup.Item {
	t.Helper()
	for _, item := range items[rel] {
		if item.Action == action {
			if item.SizeDifference != size {
				t.Errorf("%s %s size = %d, want %d", action, rel, item.SizeDifference, size)
			}
			return item
		}
	}
	t.Errorf("missing %s item for %s (have %v)", action, rel, items[rel])
	return nil
}

// ============== DiffEngine Tests ==============

func TestDiffEngineIdenticalTrees(t *testing.T) {
	tr := newTestTree(t)
	tr.both("a.txt", "alpha")
	tr.both("sub/b.txt", "beta")
	tr.both("sub/deep/c.txt", "gamma")
	tr.mkdir(filepath.Join(tr.source, "empty"))
	tr.mkdir(filepath.Join(tr.target, "empty"))

	result := tr.scan(DefaultScanConfig(), nil)

	if len(result.Entries) != 0 {
		t.Errorf("Entries = %d, want 0: %v", len(result.Entries), tr.byTarget(result.Entries))
	}
	if result.State != TaskCompleted || result.Status != "up to date" {
		t.Errorf("State = %s (%s), want completed/up to date", result.State, result.Status)
	}
	if result.Counters.FilesScanned != 3 {
		t.Errorf("FilesScanned = %d, want 3", result.Counters.FilesScanned)
	}
	if result.Counters.DirsScanned != 4 {
		t.Errorf("DirsScanned = %d, want 4", result.Counters.DirsScanned)
	}
}

func TestDiffEngineDeletes(t *testing.T) {
	tr := newTestTree(t)
	tr.both("keep.txt", "k")
	tr.write(tr.target, "stale.txt", "12345", 0)
	tr.write(tr.target, "old/x.bin", "abc", 0)
	tr.write(tr.target, "old/nested/y.bin", "defg", 0)

	result := tr.scan(DefaultScanConfig(), nil)
	items := tr.byTarget(result.Entries)

	if len(backup.Items(result.Entries)) != 2 {
		t.Fatalf("items = %v, want 2", items)
	}
	expectItem(t, items, "stale.txt", models.ActionDelete, -5)
	expectItem(t, items, "old", models.ActionDeleteDir, -7)

	if result.Counters.Found.Delete != 1 || result.Counters.Found.DeleteDir != 1 {
		t.Errorf("Found = %+v", result.Counters.Found)
	}
	if result.Counters.SizeDelta != -12 {
		t.Errorf("SizeDelta = %d, want -12", result.Counters.SizeDelta)
	}
}

func TestDiffEngineNewFiles(t *testing.T) {
	tr := newTestTree(t)
	tr.write(tr.source, "new.txt", "hello", 0)
	tr.write(tr.source, "newdir/a.txt", "aa", 0)
	tr.write(tr.source, "newdir/b/c.txt", "ccc", 0)

	result := tr.scan(DefaultScanConfig(), nil)
	items := tr.byTarget(result.Entries)

	expectItem(t, items, "new.txt", models.ActionCopyNew, 5)
	expectItem(t, items, "newdir", models.ActionCopyTree, 5)
	if len(items) != 2 {
		t.Errorf("a new subtree should produce one item, got %v", items)
	}
}

func TestDiffEngineNewerFiles(t *testing.T) {
	tr := newTestTree(t)
	tr.write(tr.source, "src-newer.txt", "hello world", 10*time.Second)
	tr.write(tr.target, "src-newer.txt", "hello", 0)
	tr.write(tr.source, "tgt-newer.txt", "abc", 0)
	tr.write(tr.target, "tgt-newer.txt", "abcdef", 10*time.Second)
	tr.write(tr.source, "resized.txt", "1234", 0)
	tr.write(tr.target, "resized.txt", "12", 0)

	result := tr.scan(DefaultScanConfig(), nil)
	items := tr.byTarget(result.Entries)

	expectItem(t, items, "src-newer.txt", models.ActionCopyReplace, 6)
	ambiguous := expectItem(t, items, "tgt-newer.txt", models.ActionAmbiguous, -3)
	if ambiguous != nil && ambiguous.Status != models.StatusDifferent {
		t.Errorf("ambiguous status = %s, want different", ambiguous.Status)
	}
	expectItem(t, items, "resized.txt", models.ActionCopyReplace, 2)
}

func TestDiffEngineTimeTolerance(t *testing.T) {
	tr := newTestTree(t)
	tr.write(tr.source, "a.txt", "same", time.Second)
	tr.write(tr.target, "a.txt", "same", 0)

	config := DefaultScanConfig()
	config.TimeTolerance = 2 * time.Second
	if result := tr.scan(config, nil); len(result.Entries) != 0 {
		t.Errorf("times within tolerance should compare equal, got %d entries", len(result.Entries))
	}
}

func TestDiffEngineAmbiguousPolicies(t *testing.T) {
	tests := []struct {
		name       string
		policy     models.AmbiguousPolicy
		sameAction models.BackupAction
		diffAction models.BackupAction
	}{
		{"Flag", models.AmbiguousFlag, models.ActionAmbiguous, models.ActionAmbiguous},
		{"Verify", models.AmbiguousVerify, models.ActionAdjustTime, models.ActionAmbiguous},
		{"CopyBack", models.AmbiguousCopyBack, models.ActionAdjustTime, models.ActionCopyTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTree(t)
			tr.write(tr.source, "same.txt", "content", 0)
			tr.write(tr.target, "same.txt", "content", time.Minute)
			tr.write(tr.source, "diff.txt", "content", 0)
			tr.write(tr.target, "diff.txt", "CONTENT", time.Minute)

			config := DefaultScanConfig()
			config.AmbiguousPolicy = tt.policy
			items := tr.byTarget(tr.scan(config, nil).Entries)

			same := items["same.txt"]
			if len(same) != 1 || same[0].Action != tt.sameAction {
				t.Fatalf("same.txt items = %v, want %s", same, tt.sameAction)
			}
			if tt.sameAction == models.ActionAdjustTime {
				if same[0].Status != models.StatusSameContent || same[0].SizeDifference != 0 {
					t.Errorf("adjust item = %+v, want same_content with size 0", same[0])
				}
				if !same[0].ModTime.Equal(tr.base) {
					t.Errorf("ModTime = %v, want source time %v", same[0].ModTime, tr.base)
				}
			}
			diff := items["diff.txt"]
			if len(diff) != 1 || diff[0].Action != tt.diffAction {
				t.Errorf("diff.txt items = %v, want %s", diff, tt.diffAction)
			}
		})
	}
}

func TestDiffEngineContentMode(t *testing.T) {
	tr := newTestTree(t)
	tr.both("same.txt", "identical")
	tr.write(tr.source, "changed.txt", "abcd", 0)
	tr.write(tr.target, "changed.txt", "abXd", 0)
	// Newer target with equal content is not a difference in content mode
	tr.write(tr.source, "touched.txt", "xyz", 0)
	tr.write(tr.target, "touched.txt", "xyz", time.Minute)

	task := tr.task()
	task.CompareContent = true
	result := NewDiffEngine(task, DefaultScanConfig(), nil, nil).Run(context.Background())
	items := tr.byTarget(result.Entries)

	if len(items) != 1 {
		t.Fatalf("items = %v, want only changed.txt", items)
	}
	item := expectItem(t, items, "changed.txt", models.ActionCopyReplace, 0)
	if item != nil && item.Status != models.StatusDiffByContent {
		t.Errorf("Status = %s, want %s", item.Status, models.StatusDiffByContent)
	}
}

func TestDiffEngineTypeConflicts(t *testing.T) {
	tr := newTestTree(t)
	// Directory in source, file in target
	tr.write(tr.source, "was-file/inner.txt", "inner", 0)
	tr.write(tr.target, "was-file", "1234", 0)
	// File in source, directory in target
	tr.write(tr.source, "was-dir", "xy", 0)
	tr.write(tr.target, "was-dir/a.txt", "abc", 0)

	result := tr.scan(DefaultScanConfig(), nil)
	items := tr.byTarget(result.Entries)

	expectItem(t, items, "was-file", models.ActionDelete, -4)
	expectItem(t, items, "was-file", models.ActionCopyTree, 5)
	expectItem(t, items, "was-dir", models.ActionDeleteDir, -3)
	expectItem(t, items, "was-dir", models.ActionCopyNew, 2)

	// Deletion must precede the copy in list order
	for _, rel := range []string{"was-file", "was-dir"} {
		if got := items[rel]; len(got) == 2 && !got[0].Action.IsTargetSide() {
			t.Errorf("%s: first item = %s, want the deletion", rel, got[0].Action)
		}
	}
}

func TestDiffEngineTypeConflictsGrouped(t *testing.T) {
	for _, policy := range []models.GroupingPolicy{models.GroupAll, models.GroupSubItems} {
		t.Run(string(policy), func(t *testing.T) {
			tr := newTestTree(t)
			// Sorted first, so its copy group exists before the conflicts
			tr.write(tr.source, "0new.txt", "n", 0)
			tr.write(tr.source, "0tree/t.txt", "t", 0)
			tr.write(tr.source, "a", "file now", 0)
			tr.write(tr.target, "a/x.txt", "old", 0)
			tr.write(tr.source, "b/inner.txt", "dir now", 0)
			tr.write(tr.target, "b", "old", 0)

			idx, err := grouping.NewIndex([]grouping.Rule{{Path: tr.target, Policy: policy}}, 0)
			if err != nil {
				t.Fatalf("NewIndex() error = %v", err)
			}
			result := tr.scan(DefaultScanConfig(), idx)

			for _, pair := range []struct {
				rel             string
				removal, copied models.BackupAction
			}{
				{"a", models.ActionDeleteDir, models.ActionCopyNew},
				{"b", models.ActionDelete, models.ActionCopyTree},
			} {
				target := filepath.Join(tr.target, pair.rel)
				at := -1
				for i, entry := range result.Entries {
					if item, ok := entry.(*backup.Item); ok && item.Target == target && item.Action == pair.removal {
						at = i
					}
				}
				if at < 0 || at+1 >= len(result.Entries) {
					t.Fatalf("%s: %s is not an ungrouped entry followed by its copy", pair.rel, pair.removal)
				}
				next, ok := result.Entries[at+1].(*backup.Item)
				if !ok || next.Target != target || next.Action != pair.copied {
					t.Errorf("%s: entry after %s = %v, want ungrouped %s", pair.rel, pair.removal, result.Entries[at+1].Key(), pair.copied)
				}
			}
		})
	}
}

func TestDiffEngineMissingTarget(t *testing.T) {
	tr := newTestTree(t)
	tr.write(tr.source, "a.txt", "aa", 0)
	tr.write(tr.source, "b/c.txt", "ccc", 0)

	task := tr.task()
	task.Target = filepath.Join(tr.root, "fresh")
	result := NewDiffEngine(task, DefaultScanConfig(), nil, nil).Run(context.Background())

	items := backup.Items(result.Entries)
	if len(items) != 1 || items[0].Action != models.ActionCopyTree {
		t.Fatalf("items = %v, want a single copy_tree", items)
	}
	if items[0].SizeDifference != 5 {
		t.Errorf("SizeDifference = %d, want 5", items[0].SizeDifference)
	}
}

func TestDiffEngineMissingSource(t *testing.T) {
	t.Run("TargetExists", func(t *testing.T) {
		tr := newTestTree(t)
		tr.write(tr.target, "precious.txt", "do not delete", 0)

		task := tr.task()
		task.Source = filepath.Join(tr.root, "gone")
		result := NewDiffEngine(task, DefaultScanConfig(), nil, nil).Run(context.Background())

		if len(result.Entries) != 0 {
			t.Errorf("a vanished source must not delete the target, got %d entries", len(result.Entries))
		}
		if len(result.FailedPaths) != 1 || result.State != TaskCompletedWithErrors {
			t.Errorf("FailedPaths = %v, State = %s", result.FailedPaths, result.State)
		}
	})

	t.Run("NeitherExists", func(t *testing.T) {
		tr := newTestTree(t)
		task := models.Task{Source: filepath.Join(tr.root, "a"), Target: filepath.Join(tr.root, "b")}
		result := NewDiffEngine(task, DefaultScanConfig(), nil, nil).Run(context.Background())

		if len(result.Entries) != 0 || len(result.FailedPaths) != 0 {
			t.Errorf("result = %+v, want nothing", result)
		}
	})
}

func TestDiffEngineFileTask(t *testing.T) {
	tr := newTestTree(t)
	src := tr.write(tr.source, "single.txt", "one file", 10*time.Second)

	t.Run("AbsentTarget", func(t *testing.T) {
		task := models.Task{Source: src, Target: filepath.Join(tr.target, "single.txt")}
		result := NewDiffEngine(task, DefaultScanConfig(), nil, nil).Run(context.Background())

		items := backup.Items(result.Entries)
		if len(items) != 1 || items[0].Action != models.ActionCopyNew || items[0].SizeDifference != 8 {
			t.Errorf("items = %v, want copy_new of 8 bytes", items)
		}
		if _, err := os.Stat(task.Target); !os.IsNotExist(err) {
			t.Error("scanning must not create the target")
		}
	})

	t.Run("OlderTarget", func(t *testing.T) {
		tgt := tr.write(tr.target, "older.txt", "old", 0)
		task := models.Task{Source: src, Target: tgt}
		result := NewDiffEngine(task, DefaultScanConfig(), nil, nil).Run(context.Background())

		items := backup.Items(result.Entries)
		if len(items) != 1 || items[0].Action != models.ActionCopyReplace || items[0].SizeDifference != 5 {
			t.Errorf("items = %v, want copy_replace of 5 bytes", items)
		}
	})
}

func TestDiffEngineMaxDepth(t *testing.T) {
	tr := newTestTree(t)
	tr.both("ok.txt", "fine")
	tr.write(tr.source, "a/b/deep.txt", "new", 0)
	tr.mkdir(filepath.Join(tr.target, "a", "b"))

	config := DefaultScanConfig()
	config.MaxDepth = 1
	result := tr.scan(config, nil)

	want := filepath.Join(tr.source, "a", "b")
	if len(result.FailedPaths) != 1 || result.FailedPaths[0] != want {
		t.Errorf("FailedPaths = %v, want [%s]", result.FailedPaths, want)
	}
	if len(result.Entries) != 0 {
		t.Errorf("the too deep subtree must be skipped, got %v", tr.byTarget(result.Entries))
	}
	if result.Counters.ScanFailures != 1 {
		t.Errorf("ScanFailures = %d, want 1", result.Counters.ScanFailures)
	}
}

func TestDiffEngineUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	tr := newTestTree(t)
	tr.write(tr.source, "locked/secret.txt", "s", 0)
	tr.mkdir(filepath.Join(tr.target, "locked"))
	tr.write(tr.source, "sibling.txt", "visible", 0)

	locked := filepath.Join(tr.source, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	result := tr.scan(DefaultScanConfig(), nil)

	if len(result.FailedPaths) != 1 || result.FailedPaths[0] != locked {
		t.Errorf("FailedPaths = %v, want [%s]", result.FailedPaths, locked)
	}
	expectItem(t, tr.byTarget(result.Entries), "sibling.txt", models.ActionCopyNew, 7)
	if result.State != TaskCompletedWithErrors {
		t.Errorf("State = %s, want %s", result.State, TaskCompletedWithErrors)
	}
}

func TestDiffEngineCancelled(t *testing.T) {
	tr := newTestTree(t)
	tr.write(tr.source, "a.txt", "a", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := NewDiffEngine(tr.task(), DefaultScanConfig(), nil, nil).Run(ctx)

	if result.State != TaskCancelled {
		t.Errorf("State = %s, want %s", result.State, TaskCancelled)
	}
	if len(result.Entries) != 0 {
		t.Errorf("Entries = %d, want 0", len(result.Entries))
	}
}

func TestDiffEngineExclude(t *testing.T) {
	tr := newTestTree(t)
	tr.write(tr.source, "keep.txt", "k", 0)
	tr.write(tr.source, "skip.tmp", "t", 0)
	tr.write(tr.source, ".git/HEAD", "ref", 0)
	tr.write(tr.target, "cache/blob", "b", 0)
	tr.write(tr.source, "sub/build/out.o", "o", 0)
	tr.mkdir(filepath.Join(tr.target, "sub"))

	config := DefaultScanConfig()
	config.Exclude = []string{"*.tmp", ".git/", "cache/", "**/build"}
	items := tr.byTarget(tr.scan(config, nil).Entries)

	if len(items) != 1 {
		t.Errorf("items = %v, want only keep.txt", items)
	}
	expectItem(t, items, "keep.txt", models.ActionCopyNew, 1)
}

func TestDiffEngineGrouping(t *testing.T) {
	tr := newTestTree(t)
	tr.write(tr.source, "photos/a.jpg", "aaaa", 0)
	tr.write(tr.source, "photos/b.jpg", "bb", 0)
	tr.mkdir(filepath.Join(tr.target, "photos"))
	tr.write(tr.source, "loose.txt", "l", 0)

	idx, err := grouping.NewIndex([]grouping.Rule{
		{Path: filepath.Join(tr.target, "photos"), Permanence: models.PermanenceHigh, Policy: models.GroupAll},
	}, 0)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}

	result := tr.scan(DefaultScanConfig(), idx)

	if len(result.Entries) != 2 {
		t.Fatalf("Entries = %d, want one group and one item", len(result.Entries))
	}
	var group *backup.Group
	for _, e := range result.Entries {
		if g, ok := e.(*backup.Group); ok {
			group = g
		}
	}
	if group == nil {
		t.Fatal("expected a group entry")
	}
	if group.Leaves() != 2 || group.Size() != 6 || group.Permanence != models.PermanenceHigh {
		t.Errorf("group = %d leaves, size %d, permanence %s", group.Leaves(), group.Size(), group.Permanence)
	}
	if result.Counters.HighPermanence != 2 || result.Counters.MediumPermanence != 1 {
		t.Errorf("permanence tallies = %d high, %d medium", result.Counters.HighPermanence, result.Counters.MediumPermanence)
	}
}

func TestDiffEngineProgress(t *testing.T) {
	tr := newTestTree(t)
	tr.write(tr.source, "a.txt", "a", 0)
	tr.write(tr.source, "b.txt", "b", 0)

	engine := NewDiffEngine(tr.task(), DefaultScanConfig(), nil, nil)
	if p := engine.Progress(); p != (EngineProgress{}) {
		t.Errorf("Progress() before Run = %+v, want zero", p)
	}
	engine.Run(context.Background())

	p := engine.Progress()
	if p.FilesScanned != 2 || p.DirsScanned != 1 || p.ItemsFound != 2 {
		t.Errorf("Progress() = %+v", p)
	}
}
