package grouping

import (
	"errors"
	"sync"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/storage"
)

// ErrNotGrouped is returned when adding an item to a directory whose policy
// keeps items in the flat list
var ErrNotGrouped = errors.New("directory does not group items")

// DirectoryGroup assigns a permanence level and a grouping policy to a
// directory and everything below it. Groups are kept per scope, so engines
// scanning different tasks below the same directory never share a group.
// It is safe for concurrent use.
type DirectoryGroup struct {
	Path       string
	Permanence models.PermanenceLevel
	Policy     models.GroupingPolicy

	warningThreshold int64

	mu     sync.Mutex
	scopes map[string]behavior
}

// NewDirectoryGroup creates a directory group. path must be normalized.
// Groups flag members larger than warningThreshold bytes.
func NewDirectoryGroup(path string, permanence models.PermanenceLevel, policy models.GroupingPolicy, warningThreshold int64) *DirectoryGroup {
	return &DirectoryGroup{
		Path:             path,
		Permanence:       permanence,
		Policy:           policy,
		warningThreshold: warningThreshold,
		scopes:           make(map[string]behavior),
	}
}

// AddBackupItem folds item into the group matching its action and status,
// creating that group on first use. created reports whether the returned
// group is new, so the caller registers it exactly once.
func (d *DirectoryGroup) AddBackupItem(item *backup.Item) (group *backup.Group, created bool, err error) {
	return d.AddScopedBackupItem("", item)
}

// AddScopedBackupItem is AddBackupItem with groups private to scope, such as
// the ID of the task being scanned
func (d *DirectoryGroup) AddScopedBackupItem(scope string, item *backup.Item) (group *backup.Group, created bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.scopes[scope]
	if !ok {
		b = newBehavior(d.Policy, d.Path, d.warningThreshold)
		d.scopes[scope] = b
	}
	return b.add(d.itemPath(item), item)
}

// Grouped reports whether the policy folds items into groups
func (d *DirectoryGroup) Grouped() bool {
	return d.Policy != models.GroupNone
}

// Clear forgets every group built so far in every scope but keeps the policy
func (d *DirectoryGroup) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scopes = make(map[string]behavior)
}

// itemPath returns the side of item that lies below the directory
func (d *DirectoryGroup) itemPath(item *backup.Item) string {
	if item.Target != "" && storage.IsWithin(item.Target, d.Path) {
		return item.Target
	}
	return item.Source
}

// behavior is the policy specific part of a DirectoryGroup
type behavior interface {
	add(path string, item *backup.Item) (*backup.Group, bool, error)
}

// newBehavior returns the behavior implementing policy for the directory root
func newBehavior(policy models.GroupingPolicy, root string, warningThreshold int64) behavior {
	switch policy {
	case models.GroupAll:
		return newGroupAll(root, warningThreshold)
	case models.GroupSubItems:
		return &groupSubItems{root: root, warningThreshold: warningThreshold, children: make(map[string]*groupAll)}
	default:
		return doNotGroup{}
	}
}

type doNotGroup struct{}

func (doNotGroup) add(string, *backup.Item) (*backup.Group, bool, error) {
	return nil, false, ErrNotGrouped
}

type tableKey struct {
	action models.BackupAction
	status models.BackupStatus
}

// groupAll keeps one group per (action, status) rooted at the directory
type groupAll struct {
	root             string
	warningThreshold int64
	groups           map[tableKey]*backup.Group
}

func newGroupAll(root string, warningThreshold int64) *groupAll {
	return &groupAll{
		root:             root,
		warningThreshold: warningThreshold,
		groups:           make(map[tableKey]*backup.Group),
	}
}

func (g *groupAll) add(_ string, item *backup.Item) (*backup.Group, bool, error) {
	key := tableKey{action: item.Action, status: item.Status}
	group, ok := g.groups[key]
	created := false
	if !ok {
		group = backup.NewGroup(g.root, item.Key(), g.warningThreshold)
		created = true
	}
	if err := group.TryAdd(item); err != nil {
		return nil, false, err
	}
	if created {
		g.groups[key] = group
	}
	return group, created, nil
}

// groupSubItems lazily creates one groupAll per immediate child directory
type groupSubItems struct {
	root             string
	warningThreshold int64
	children         map[string]*groupAll
}

func (g *groupSubItems) add(path string, item *backup.Item) (*backup.Group, bool, error) {
	child := storage.ImmediateChild(g.root, path)
	if child == "" {
		// The directory itself
		child = g.root
	}
	sub, ok := g.children[child]
	if !ok {
		sub = newGroupAll(child, g.warningThreshold)
		g.children[child] = sub
	}
	return sub.add(path, item)
}

