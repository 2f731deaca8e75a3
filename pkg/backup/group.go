package backup

import (
	"context"
	"fmt"

	"github.com/sdejongh/treereconcile/pkg/logging"
	"github.com/sdejongh/treereconcile/pkg/models"
)

// InvariantError reports an entry added to a group it does not belong to.
// It signals a programming error.
type InvariantError struct {
	Root  string
	Group Key
	Entry Key
	Path  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cannot add %s (%s) to group %s (%s)", e.Path, e.Entry, e.Root, e.Group)
}

// Group aggregates entries sharing one action, status and permanence level
type Group struct {
	Root       string
	Action     models.BackupAction
	Status     models.BackupStatus
	Permanence models.PermanenceLevel
	Members    []Entry

	SizeDifference int64
	// ExceedsWarning is set when any member is larger than the warning threshold
	ExceedsWarning bool

	warningThreshold int64
}

// NewGroup creates an empty group rooted at root. A warningThreshold of zero
// or less disables the size warning.
func NewGroup(root string, key Key, warningThreshold int64) *Group {
	return &Group{
		Root:             root,
		Action:           key.Action,
		Status:           key.Status,
		Permanence:       key.Permanence,
		warningThreshold: warningThreshold,
	}
}

// Add appends entry to the group. It panics with *InvariantError when the
// entry key differs from the group key.
func (g *Group) Add(entry Entry) {
	if err := g.TryAdd(entry); err != nil {
		panic(err)
	}
}

// TryAdd appends entry to the group, or returns *InvariantError when the
// entry key differs from the group key
func (g *Group) TryAdd(entry Entry) error {
	if entry.Key() != g.Key() {
		return &InvariantError{Root: g.Root, Group: g.Key(), Entry: entry.Key(), Path: entry.Path()}
	}
	g.Members = append(g.Members, entry)
	g.account(entry)
	return nil
}

func (g *Group) account(entry Entry) {
	g.SizeDifference += entry.Size()
	if sub, ok := entry.(*Group); ok && sub.ExceedsWarning {
		g.ExceedsWarning = true
		return
	}
	if g.warningThreshold > 0 && abs(entry.Size()) > g.warningThreshold {
		g.ExceedsWarning = true
	}
}

// Key returns the grouping key of the group
func (g *Group) Key() Key {
	return Key{Action: g.Action, Status: g.Status, Permanence: g.Permanence}
}

// Path returns the group root
func (g *Group) Path() string {
	return g.Root
}

// Size returns the sum of the member sizes
func (g *Group) Size() int64 {
	return g.SizeDifference
}

// Leaves returns the number of items in the group, recursively
func (g *Group) Leaves() int {
	n := 0
	for _, m := range g.Members {
		n += m.Leaves()
	}
	return n
}

// Pending reports whether the group has not been executed yet
func (g *Group) Pending() bool {
	return g.Status.IsPending()
}

// Execute executes every pending member in order. The group is done when
// all members are done and failed otherwise. If ctx is cancelled midway the
// group stays pending and the context error is returned.
func (g *Group) Execute(ctx context.Context, ops Operations, counters *models.Counters, logger logging.Logger) error {
	if !g.Pending() {
		return ErrAlreadyExecuted
	}

	for _, m := range g.Members {
		if !m.Pending() {
			continue
		}
		if err := m.Execute(ctx, ops, counters, logger); err != nil {
			return err
		}
	}

	g.Status = models.StatusDone
	for _, m := range g.Members {
		if m.Key().Status != models.StatusDone {
			g.Status = models.StatusFailed
			break
		}
	}
	return nil
}

// recompute refreshes the aggregates after members were removed
func (g *Group) recompute() {
	g.SizeDifference = 0
	g.ExceedsWarning = false
	for _, m := range g.Members {
		g.account(m)
	}
}

// Prune removes done items from entries, recursing into groups and dropping
// groups left empty. The slice is filtered in place.
func Prune(entries []Entry) []Entry {
	kept := entries[:0]
	for _, e := range entries {
		switch entry := e.(type) {
		case *Group:
			entry.Members = Prune(entry.Members)
			if len(entry.Members) == 0 {
				continue
			}
			entry.recompute()
		default:
			if entry.Key().Status == models.StatusDone {
				continue
			}
		}
		kept = append(kept, e)
	}
	// Release references held past the new length
	for i := len(kept); i < len(entries); i++ {
		entries[i] = nil
	}
	return kept
}

// Items flattens entries into their items, in execution order
func Items(entries []Entry) []*Item {
	var items []*Item
	for _, e := range entries {
		switch entry := e.(type) {
		case *Item:
			items = append(items, entry)
		case *Group:
			items = append(items, Items(entry.Members)...)
		}
	}
	return items
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
