package grouping

import (
	"fmt"
	"sort"

	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/storage"
)

// Rule configures the permanence and grouping policy of a directory
type Rule struct {
	Path       string
	Permanence models.PermanenceLevel
	Policy     models.GroupingPolicy
}

// Index finds the deepest directory group containing a path
type Index struct {
	groups []*DirectoryGroup // deepest first
}

// NewIndex normalizes the rule paths and indexes them deepest first.
// Two rules for the same directory are rejected.
func NewIndex(rules []Rule, warningThreshold int64) (*Index, error) {
	seen := make(map[string]bool, len(rules))
	groups := make([]*DirectoryGroup, 0, len(rules))

	for _, rule := range rules {
		path, err := storage.NormalizePath(rule.Path)
		if err != nil {
			return nil, fmt.Errorf("invalid directory rule: %w", err)
		}
		if seen[path] {
			return nil, &models.ValidationError{Field: "directories", Message: "duplicate rule for " + path}
		}
		seen[path] = true

		permanence := rule.Permanence
		if permanence == "" {
			permanence = models.DefaultPermanence
		}
		policy := rule.Policy
		if policy == "" {
			policy = models.GroupNone
		}
		groups = append(groups, NewDirectoryGroup(path, permanence, policy, warningThreshold))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		di, dj := storage.Depth(groups[i].Path), storage.Depth(groups[j].Path)
		if di != dj {
			return di > dj
		}
		return groups[i].Path < groups[j].Path
	})

	return &Index{groups: groups}, nil
}

// Lookup returns the deepest directory group that is path or one of its
// ancestors, comparing whole components, or nil. path must be normalized.
func (x *Index) Lookup(path string) *DirectoryGroup {
	if x == nil {
		return nil
	}
	for _, g := range x.groups {
		if storage.IsWithin(path, g.Path) {
			return g
		}
	}
	return nil
}

// Groups returns the indexed directory groups, deepest first
func (x *Index) Groups() []*DirectoryGroup {
	if x == nil {
		return nil
	}
	return x.groups
}

// Clear resets every directory group between scan runs
func (x *Index) Clear() {
	if x == nil {
		return
	}
	for _, g := range x.groups {
		g.Clear()
	}
}
