package sync

import (
	"path/filepath"
	"strings"
)

// excluder hides entries matching glob patterns. Patterns support:
//   - Simple glob patterns matched on the base name: *.tmp, *.log
//   - Directory patterns: .git/, node_modules/
//   - Path patterns relative to the task root: build/*
//   - Any depth: **/cache
type excluder struct {
	patterns []string
}

func newExcluder(patterns []string) *excluder {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, filepath.ToSlash(p))
		}
	}
	return &excluder{patterns: cleaned}
}

// match reports whether the entry at relativePath is excluded. isDir tells
// whether directory patterns apply.
func (x *excluder) match(relativePath string, isDir bool) bool {
	if x == nil || len(x.patterns) == 0 {
		return false
	}

	path := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)

	for _, pattern := range x.patterns {
		if dir, ok := strings.CutSuffix(pattern, "/"); ok {
			if isDir && (path == dir || base == dir || strings.HasSuffix(path, "/"+dir)) {
				return true
			}
			continue
		}

		if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matchGlob(base, suffix) || matchGlob(path, suffix) || matchTail(path, suffix) {
				return true
			}
			continue
		}

		if strings.Contains(pattern, "/") {
			// Anchored at the task root
			if matchGlob(path, pattern) {
				return true
			}
			continue
		}

		if matchGlob(base, pattern) {
			return true
		}
	}

	return false
}

// matchGlob performs glob matching, treating malformed patterns as no match
func matchGlob(name, pattern string) bool {
	matched, _ := filepath.Match(pattern, name)
	return matched
}

// matchTail checks whether pattern matches the last components of path
func matchTail(path, pattern string) bool {
	n := strings.Count(pattern, "/") + 1
	parts := strings.Split(path, "/")
	if len(parts) < n {
		return false
	}
	return matchGlob(strings.Join(parts[len(parts)-n:], "/"), pattern)
}
