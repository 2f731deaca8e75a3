package storage

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePath returns the canonical absolute form of path used as a key for
// prefix lookups and volume registration
func NormalizePath(path string) (string, error) {
	if path == "" {
		return "", &PathError{Path: path, Message: "path is empty"}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	normalized := filepath.Clean(abs)

	// On Windows, ensure UNC paths are preserved
	if runtime.GOOS == "windows" {
		if isUNCPath(path) && !strings.HasPrefix(normalized, `\\`) {
			normalized = `\\` + strings.TrimLeft(normalized, `\`)
		}
	}

	return normalized, nil
}

// IsWithin reports whether path equals dir or lies below it, comparing whole
// path components. Both arguments must be normalized.
func IsWithin(path, dir string) bool {
	if path == dir {
		return true
	}
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		// Filesystem root
		return strings.HasPrefix(path, dir)
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// Depth returns the number of path components of a normalized path
func Depth(path string) int {
	trimmed := strings.Trim(filepath.ToSlash(path), "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}

// ImmediateChild returns the child of dir on the way to path, or "" if path is
// not strictly below dir
func ImmediateChild(dir, path string) string {
	if path == dir || !IsWithin(path, dir) {
		return ""
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return filepath.Join(dir, first)
}

func joinPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// isUNCPath checks if a path is a UNC path (Windows network share)
func isUNCPath(path string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
