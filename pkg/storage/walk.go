package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultMaxDepth bounds tree walks when no depth is configured
const DefaultMaxDepth = 512

var (
	// ErrSymlinkLoop is reported for a directory link pointing back to one of
	// its own ancestors
	ErrSymlinkLoop = errors.New("symbolic link loop")
	// ErrTreeTooDeep is reported for a directory deeper than the walk allows
	ErrTreeTooDeep = errors.New("directory tree too deep")
)

// walkFunc is called for every path of a resolved walk. info describes what
// the path resolves to, after following symbolic links. When err is not nil,
// info is nil; returning nil then skips the path and continues the walk.
// Returning fs.SkipDir for a directory skips its children. Any other error
// stops the walk.
type walkFunc func(path string, info fs.FileInfo, err error) error

// walkResolved walks the tree at root the way the scan sees it: symbolic
// links are followed, dangling links are ignored, and directories are
// visited before their children. Directories more than maxDepth levels below
// root, and links looping back to an ancestor, are reported to fn as errors.
func walkResolved(root string, maxDepth int, fn walkFunc) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	info, err := os.Stat(root)
	if err != nil {
		return report(fn, root, err)
	}
	return walkDir(root, info, nil, maxDepth, fn)
}

func walkDir(path string, info fs.FileInfo, ancestors []fs.FileInfo, maxDepth int, fn walkFunc) error {
	if info.IsDir() {
		for _, ancestor := range ancestors {
			if os.SameFile(ancestor, info) {
				return report(fn, path, fmt.Errorf("%w: %s", ErrSymlinkLoop, path))
			}
		}
		if len(ancestors) > maxDepth {
			return report(fn, path, fmt.Errorf("%w: %s", ErrTreeTooDeep, path))
		}
	}

	if err := fn(path, info, nil); err != nil {
		if errors.Is(err, fs.SkipDir) && info.IsDir() {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return report(fn, path, err)
	}

	ancestors = append(ancestors, info)
	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		childInfo, err := os.Stat(child)
		if errors.Is(err, fs.ErrNotExist) {
			// Dangling link, or vanished since the listing
			continue
		}
		if err != nil {
			if err := report(fn, child, err); err != nil {
				return err
			}
			continue
		}
		if err := walkDir(child, childInfo, ancestors, maxDepth, fn); err != nil {
			return err
		}
	}
	return nil
}

func report(fn walkFunc, path string, err error) error {
	if err := fn(path, nil, err); err != nil && !errors.Is(err, fs.SkipDir) {
		return err
	}
	return nil
}
