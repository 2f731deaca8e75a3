package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sdejongh/treereconcile/pkg/ratelimit"
)

// Local applies backup actions to the local filesystem
type Local struct {
	bufferSize int
	bufferPool *sync.Pool
	limiter    *ratelimit.Limiter
	maxDepth   int
}

// NewLocal creates a local filesystem backend copying with buffers of
// bufferSize bytes
func NewLocal(bufferSize int) *Local {
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	return &Local{
		bufferSize: bufferSize,
		maxDepth:   DefaultMaxDepth,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// WithMaxDepth bounds how many directory levels CopyTree descends.
// Values below 1 keep DefaultMaxDepth.
func (l *Local) WithMaxDepth(depth int) *Local {
	if depth > 0 {
		l.maxDepth = depth
	}
	return l
}

// WithBandwidthLimit caps the combined read rate of every copy at
// bytesPerSecond. Zero removes the limit.
func (l *Local) WithBandwidthLimit(bytesPerSecond int64) *Local {
	l.limiter = ratelimit.NewLimiter(bytesPerSecond)
	return l
}

// CopyFile copies src over dst, creating missing parents and preserving the
// modification time and permission bits of src
func (l *Local) CopyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source is a directory: %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0200)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	bufPtr := l.bufferPool.Get().(*[]byte)
	defer l.bufferPool.Put(bufPtr)

	// Hide ReaderFrom so the pooled buffer is actually used
	reader := ratelimit.NewReader(ctx, &contextReader{ctx: ctx, reader: in}, l.limiter)
	written, err := io.CopyBuffer(struct{ io.Writer }{out}, reader, *bufPtr)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if written != info.Size() {
		return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", info.Size(), written)
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set modification time: %w", err)
	}

	return nil
}

// CopyTree recursively copies the directory src to dst. Symbolic links are
// followed, so the copy holds what the scan compared.
func (l *Local) CopyTree(ctx context.Context, src, dst string) error {
	type dirTime struct {
		path    string
		modTime time.Time
	}
	var dirs []dirTime

	err := walkResolved(src, l.maxDepth, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		if info.IsDir() {
			// Owner write keeps the copy fillable even from read-only sources
			if err := os.MkdirAll(out, info.Mode().Perm()|0700); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			dirs = append(dirs, dirTime{path: out, modTime: info.ModTime()})
			return nil
		}

		return l.CopyFile(ctx, p, out)
	})
	if err != nil {
		return err
	}

	// Directory times last, deepest first, since filling a directory touches it
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chtimes(dirs[i].path, dirs[i].modTime, dirs[i].modTime); err != nil {
			return fmt.Errorf("failed to set modification time: %w", err)
		}
	}
	return nil
}

// Delete removes a single file or empty directory
func (l *Local) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// DeleteTree removes path and everything below it
func (l *Local) DeleteTree(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete tree: %w", err)
	}
	return nil
}

// SetModTime sets the access and modification time of path to t
func (l *Local) SetModTime(ctx context.Context, path string, t time.Time) error {
	if err := os.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("failed to set modification time: %w", err)
	}
	return nil
}

// MakeWritable grants the owner write access to path and to its closest
// existing parent, starting from the permission bits of template
func (l *Local) MakeWritable(ctx context.Context, path, template string) error {
	perm := fs.FileMode(0755)
	if info, err := os.Stat(template); err == nil {
		perm = info.Mode().Perm()
	}

	parent := ClosestExistingAncestor(filepath.Dir(path))
	if parent != "" {
		if err := os.Chmod(parent, perm|0700); err != nil {
			return fmt.Errorf("failed to make %s writable: %w", parent, err)
		}
	}

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	mode := info.Mode().Perm() | 0600
	if info.IsDir() {
		mode = perm | 0700
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("failed to make %s writable: %w", path, err)
	}
	return nil
}

// TreeSize returns the total size of the files below root, following
// symbolic links like the scan does. At most maxDepth directory levels are
// walked. Entries that cannot be read are reported to onError and skipped.
func TreeSize(root string, maxDepth int, onError func(path string, err error)) int64 {
	var total int64
	walkResolved(root, maxDepth, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if onError != nil {
				onError(p, err)
			}
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// ClosestExistingAncestor returns path itself if it exists, otherwise its
// nearest existing parent, or "" if none exists
func ClosestExistingAncestor(path string) string {
	for {
		if _, err := os.Lstat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return ""
		}
		path = parent
	}
}

// contextReader stops a copy once its context is cancelled
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.reader.Read(p)
}
