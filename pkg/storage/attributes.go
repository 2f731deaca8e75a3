package storage

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

// Attributes is the metadata the scan needs about one path
type Attributes struct {
	Exists  bool
	IsDir   bool
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
}

func attributesOf(info fs.FileInfo) Attributes {
	return Attributes{
		Exists:  true,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    info.Mode(),
	}
}

// lazyAttributes resolves the attributes of a path at most once
type lazyAttributes struct {
	path     string
	entry    fs.DirEntry // optional listing entry to resolve from
	resolved bool
	attrs    Attributes
	err      error
}

func (l *lazyAttributes) get() (Attributes, error) {
	if l.resolved {
		return l.attrs, l.err
	}
	l.resolved = true
	l.attrs, l.err = l.resolve()
	return l.attrs, l.err
}

func (l *lazyAttributes) resolve() (Attributes, error) {
	if l.entry != nil && l.entry.Type()&fs.ModeSymlink == 0 {
		info, err := l.entry.Info()
		if err == nil {
			return attributesOf(info), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Attributes{}, err
		}
		// Vanished between listing and stat
		return Attributes{}, nil
	}

	info, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Attributes{}, nil
		}
		return Attributes{}, err
	}
	return attributesOf(info), nil
}

// PathPair lazily resolves and caches the attributes of a source path and
// its target counterpart. Each side hits the filesystem at most once.
// A PathPair is not safe for concurrent use.
type PathPair struct {
	Source string
	Target string

	source lazyAttributes
	target lazyAttributes
}

// NewPathPair creates a pair whose attributes are resolved on first access
func NewPathPair(source, target string) *PathPair {
	return &PathPair{
		Source: source,
		Target: target,
		source: lazyAttributes{path: source},
		target: lazyAttributes{path: target},
	}
}

// NewPathPairFromEntries creates a pair seeded with directory listing entries,
// so the metadata already fetched by the listing is reused. Either entry may be
// nil. Symlinks are followed.
func NewPathPairFromEntries(source string, sourceEntry fs.DirEntry, target string, targetEntry fs.DirEntry) *PathPair {
	p := NewPathPair(source, target)
	p.source.entry = sourceEntry
	p.target.entry = targetEntry
	return p
}

// SourceAttributes returns the cached source attributes
func (p *PathPair) SourceAttributes() (Attributes, error) {
	return p.source.get()
}

// TargetAttributes returns the cached target attributes
func (p *PathPair) TargetAttributes() (Attributes, error) {
	return p.target.get()
}

// Child returns the pair for name below both sides, seeded with the given
// listing entries
func (p *PathPair) Child(name string, sourceEntry, targetEntry fs.DirEntry) *PathPair {
	return NewPathPairFromEntries(
		joinPath(p.Source, name), sourceEntry,
		joinPath(p.Target, name), targetEntry,
	)
}
