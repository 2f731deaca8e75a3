package compare

import "context"

// Result is the outcome of a content comparison
type Result string

const (
	Same      Result = "same"
	Different Result = "different"
)

// Comparison describes one content comparison. Offset is the first differing
// byte, or -1 when the contents match or the sizes already differ.
type Comparison struct {
	SourcePath string
	TargetPath string
	Result     Result
	Reason     string
	Offset     int64
	Compared   int64
}

// Identical reports whether both files hold the same bytes. A nil
// comparison is never identical.
func (c *Comparison) Identical() bool {
	return c != nil && c.Result == Same
}

// ContentComparator decides whether two existing files hold the same bytes.
// The DiffEngine uses it in content mode and to settle targets newer than
// their source.
type ContentComparator interface {
	Compare(ctx context.Context, sourcePath, targetPath string) (*Comparison, error)
	Name() string
}

var _ ContentComparator = (*BinaryComparator)(nil)
