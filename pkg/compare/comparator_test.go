package compare

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/treereconcile/pkg/storage"
)

// TestHelper provides utilities for comparator tests
type TestHelper struct {
	t       *testing.T
	tempDir string
}

// NewTestHelper creates a new test helper with temporary source and target directories
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	tempDir := t.TempDir()
	for _, dir := range []string{"source", "target"} {
		if err := os.MkdirAll(filepath.Join(tempDir, dir), 0755); err != nil {
			t.Fatalf("failed to create %s dir: %v", dir, err)
		}
	}
	return &TestHelper{t: t, tempDir: tempDir}
}

// CreateFile creates a file under side ("source" or "target") and returns its path
func (h *TestHelper) CreateFile(side, name string, content []byte) string {
	h.t.Helper()
	path := filepath.Join(h.tempDir, side, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		h.t.Fatalf("failed to create file: %v", err)
	}
	return path
}

// ============== MetadataComparator Tests ==============

func TestMetadataComparator(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	attrs := func(size int64, modTime time.Time) storage.Attributes {
		return storage.Attributes{Exists: true, Size: size, ModTime: modTime}
	}

	tests := []struct {
		name      string
		tolerance time.Duration
		source    storage.Attributes
		target    storage.Attributes
		want      Verdict
	}{
		{"Identical", 0, attrs(10, base), attrs(10, base), VerdictSame},
		{"SameTimeDifferentSize", 0, attrs(10, base), attrs(12, base), VerdictSizeDiffers},
		{"SourceNewer", 0, attrs(10, base.Add(time.Second)), attrs(10, base), VerdictSourceNewer},
		{"SourceNewerSizeIgnored", 0, attrs(10, base.Add(time.Second)), attrs(99, base), VerdictSourceNewer},
		{"TargetNewer", 0, attrs(10, base), attrs(10, base.Add(time.Nanosecond)), VerdictTargetNewer},
		{"WithinTolerance", 2 * time.Second, attrs(10, base.Add(time.Second)), attrs(10, base), VerdictSame},
		{"WithinToleranceSizeDiffers", 2 * time.Second, attrs(10, base), attrs(11, base.Add(time.Second)), VerdictSizeDiffers},
		{"BeyondTolerance", 2 * time.Second, attrs(10, base), attrs(10, base.Add(3 * time.Second)), VerdictTargetNewer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMetadataComparator(tt.tolerance).Compare(tt.source, tt.target)
			if got != tt.want {
				t.Errorf("Compare() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMetadataComparatorNegativeTolerance(t *testing.T) {
	c := NewMetadataComparator(-time.Second)
	if c.Tolerance != 0 {
		t.Errorf("Tolerance = %v, want 0", c.Tolerance)
	}
	if c.Name() != "metadata" {
		t.Errorf("Name() = %s, want metadata", c.Name())
	}
}

// ============== BinaryComparator Tests ==============

func TestBinaryComparator(t *testing.T) {
	h := NewTestHelper(t)
	ctx := context.Background()
	comparator := NewBinaryComparator(4096)

	t.Run("IdenticalFiles", func(t *testing.T) {
		content := []byte("identical content")
		src := h.CreateFile("source", "same.txt", content)
		tgt := h.CreateFile("target", "same.txt", content)

		result, err := comparator.Compare(ctx, src, tgt)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if !result.Identical() {
			t.Errorf("Result = %s, want %s (%s)", result.Result, Same, result.Reason)
		}
	})

	t.Run("DifferentSize", func(t *testing.T) {
		src := h.CreateFile("source", "size.txt", []byte("short"))
		tgt := h.CreateFile("target", "size.txt", []byte("much longer"))

		result, err := comparator.Compare(ctx, src, tgt)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if result.Result != Different || !strings.Contains(result.Reason, "size mismatch") {
			t.Errorf("Compare() = %s (%s), want size mismatch", result.Result, result.Reason)
		}
	})

	t.Run("DifferentContentReportsOffset", func(t *testing.T) {
		src := h.CreateFile("source", "diff.txt", []byte("abcdefgh"))
		tgt := h.CreateFile("target", "diff.txt", []byte("abcdXfgh"))

		result, err := comparator.Compare(ctx, src, tgt)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if result.Result != Different {
			t.Fatalf("Result = %s, want %s", result.Result, Different)
		}
		if result.Offset != 4 || !strings.Contains(result.Reason, "offset 4") {
			t.Errorf("Offset = %d (%s), want 4", result.Offset, result.Reason)
		}
	})

	t.Run("DifferenceBeyondFirstBuffer", func(t *testing.T) {
		content := bytes.Repeat([]byte("x"), 10000)
		changed := append([]byte(nil), content...)
		changed[9000] = 'y'
		src := h.CreateFile("source", "large.bin", content)
		tgt := h.CreateFile("target", "large.bin", changed)

		result, err := comparator.Compare(ctx, src, tgt)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if result.Offset != 9000 || !strings.Contains(result.Reason, "offset 9000") {
			t.Errorf("Offset = %d (%s), want 9000", result.Offset, result.Reason)
		}
	})

	t.Run("EmptyFiles", func(t *testing.T) {
		src := h.CreateFile("source", "empty", nil)
		tgt := h.CreateFile("target", "empty", nil)

		result, err := comparator.Compare(ctx, src, tgt)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if !result.Identical() {
			t.Errorf("empty files should be identical, got %s", result.Reason)
		}
	})

	t.Run("MissingTarget", func(t *testing.T) {
		src := h.CreateFile("source", "alone.txt", []byte("x"))
		_, err := comparator.Compare(ctx, src, filepath.Join(h.tempDir, "target", "alone.txt"))
		if err == nil {
			t.Error("Compare() should fail for a missing target")
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		src := h.CreateFile("source", "c.txt", []byte("abc"))
		tgt := h.CreateFile("target", "c.txt", []byte("abc"))
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := comparator.Compare(cancelled, src, tgt); err != context.Canceled {
			t.Errorf("Compare() error = %v, want context.Canceled", err)
		}
	})
}

func TestBinaryComparatorMinimumBuffer(t *testing.T) {
	c := NewBinaryComparator(10)
	if c.bufferSize != 4096 {
		t.Errorf("bufferSize = %d, want 4096", c.bufferSize)
	}
	if c.Name() != "binary" {
		t.Errorf("Name() = %s, want binary", c.Name())
	}
}
