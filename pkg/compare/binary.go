package compare

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// BinaryComparator compares files byte-by-byte
// This is the most thorough comparison but also the slowest
type BinaryComparator struct {
	bufferSize int
	bufferPool *sync.Pool
}

// NewBinaryComparator creates a new byte-by-byte comparator
func NewBinaryComparator(bufferSize int) *BinaryComparator {
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	return &BinaryComparator{
		bufferSize: bufferSize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// Compare compares two files byte-by-byte. Both files must exist.
func (c *BinaryComparator) Compare(ctx context.Context, sourcePath, targetPath string) (*Comparison, error) {
	result := &Comparison{SourcePath: sourcePath, TargetPath: targetPath, Offset: -1}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	targetFile, err := os.Open(targetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open target file: %w", err)
	}
	defer targetFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	targetInfo, err := targetFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat target: %w", err)
	}

	// Quick check: if sizes differ, files are different
	if sourceInfo.Size() != targetInfo.Size() {
		result.Result = Different
		result.Reason = fmt.Sprintf("size mismatch: source=%d, target=%d", sourceInfo.Size(), targetInfo.Size())
		return result, nil
	}

	sourceBufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(sourceBufPtr)
	sourceBuf := *sourceBufPtr

	targetBufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(targetBufPtr)
	targetBuf := *targetBufPtr

	var bytesCompared int64
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// ReadFull keeps both sides aligned on short reads
		sourceN, sourceErr := io.ReadFull(sourceFile, sourceBuf)
		targetN, targetErr := io.ReadFull(targetFile, targetBuf)
		if sourceErr != nil && sourceErr != io.EOF && sourceErr != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("failed to read source: %w", sourceErr)
		}
		if targetErr != nil && targetErr != io.EOF && targetErr != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("failed to read target: %w", targetErr)
		}

		n := sourceN
		if targetN < n {
			n = targetN
		}
		if !bytes.Equal(sourceBuf[:n], targetBuf[:n]) {
			for i := 0; i < n; i++ {
				if sourceBuf[i] != targetBuf[i] {
					result.Result = Different
					result.Offset = bytesCompared + int64(i)
					result.Compared = result.Offset
					result.Reason = fmt.Sprintf("binary content differs at byte offset %d", result.Offset)
					return result, nil
				}
			}
		}
		bytesCompared += int64(n)

		if sourceN != targetN {
			// A file changed size while being compared
			result.Result = Different
			result.Offset = bytesCompared
			result.Compared = bytesCompared
			result.Reason = fmt.Sprintf("length mismatch at offset %d", bytesCompared)
			return result, nil
		}
		if sourceErr != nil {
			// EOF or short final block on both sides
			break
		}
	}

	result.Result = Same
	result.Compared = bytesCompared
	result.Reason = fmt.Sprintf("binary content matches (%d bytes)", bytesCompared)
	return result, nil
}

// Name returns the comparator name
func (c *BinaryComparator) Name() string {
	return "binary"
}
