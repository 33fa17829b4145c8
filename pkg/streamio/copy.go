// Package streamio provides bounded-memory stream copying helpers used by
// the upload path.
package streamio

import (
	"fmt"
	"io"
)

// ChunkSize is the buffer size used when copying an upload to disk.
// Uploads can be large, so the copy never holds more than one chunk
// in memory at a time.
const ChunkSize = 4 * 1024 * 1024 // 4 MiB

// CopyExactly copies exactly length bytes from src to dst in ChunkSize
// chunks. It never reads past length even if src could supply more bytes.
//
// If src is exhausted before length bytes were read, or dst rejects a
// write, an error is returned and dst is left in a partial state. There
// is no retry; the caller owns cleanup of the destination.
func CopyExactly(dst io.Writer, src io.Reader, length int64) error {
	if length < 0 {
		return fmt.Errorf("invalid copy length %d", length)
	}

	buf := make([]byte, ChunkSize)
	written, err := io.CopyBuffer(dst, io.LimitReader(src, length), buf)
	if err != nil {
		return fmt.Errorf("copy failed after %d of %d bytes: %w", written, length, err)
	}
	if written != length {
		return fmt.Errorf("short read: got %d of %d bytes: %w", written, length, io.ErrUnexpectedEOF)
	}

	return nil
}
