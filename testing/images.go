// Package testing provides shared image fixtures for tinyfs's test suites.
// It replaces disk images compressed on disk (the teacher's use case) with
// plain in-memory buffers, since tinyfs's fixed 32 MiB geometry is cheap
// enough to build fresh for every test.
package testing

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// NewBlankImageStream wraps raw as a stream suitable for
// blockstore.CreateFromStream/OpenFromStream. Writes to the returned stream
// cannot grow or shrink it; the underlying buffer stays exactly len(raw)
// bytes. Callers keep raw themselves, so the same bytes can be wrapped again
// to simulate reopening the image after a Destroy.
func NewBlankImageStream(t *testing.T, raw []byte) io.ReadWriteSeeker {
	t.Helper()
	require.Greater(t, len(raw), 0, "image size must be positive")
	return bytesextra.NewReadWriteSeeker(raw)
}
