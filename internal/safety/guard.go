package safety

import (
	"fmt"
	"io"

	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
)

// Artifact expansion caps. Real artifacts sit far below these; anything
// beyond them is upstream corruption or a crafted bomb.
const (
	MaxCompressedBytes   = 100 << 20
	MaxDecompressedBytes = 500 << 20
	MaxExpansionRatio    = 100

	ratioCheckInterval = 64 << 10
)

// CheckCompressedSize rejects artifacts whose compressed size is
// already over the cap. Pass the Content-Length or on-disk size when
// known; callers with unknown sizes rely on the Guard instead.
func CheckCompressedSize(n int64) error {
	if n > MaxCompressedBytes {
		return fmt.Errorf("%w: compressed size %d exceeds %d", gdelterr.ErrDecompressBomb, n, MaxCompressedBytes)
	}
	return nil
}

// CountingReader tracks bytes read through it. Wrap the compressed
// stream with one and hand it to NewGuard so the expansion ratio can be
// checked live.
type CountingReader struct {
	r io.Reader
	n int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > MaxCompressedBytes {
		return n, fmt.Errorf("%w: compressed stream exceeds %d bytes", gdelterr.ErrDecompressBomb, int64(MaxCompressedBytes))
	}
	return n, err
}

// Bytes returns the count of compressed bytes consumed so far.
func (c *CountingReader) Bytes() int64 { return c.n }

// Guard wraps a decompressed stream and fails it the moment output
// exceeds the absolute cap or, checked every 64 KiB, the expansion
// ratio against the compressed bytes consumed so far.
type Guard struct {
	r          io.Reader
	inBytes    func() int64 // nil when the compressed side is not observable
	out        int64
	sinceCheck int64
}

// NewGuard wraps the decompressed stream. compressed may be nil; the
// ratio check is then skipped and only the absolute cap applies.
func NewGuard(decompressed io.Reader, compressed *CountingReader) *Guard {
	g := &Guard{r: decompressed}
	if compressed != nil {
		g.inBytes = compressed.Bytes
	}
	return g
}

// NewGuardWithSize wraps a decompressed stream whose compressed input
// has a known fixed size, as when extracting from a file already on
// disk. The ratio check uses that size as the denominator throughout.
func NewGuardWithSize(decompressed io.Reader, compressedSize int64) *Guard {
	return &Guard{r: decompressed, inBytes: func() int64 { return compressedSize }}
}

func (g *Guard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	g.out += int64(n)
	g.sinceCheck += int64(n)

	if g.out > MaxDecompressedBytes {
		return n, fmt.Errorf("%w: decompressed size %d exceeds %d", gdelterr.ErrDecompressBomb, g.out, int64(MaxDecompressedBytes))
	}
	if g.sinceCheck >= ratioCheckInterval {
		g.sinceCheck = 0
		if rerr := g.checkRatio(); rerr != nil {
			return n, rerr
		}
	}
	return n, err
}

// BytesOut returns the decompressed byte count so far.
func (g *Guard) BytesOut() int64 { return g.out }

func (g *Guard) checkRatio() error {
	if g.inBytes == nil {
		return nil
	}
	in := g.inBytes()
	if in <= 0 {
		return nil
	}
	if g.out > in*MaxExpansionRatio {
		return fmt.Errorf("%w: expansion ratio %d:1 exceeds %d:1", gdelterr.ErrDecompressBomb, g.out/in, MaxExpansionRatio)
	}
	return nil
}
