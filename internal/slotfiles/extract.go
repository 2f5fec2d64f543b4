// Package slotfiles - extract.go unpacks downloaded archives.
//
// DESIGN: The cache stores response bytes as served, so extraction runs
// on every read and the expansion caps hold on cached artifacts too. A
// slot archive contains exactly one file; zip archives with any other
// entry count are upstream corruption and fail the slot.
package slotfiles

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
	"github.com/gdeltkit/gdelt-go/internal/safety"
	"github.com/gdeltkit/gdelt-go/models"
)

type archiveKind int

const (
	archiveZip archiveKind = iota
	archiveGzip
)

// kindFor maps a dataset to its archive format. The v2 TAB exports ship
// as single-entry PKZIP; everything newer is a plain gzip stream.
func kindFor(t models.RecordType) archiveKind {
	switch t {
	case models.TypeEvents, models.TypeMentions, models.TypeGKG:
		return archiveZip
	default:
		return archiveGzip
	}
}

func extractFile(path string, kind archiveKind) ([]byte, error) {
	switch kind {
	case archiveZip:
		return extractZip(path)
	default:
		return extractGzip(path)
	}
}

func extractZip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if err := safety.CheckCompressedSize(st.Size()); err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if n := len(zr.File); n != 1 {
		return nil, fmt.Errorf("archive holds %d entries, want exactly 1", n)
	}
	entry := zr.File[0]
	if entry.UncompressedSize64 > safety.MaxDecompressedBytes {
		return nil, fmt.Errorf("%w: archive claims %d decompressed bytes", gdelterr.ErrDecompressBomb, entry.UncompressedSize64)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("opening archive entry: %w", err)
	}
	defer rc.Close()

	body, err := io.ReadAll(safety.NewGuardWithSize(rc, st.Size()))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func extractGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if err := safety.CheckCompressedSize(st.Size()); err != nil {
		return nil, err
	}

	counting := safety.NewCountingReader(f)
	gz, err := gzip.NewReader(counting)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	body, err := io.ReadAll(safety.NewGuard(gz, counting))
	if err != nil {
		return nil, err
	}
	return body, nil
}
