package dataset

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	lserrors "linesearch/internal/errors"
)

// ReadLines reads every line of path into a new snapshot.
//
// Files ending in .gz or .zst are decompressed on the fly. Line terminators
// are dropped; a final newline does not produce an extra empty line.
// A missing file yields a DATASET_MISSING error, any other failure
// DATASET_IO_FAULT.
func ReadLines(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lserrors.New(lserrors.DatasetMissing, "dataset not found: "+path, err)
		}
		return nil, lserrors.New(lserrors.DatasetIOFault, "failed to open dataset", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 256<<10)
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, lserrors.New(lserrors.DatasetIOFault, "failed to open gzip dataset", err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, lserrors.New(lserrors.DatasetIOFault, "failed to open zstd dataset", err)
		}
		defer zr.Close()
		r = zr
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, lserrors.New(lserrors.DatasetIOFault, "failed to read dataset", err)
	}

	return &Snapshot{
		Lines:    splitLines(raw),
		Digest:   blake2b.Sum256(raw),
		LoadedAt: time.Now(),
		Source:   path,
	}, nil
}

func splitLines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	raw = bytes.TrimSuffix(raw, []byte{'\n'})
	return strings.Split(string(raw), "\n")
}

// isMissing reports whether err means the dataset file is absent.
func isMissing(err error) bool {
	return lserrors.Is(err, lserrors.DatasetMissing)
}
