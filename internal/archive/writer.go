package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// bundleTime is the modification time of every bundle member, so bundles of
// the same tables are identical.
var bundleTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// BundleWriter writes table files into a compressed tar bundle.
type BundleWriter struct {
	file       *os.File
	compressor io.WriteCloser
	tw         *tar.Writer
}

// CreateBundle creates the bundle at path, compressed according to its
// extension (.tar.xz, .tar.gz or .tgz). Parent directories are created.
func CreateBundle(path string) (*BundleWriter, error) {
	useXZ := strings.HasSuffix(path, ".tar.xz")
	if !useXZ && !strings.HasSuffix(path, ".tar.gz") && !strings.HasSuffix(path, ".tgz") {
		return nil, fmt.Errorf("unsupported bundle format: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle file: %w", err)
	}

	var compressor io.WriteCloser
	if useXZ {
		xzw, err := xz.NewWriter(f)
		if err != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("xz writer: %w", err)
		}
		compressor = xzw
	} else {
		compressor = gzip.NewWriter(f)
	}

	return &BundleWriter{
		file:       f,
		compressor: compressor,
		tw:         tar.NewWriter(compressor),
	}, nil
}

// AddTable adds a table file named name holding text.
func (b *BundleWriter) AddTable(name, text string) error {
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0644,
		Size:     int64(len(text)),
		ModTime:  bundleTime,
	}
	if err := b.tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}
	if _, err := io.WriteString(b.tw, text); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close flushes the bundle and closes the file.
func (b *BundleWriter) Close() error {
	errs := []error{b.tw.Close(), b.compressor.Close(), b.file.Close()}
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("failed to finish bundle: %w", err)
		}
	}
	return nil
}
