package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// File name suffixes.
const (
	TableExt           = ".rates"
	CompressedTableExt = ".rates.xz"
)

var bundleExts = []string{".tar.xz", ".tar.gz", ".tgz", ".tar"}

// IsTableFile reports whether name is a .rates or .rates.xz file.
func IsTableFile(name string) bool {
	return strings.HasSuffix(name, TableExt) || strings.HasSuffix(name, CompressedTableExt)
}

// IsBundle reports whether name has one of the supported tar extensions.
func IsBundle(name string) bool {
	for _, ext := range bundleExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// TableFileName returns the name used when extracting the table with the
// given number, such as "00042.rates".
func TableFileName(number uint32, compress bool) string {
	if compress {
		return fmt.Sprintf("%05d%s", number, CompressedTableExt)
	}
	return fmt.Sprintf("%05d%s", number, TableExt)
}

func readTable(name string, r io.Reader) (string, error) {
	if strings.HasSuffix(name, CompressedTableExt) {
		xzr, err := xz.NewReader(r)
		if err != nil {
			return "", fmt.Errorf("xz reader for %s: %w", name, err)
		}
		r = xzr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// ReadTableFile returns the text of a .rates or .rates.xz file.
func ReadTableFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open table file: %w", err)
	}
	defer f.Close()
	return readTable(path, f)
}

// compress returns text compressed with xz.
func compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz writer: %w", err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, fmt.Errorf("xz compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("xz compress: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTableFile writes text to path, compressing it when path ends in
// .rates.xz.
func WriteTableFile(path, text string) error {
	data := []byte(text)
	if strings.HasSuffix(path, CompressedTableExt) {
		var err error
		if data, err = compress(text); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write table file: %w", err)
	}
	return nil
}

// ListTableFiles returns the table files directly inside dir, sorted by
// name.
func ListTableFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsTableFile(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
