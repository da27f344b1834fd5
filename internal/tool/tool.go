// Package tool implements the operations of rate_table_tool on a rate table
// database. Each operation writes its report to an io.Writer so the command
// stays a thin dispatcher.
package tool

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/let-me-illustrate/lmi-sub002/core/errors"
	"github.com/let-me-illustrate/lmi-sub002/core/ratetable"
	"github.com/let-me-illustrate/lmi-sub002/core/sqlite"
	"github.com/let-me-illustrate/lmi-sub002/internal/archive"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

// OpenOrCreate opens the database at path, or returns an empty one when
// neither of its files exists. A database missing only one of its files is
// an error.
func OpenOrCreate(path string) (*ratetable.Database, error) {
	if ratetable.Exists(path) {
		return ratetable.Open(path)
	}
	index, data := ratetable.DatabasePaths(path)
	for _, p := range []string{index, data} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			return nil, errors.NewIO("open database", path,
				fmt.Errorf("%s exists but the other database file is missing", p))
		}
	}
	logging.Info("creating new database", "database", path)
	return ratetable.New(), nil
}

func sortedTables(db *ratetable.Database) ([]*ratetable.Table, error) {
	tables := make([]*ratetable.Table, 0, db.TablesCount())
	for i := 0; i < db.TablesCount(); i++ {
		t, err := db.GetNthTable(i)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	slices.SortFunc(tables, func(a, b *ratetable.Table) int {
		return cmp.Compare(a.Number(), b.Number())
	})
	return tables, nil
}

// List prints the number and name of every table, sorted by number.
func List(w io.Writer, db *ratetable.Database) error {
	tables, err := sortedTables(db)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Fprintf(w, "%5d %s\n", t.Number(), t.Name())
	}
	return nil
}

// CRC prints the hash of every table in decimal and hex, in index order.
func CRC(w io.Writer, db *ratetable.Database) error {
	for i := 0; i < db.TablesCount(); i++ {
		t, err := db.GetNthTable(i)
		if err != nil {
			return err
		}
		crc := t.ComputeHashValue()
		fmt.Fprintf(w, "%5d %10d %08x %s\n", t.Number(), crc, crc, t.Name())
	}
	return nil
}

// Merge adds the tables found at path to db, replacing tables with the same
// number. path is a single .rates or .rates.xz file, a directory holding
// such files, or a tar bundle of them. It returns the number of tables
// merged.
func Merge(db *ratetable.Database, path string) (int, error) {
	var merged int
	add := func(name, text string) error {
		t, err := ratetable.ReadFromText(text)
		if err != nil {
			return fmt.Errorf("error reading table from file '%s': %w", name, err)
		}
		db.AddOrReplaceTable(t)
		merged++
		logging.Debug("merged table", "number", t.Number(), "file", name)
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to merge %s: %w", path, err)
	}

	switch {
	case info.IsDir():
		files, err := archive.ListTableFiles(path)
		if err != nil {
			return 0, err
		}
		if len(files) == 0 {
			logging.Warn("no table files found", "dir", path)
		}
		for _, file := range files {
			text, err := archive.ReadTableFile(file)
			if err != nil {
				return merged, err
			}
			if err := add(file, text); err != nil {
				return merged, err
			}
		}
	case archive.IsBundle(path):
		if err := archive.ForEachTable(path, add); err != nil {
			return merged, err
		}
	default:
		text, err := archive.ReadTableFile(path)
		if err != nil {
			return 0, err
		}
		if err := add(path, text); err != nil {
			return 0, err
		}
	}
	return merged, nil
}

// ExtractOptions controls where extracted tables go.
type ExtractOptions struct {
	Dir      string
	Compress bool   // write .rates.xz files
	Bundle   string // write a single .tar.xz or .tar.gz bundle instead of files
}

// Extract writes table number to its own file in opts.Dir.
func Extract(db *ratetable.Database, number ratetable.Number, opts ExtractOptions) error {
	t, err := db.FindTable(number)
	if err != nil {
		return err
	}
	return extractTo(opts, []*ratetable.Table{t})
}

// ExtractAll writes every table of db, sorted by number.
func ExtractAll(db *ratetable.Database, opts ExtractOptions) error {
	tables, err := sortedTables(db)
	if err != nil {
		return err
	}
	return extractTo(opts, tables)
}

func extractTo(opts ExtractOptions, tables []*ratetable.Table) error {
	if opts.Bundle != "" {
		bw, err := archive.CreateBundle(opts.Bundle)
		if err != nil {
			return err
		}
		for _, t := range tables {
			if err := bw.AddTable(archive.TableFileName(uint32(t.Number()), false), t.SaveAsText()); err != nil {
				bw.Close()
				return err
			}
		}
		return bw.Close()
	}

	dir := cmp.Or(opts.Dir, ".")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, t := range tables {
		path := filepath.Join(dir, archive.TableFileName(uint32(t.Number()), opts.Compress))
		if err := archive.WriteTableFile(path, t.SaveAsText()); err != nil {
			return fmt.Errorf("failed to extract table %d: %w", t.Number(), err)
		}
	}
	return nil
}

// ExportSQLite writes every table of db to a new SQLite database at path.
func ExportSQLite(ctx context.Context, db *ratetable.Database, path string) error {
	tables, err := sortedTables(db)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		logging.WarnContext(ctx, "exporting an empty database", "path", path)
	}
	if err := sqlite.ExportTables(ctx, path, tables); err != nil {
		return err
	}
	logging.InfoContext(ctx, "exported tables", "count", len(tables), "path", path)
	return nil
}
