package tool

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/let-me-illustrate/lmi-sub002/core/ratetable"
	"github.com/let-me-illustrate/lmi-sub002/core/sqlite"
	"github.com/let-me-illustrate/lmi-sub002/internal/archive"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

// captureLog returns what the logger writes while fn runs.
func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := logging.SetOutput(&buf)
	defer logging.SetOutput(prev)
	fn()
	return buf.String()
}

const minimalText = `Table number: 1
Table type: Aggregate
Minimum age: 0
Maximum age: 1
Number of decimal places: 5
Table values:
  0  0.12345
  1  0.23456
`

func selectTable(t *testing.T) *ratetable.Table {
	t.Helper()
	table, err := ratetable.NewTable(ratetable.Spec{
		Name:         "Select 2",
		Number:       42,
		Type:         ratetable.Select,
		MinAge:       0,
		MaxAge:       3,
		SelectPeriod: 1,
		MaxSelectAge: 1,
		NumDecimals:  1,
		Values:       []float64{0.1, 0.2, 0.3, 0.4, 0.5},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table
}

func minimalTable(t *testing.T) *ratetable.Table {
	t.Helper()
	table, err := ratetable.ReadFromText(minimalText)
	if err != nil {
		t.Fatalf("ReadFromText failed: %v", err)
	}
	return table
}

// newTestDatabase returns a database holding table 42 before table 1.
func newTestDatabase(t *testing.T) *ratetable.Database {
	t.Helper()
	db := ratetable.New()
	for _, table := range []*ratetable.Table{selectTable(t), minimalTable(t)} {
		if err := db.AppendTable(table); err != nil {
			t.Fatalf("AppendTable failed: %v", err)
		}
	}
	return db
}

func TestList(t *testing.T) {
	var buf bytes.Buffer
	if err := List(&buf, newTestDatabase(t)); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := "    1 \n   42 Select 2\n"
	if buf.String() != want {
		t.Errorf("List output = %q, want %q", buf.String(), want)
	}
}

func TestCRC(t *testing.T) {
	db := ratetable.New()
	if err := db.AppendTable(minimalTable(t)); err != nil {
		t.Fatalf("AppendTable failed: %v", err)
	}

	var buf bytes.Buffer
	if err := CRC(&buf, db); err != nil {
		t.Fatalf("CRC failed: %v", err)
	}
	want := "    1 2956225307 b0346b1b \n"
	if buf.String() != want {
		t.Errorf("CRC output = %q, want %q", buf.String(), want)
	}
}

func TestOpenOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new_db")
	db, err := OpenOrCreate(path)
	if err != nil {
		t.Fatalf("OpenOrCreate failed: %v", err)
	}
	if db.TablesCount() != 0 {
		t.Errorf("new database has %d tables", db.TablesCount())
	}

	if err := newTestDatabase(t).Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	db, err = OpenOrCreate(path)
	if err != nil {
		t.Fatalf("OpenOrCreate failed: %v", err)
	}
	defer db.Close()
	if db.TablesCount() != 2 {
		t.Errorf("TablesCount() = %d, want 2", db.TablesCount())
	}
}

func TestOpenOrCreateHalfDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "half")
	if err := os.WriteFile(path+ratetable.IndexExtension, nil, 0644); err != nil {
		t.Fatalf("failed to write index: %v", err)
	}
	_, err := OpenOrCreate(path)
	if err == nil || !strings.Contains(err.Error(), "half.ndx exists") {
		t.Errorf("expected an error about the lone index file, got %v", err)
	}
}

func TestMergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "00001.rates")
	if err := os.WriteFile(path, []byte(minimalText), 0644); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}

	db := ratetable.New()
	n, err := Merge(db, path)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if n != 1 || db.TablesCount() != 1 {
		t.Fatalf("merged %d tables, database has %d", n, db.TablesCount())
	}
	table, err := db.FindTable(1)
	if err != nil {
		t.Fatalf("FindTable failed: %v", err)
	}
	if table.SaveAsText() != minimalText {
		t.Errorf("merged table text = %q", table.SaveAsText())
	}
}

func TestMergeDirectoryReplaces(t *testing.T) {
	dir := t.TempDir()
	if err := archive.WriteTableFile(filepath.Join(dir, "00001.rates"), minimalText); err != nil {
		t.Fatalf("WriteTableFile failed: %v", err)
	}
	if err := archive.WriteTableFile(filepath.Join(dir, "00042.rates.xz"), selectTable(t).SaveAsText()); err != nil {
		t.Fatalf("WriteTableFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("not a table"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	// Table 1 already exists with another name and is replaced in place.
	db := ratetable.New()
	old := minimalTable(t)
	old.SetName("Old")
	if err := db.AppendTable(old); err != nil {
		t.Fatalf("AppendTable failed: %v", err)
	}

	n, err := Merge(db, dir)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if n != 2 || db.TablesCount() != 2 {
		t.Fatalf("merged %d tables, database has %d", n, db.TablesCount())
	}
	first, err := db.GetNthTable(0)
	if err != nil {
		t.Fatalf("GetNthTable failed: %v", err)
	}
	if first.Number() != 1 || first.Name() != "" {
		t.Errorf("table 1 was not replaced: number %d name %q", first.Number(), first.Name())
	}
	second, err := db.FindTable(42)
	if err != nil {
		t.Fatalf("FindTable failed: %v", err)
	}
	if !second.Equal(selectTable(t)) {
		t.Error("table 42 differs after merge")
	}
}

func TestMergeErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.rates")
	if err := os.WriteFile(bad, []byte("Table number: x\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	db := ratetable.New()
	if _, err := Merge(db, bad); err == nil || !strings.Contains(err.Error(), bad) {
		t.Errorf("expected an error naming %s, got %v", bad, err)
	}
	if _, err := Merge(db, filepath.Join(dir, "missing.rates")); err == nil {
		t.Error("expected an error for a missing file")
	}
	if db.TablesCount() != 0 {
		t.Errorf("failed merges added %d tables", db.TablesCount())
	}
}

func TestExtract(t *testing.T) {
	db := newTestDatabase(t)
	dir := filepath.Join(t.TempDir(), "out")

	if err := Extract(db, 42, ExtractOptions{Dir: dir}); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "00042.rates"))
	if err != nil {
		t.Fatalf("failed to read extracted table: %v", err)
	}
	if string(data) != selectTable(t).SaveAsText() {
		t.Errorf("extracted text = %q", data)
	}

	if err := Extract(db, 7, ExtractOptions{Dir: dir}); err == nil {
		t.Error("expected an error for a missing table")
	}
}

func TestExtractAllCompressed(t *testing.T) {
	db := newTestDatabase(t)
	dir := t.TempDir()

	if err := ExtractAll(db, ExtractOptions{Dir: dir, Compress: true}); err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	files, err := archive.ListTableFiles(dir)
	if err != nil {
		t.Fatalf("ListTableFiles failed: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "00001.rates.xz" || filepath.Base(files[1]) != "00042.rates.xz" {
		t.Fatalf("unexpected files: %v", files)
	}
	text, err := archive.ReadTableFile(files[0])
	if err != nil {
		t.Fatalf("ReadTableFile failed: %v", err)
	}
	if text != minimalText {
		t.Errorf("decompressed text = %q", text)
	}
}

func TestExtractAllBundleAndMerge(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "tables.tar.xz")
	if err := ExtractAll(newTestDatabase(t), ExtractOptions{Bundle: bundle}); err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}

	db := ratetable.New()
	n, err := Merge(db, bundle)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("merged %d tables from the bundle, want 2", n)
	}
	table, err := db.FindTable(42)
	if err != nil {
		t.Fatalf("FindTable failed: %v", err)
	}
	if !table.Equal(selectTable(t)) {
		t.Error("table 42 differs after the bundle round trip")
	}
}

func TestRenameTables(t *testing.T) {
	db := newTestDatabase(t)
	path := filepath.Join(t.TempDir(), "renames.txt")
	content := "# new names\n1 First table\n\n  42\tSelect, 2017 basis  \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if err := RenameTables(db, path); err != nil {
		t.Fatalf("RenameTables failed: %v", err)
	}
	var buf bytes.Buffer
	if err := List(&buf, db); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := "    1 First table\n   42 Select, 2017 basis\n"
	if buf.String() != want {
		t.Errorf("List output = %q, want %q", buf.String(), want)
	}

	if err := os.WriteFile(path, []byte("7 Missing\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := RenameTables(db, path); err == nil || !strings.Contains(err.Error(), "table 7") {
		t.Errorf("expected an error for table 7, got %v", err)
	}
}

func TestParseRenamesErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"duplicate", "1 A\n1 B\n", "more than once"},
		{"not a number", "one A\n", "invalid rename file"},
		{"missing name", "1\n", "invalid rename file"},
		{"out of range", "99999999999 A\n", "invalid table number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRenames("renames.txt", tt.input)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	var buf bytes.Buffer
	failures, err := Verify(&buf, newTestDatabase(t))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if failures != 0 {
		t.Errorf("Verify reported %d failures:\n%s", failures, buf.String())
	}
	if !strings.Contains(buf.String(), "All 2 tables passed") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestVerifyOpenedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	if err := newTestDatabase(t).Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	db, err := ratetable.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	failures, err := Verify(&buf, db)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if failures != 0 {
		t.Errorf("Verify reported %d failures:\n%s", failures, buf.String())
	}
}

func TestDigest(t *testing.T) {
	db := newTestDatabase(t)
	var first bytes.Buffer
	if err := Digest(&first, db); err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(first.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d digest lines, want 2", len(lines))
	}
	fields := strings.Fields(lines[1])
	if fields[0] != "42" || len(fields[1]) != 64 {
		t.Errorf("unexpected digest line %q", lines[1])
	}

	before, err := Fingerprint(selectTable(t))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	renamed := selectTable(t)
	renamed.SetName("Other")
	after, err := Fingerprint(renamed)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if before == after {
		t.Error("fingerprint does not depend on the table name")
	}
	if before != fields[1] {
		t.Errorf("Digest printed %s, Fingerprint returned %s", fields[1], before)
	}
}

func TestExportSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.db")
	if err := ExportSQLite(context.Background(), newTestDatabase(t), path); err != nil {
		t.Fatalf("ExportSQLite failed: %v", err)
	}

	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM table_values`).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 7 {
		t.Errorf("got %d values, want 7", count)
	}
}

func TestExportSQLiteEmptyWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	ctx := logging.WithDatabase(context.Background(), "/data/empty")
	out := captureLog(t, func() {
		if err := ExportSQLite(ctx, ratetable.New(), path); err != nil {
			t.Fatalf("ExportSQLite failed: %v", err)
		}
	})
	if !strings.Contains(out, "exporting an empty database") || !strings.Contains(out, "database=/data/empty") {
		t.Errorf("missing warning in %q", out)
	}
}
