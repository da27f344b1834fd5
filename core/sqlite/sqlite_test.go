package sqlite

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/let-me-illustrate/lmi-sub002/core/ratetable"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()
	if info.DriverName != DriverName() {
		t.Errorf("DriverName mismatch: info=%s, func=%s", info.DriverName, DriverName())
	}
	switch info.DriverType {
	case "purego":
		if info.Package != "modernc.org/sqlite" {
			t.Errorf("unexpected package %s for the pure Go driver", info.Package)
		}
	case "cgo":
		if info.Package != "github.com/mattn/go-sqlite3" {
			t.Errorf("unexpected package %s for the cgo driver", info.Package)
		}
	default:
		t.Errorf("unknown driver type %q", info.DriverType)
	}
}

func TestExportTablesLogsDriver(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.SetOutput(&buf)
	logging.InitLogger(logging.LevelDebug, logging.FormatText)
	defer func() {
		logging.SetOutput(prev)
		logging.InitLogger(logging.LevelInfo, logging.FormatText)
	}()

	path := filepath.Join(t.TempDir(), "tables.db")
	if err := ExportTables(context.Background(), path, nil); err != nil {
		t.Fatalf("ExportTables failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "exporting tables to sqlite") || !strings.Contains(out, "driver="+DriverName()) {
		t.Errorf("missing driver log line in %q", out)
	}
}

func exportSample(t *testing.T) string {
	t.Helper()
	aggregate, err := ratetable.NewTable(ratetable.Spec{
		Name:        "Aggregate",
		Number:      7,
		Type:        ratetable.Aggregate,
		Comments:    "exported",
		MinAge:      30,
		MaxAge:      32,
		NumDecimals: 2,
		Values:      []float64{0.1, 0.12, 0.15},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	sel, err := ratetable.NewTable(ratetable.Spec{
		Name:         "Select",
		Number:       8,
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

	path := filepath.Join(t.TempDir(), "tables.db")
	if err := ExportTables(context.Background(), path, []*ratetable.Table{aggregate, sel}); err != nil {
		t.Fatalf("ExportTables failed: %v", err)
	}
	return path
}

func TestExportTables(t *testing.T) {
	path := exportSample(t)

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tables`).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 2 {
		t.Errorf("got %d tables, want 2", count)
	}

	var name, typ string
	var comments *string
	var selectPeriod *int64
	err = db.QueryRow(`SELECT name, type, comments, select_period FROM tables WHERE number = 7`).
		Scan(&name, &typ, &comments, &selectPeriod)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if name != "Aggregate" || typ != "Aggregate" || comments == nil || *comments != "exported" {
		t.Errorf("unexpected row: %q %q %v", name, typ, comments)
	}
	if selectPeriod != nil {
		t.Errorf("select_period = %d, want NULL", *selectPeriod)
	}

	var value float64
	if err := db.QueryRow(`SELECT value FROM table_values WHERE number = 7 AND age = 31`).Scan(&value); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if value != 0.12 {
		t.Errorf("value at age 31 = %v, want 0.12", value)
	}

	// Select table: issue ages 0 and 1 have a select and an ultimate value,
	// age 3 is in the ultimate tail.
	if err := db.QueryRow(`SELECT COUNT(*) FROM table_values WHERE number = 8`).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 5 {
		t.Errorf("got %d values for the select table, want 5", count)
	}
	if err := db.QueryRow(`SELECT value FROM table_values WHERE number = 8 AND age = 1 AND duration = 1`).Scan(&value); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if value != 0.3 {
		t.Errorf("select value at age 1 = %v, want 0.3", value)
	}
}

func TestExportTablesReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.db")
	if err := os.WriteFile(path, []byte("not a database"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := ExportTables(context.Background(), path, nil); err != nil {
		t.Fatalf("ExportTables failed: %v", err)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tables`).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("got %d tables, want 0", count)
	}
}
