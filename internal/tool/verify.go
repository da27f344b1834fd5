package tool

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/let-me-illustrate/lmi-sub002/core/ratetable"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

// Verify checks that every table of db survives a round trip through the
// text format and that a copy of the whole database saved to a temporary
// location reads back identically. Every divergence is reported to w and
// the number of failures is returned. The error is only set when the check
// itself could not be carried out.
func Verify(w io.Writer, db *ratetable.Database) (int, error) {
	failures := 0
	fail := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
		failures++
	}

	tables := make([]*ratetable.Table, 0, db.TablesCount())
	for i := 0; i < db.TablesCount(); i++ {
		t, err := db.GetNthTable(i)
		if err != nil {
			fail("Error loading table at position %d: %v", i, err)
			continue
		}
		tables = append(tables, t)

		text := t.SaveAsText()
		back, err := ratetable.ReadFromText(text)
		if err != nil {
			fail("Error reading back table %d from text: %v", t.Number(), err)
			continue
		}
		if !t.Equal(back) {
			fail("Table %d differs after a round trip through text", t.Number())
			continue
		}
		if back.SaveAsText() != text {
			fail("Table %d text output changed after a round trip", t.Number())
		}
	}

	n, err := verifyCopy(w, tables)
	if err != nil {
		return failures, err
	}
	failures += n

	if failures == 0 {
		fmt.Fprintf(w, "All %d tables passed verification\n", len(tables))
	} else {
		fmt.Fprintf(w, "Verification failed: %d error(s)\n", failures)
	}
	return failures, nil
}

// verifyCopy saves tables to a new database in a temporary directory,
// reopens it and compares it with the originals.
func verifyCopy(w io.Writer, tables []*ratetable.Table) (int, error) {
	dir, err := os.MkdirTemp("", "rate_table_verify")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer os.RemoveAll(dir)

	cp := ratetable.New()
	for _, t := range tables {
		if err := cp.AppendTable(t); err != nil {
			return 0, err
		}
	}
	path := filepath.Join(dir, "verify")
	if err := cp.Save(path); err != nil {
		return 0, fmt.Errorf("failed to save database copy: %w", err)
	}
	want, err := Fingerprints(cp)
	if err != nil {
		return 0, err
	}

	reopened, err := ratetable.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to reopen database copy: %w", err)
	}
	defer reopened.Close()
	logging.Debug("verifying database copy", "database", path, "tables", reopened.TablesCount())

	failures := 0
	fail := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
		failures++
	}

	if reopened.TablesCount() != len(tables) {
		fail("Database copy has %d tables instead of %d", reopened.TablesCount(), len(tables))
	}
	for _, t := range tables {
		got, err := reopened.FindTable(t.Number())
		if err != nil {
			fail("Error loading table %d from the database copy: %v", t.Number(), err)
			continue
		}
		if !t.Equal(got) {
			fail("Table %d differs in the database copy", t.Number())
		}
	}

	got, err := Fingerprints(reopened)
	if err != nil {
		fail("Error fingerprinting the database copy: %v", err)
		return failures, nil
	}
	for number, fp := range want {
		if got[number] != fp {
			fail("Table %d has fingerprint %s in the database copy instead of %s", number, got[number], fp)
		}
	}
	return failures, nil
}
