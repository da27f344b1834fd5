package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/let-me-illustrate/lmi-sub002/core/ratetable"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

// schema holds one row per table in "tables" and one row per value in
// "table_values". Duration is 0 for ultimate and non-select values.
const schema = `
CREATE TABLE tables (
	number              INTEGER PRIMARY KEY,
	name                TEXT NOT NULL,
	type                TEXT NOT NULL,
	contributor         TEXT,
	data_source         TEXT,
	data_volume         TEXT,
	obs_period          TEXT,
	unit_of_obs         TEXT,
	construction_method TEXT,
	published_reference TEXT,
	comments            TEXT,
	min_age             INTEGER NOT NULL,
	max_age             INTEGER NOT NULL,
	select_period       INTEGER,
	max_select_age      INTEGER,
	num_decimals        INTEGER NOT NULL,
	hash_value          INTEGER NOT NULL
);
CREATE TABLE table_values (
	number   INTEGER NOT NULL REFERENCES tables(number),
	age      INTEGER NOT NULL,
	duration INTEGER NOT NULL,
	value    REAL NOT NULL,
	PRIMARY KEY (number, age, duration)
);
`

// ExportTables writes tables to a new SQLite database at path, replacing
// any existing file.
func ExportTables(ctx context.Context, path string, tables []*ratetable.Table) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing export: %w", err)
	}

	info := GetInfo()
	logging.Debug("exporting tables to sqlite",
		"path", path,
		"tables", len(tables),
		"driver", info.DriverName,
		"driver_type", info.DriverType,
		"package", info.Package)

	db, err := Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := insertTables(ctx, tx, tables); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

func nullIfZero(v uint16) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func insertTables(ctx context.Context, tx *sql.Tx, tables []*ratetable.Table) error {
	tableStmt, err := tx.PrepareContext(ctx, `INSERT INTO tables VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare table insert: %w", err)
	}
	defer tableStmt.Close()

	valueStmt, err := tx.PrepareContext(ctx, `INSERT INTO table_values VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare value insert: %w", err)
	}
	defer valueStmt.Close()

	for _, t := range tables {
		_, err := tableStmt.ExecContext(ctx,
			int64(t.Number()),
			t.Name(),
			t.Type().String(),
			nullIfEmpty(t.Contributor()),
			nullIfEmpty(t.DataSource()),
			nullIfEmpty(t.DataVolume()),
			nullIfEmpty(t.ObsPeriod()),
			nullIfEmpty(t.UnitOfObs()),
			nullIfEmpty(t.ConstructionMethod()),
			nullIfEmpty(t.PublishedReference()),
			nullIfEmpty(t.Comments()),
			int64(t.MinAge()),
			int64(t.MaxAge()),
			nullIfZero(t.SelectPeriod()),
			nullIfZero(t.MaxSelectAge()),
			int64(t.NumDecimals()),
			int64(t.HashValue()),
		)
		if err != nil {
			return fmt.Errorf("failed to insert table %d: %w", t.Number(), err)
		}

		for _, c := range t.Cells() {
			if _, err := valueStmt.ExecContext(ctx, int64(t.Number()), c.Age, c.Duration, c.Value); err != nil {
				return fmt.Errorf("failed to insert value of table %d at age %d: %w", t.Number(), c.Age, err)
			}
		}
	}
	return nil
}
