// Package sqlite exports rate tables to SQLite databases, using either the
// pure Go driver (modernc.org/sqlite) or the CGO one (mattn/go-sqlite3).
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3
//
// Use Open() instead of sql.Open() to ensure the correct driver is used.
package sqlite

import (
	"database/sql"
)

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// Open opens a SQLite database using the appropriate driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// Info describes the driver compiled into the binary.
type Info struct {
	DriverName string
	DriverType string // "purego" or "cgo"
	Package    string
}

// GetInfo returns the driver compiled into the binary.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		Package:    driverPackage,
	}
}
