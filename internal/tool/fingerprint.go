package tool

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/let-me-illustrate/lmi-sub002/core/ratetable"
)

// Fingerprint returns the hex BLAKE3-256 digest of the binary form of t.
// Unlike the legacy hash it covers every field, names included.
func Fingerprint(t *ratetable.Table) (string, error) {
	h := blake3.New()
	if err := t.SaveAsBinary(h); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprints returns the fingerprint of every table in db by number.
func Fingerprints(db *ratetable.Database) (map[ratetable.Number]string, error) {
	prints := make(map[ratetable.Number]string, db.TablesCount())
	for i := 0; i < db.TablesCount(); i++ {
		t, err := db.GetNthTable(i)
		if err != nil {
			return nil, err
		}
		fp, err := Fingerprint(t)
		if err != nil {
			return nil, err
		}
		prints[t.Number()] = fp
	}
	return prints, nil
}

// Digest prints the number and fingerprint of every table, sorted by number.
func Digest(w io.Writer, db *ratetable.Database) error {
	tables, err := sortedTables(db)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fp, err := Fingerprint(t)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%5d %s %s\n", t.Number(), fp, t.Name())
	}
	return nil
}
