package ratetable

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/let-me-illustrate/lmi-sub002/core/errors"
	"github.com/let-me-illustrate/lmi-sub002/internal/fileutil"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

// Index file layout: every entry is a table number, a NUL-padded name and the
// offset of the table in the data file.
const (
	indexNameSize  = 50
	indexEntrySize = numberSize + indexNameSize + 4
)

// File extensions of the two files of a database.
const (
	IndexExtension = ".ndx"
	DataExtension  = ".dat"
)

// indexEntry is either loaded (table set) or only known by its offset in
// the data file.
type indexEntry struct {
	number Number
	offset uint32
	table  *Table
}

// Database is an ordered collection of tables with unique numbers, stored as
// an index file and a data file.
//
// Tables of an opened database are read from the data file on first access
// and cached. A Database is not safe for concurrent use.
type Database struct {
	path      string // for error messages only, may be empty
	entries   []indexEntry
	positions map[Number]int

	data       io.ReadSeeker
	dataCloser io.Closer
}

// New returns an empty database.
func New() *Database {
	return &Database{positions: make(map[Number]int)}
}

// DatabasePaths returns the index and data file paths of the database at
// path, whatever its extension.
func DatabasePaths(path string) (index, data string) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + IndexExtension, base + DataExtension
}

// Exists reports whether both files of the database at path exist.
func Exists(path string) bool {
	index, data := DatabasePaths(path)
	for _, p := range []string{index, data} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Open reads the index of the database at path. The extension of path, if
// any, is replaced by .ndx and .dat. The data file stays open until Close or
// Save.
func Open(path string) (*Database, error) {
	indexPath, dataPath := DatabasePaths(path)

	index, err := os.Open(indexPath)
	if err != nil {
		return nil, errors.NewIO("open database index file", indexPath, err)
	}
	defer index.Close()

	data, err := os.Open(dataPath)
	if err != nil {
		return nil, errors.NewIO("open database data file", dataPath, err)
	}

	db := New()
	db.path = path
	if err := db.readIndex(bufio.NewReader(index)); err != nil {
		data.Close()
		return nil, errors.Wrapf(err, "error reading database '%s'", path)
	}
	db.data = data
	db.dataCloser = data

	logging.GetLogger().Debug("database opened",
		"database", path,
		"tables", db.TablesCount())
	return db, nil
}

// OpenReaders reads a database from an index stream and a data stream. The
// data stream is used for lazy loading and is not closed by the database.
func OpenReaders(index io.Reader, data io.ReadSeeker) (*Database, error) {
	db := New()
	if err := db.readIndex(index); err != nil {
		return nil, errors.Wrap(err, "error reading database")
	}
	db.data = data
	return db, nil
}

func (db *Database) readIndex(r io.Reader) error {
	buf := make([]byte, indexEntrySize)
	for {
		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return nil
		}
		if err == io.ErrUnexpectedEOF {
			return errors.Binaryf("truncated index entry %d: %d bytes instead of %d", len(db.entries), n, indexEntrySize)
		}
		if err != nil {
			return errors.NewIO("read index entry", db.path, err)
		}

		number := fromWire[uint32](buf)
		offset := fromWire[uint32](buf[numberSize+indexNameSize:])

		if number > math.MaxInt32 {
			return errors.Binaryf("database '%s' is corrupt: table number %d is out of range", db.path, number)
		}
		if _, dup := db.positions[Number(number)]; dup {
			return errors.Binaryf("database '%s' is corrupt: duplicate entries for the table %d", db.path, number)
		}

		db.positions[Number(number)] = len(db.entries)
		db.entries = append(db.entries, indexEntry{number: Number(number), offset: offset})
	}
}

// TablesCount returns the number of tables.
func (db *Database) TablesCount() int {
	return len(db.entries)
}

// GetNthTable returns the table at position n in index order.
func (db *Database) GetNthTable(n int) (*Table, error) {
	if n < 0 || n >= len(db.entries) {
		return nil, errors.NewNotFound("table at position", strconv.Itoa(n))
	}
	return db.load(n)
}

// FindTable returns the table with the given number.
func (db *Database) FindTable(number Number) (*Table, error) {
	pos, ok := db.positions[number]
	if !ok {
		return nil, errors.NewNotFound("table", strconv.FormatUint(uint64(number), 10))
	}
	return db.load(pos)
}

// load returns the table of entry n, reading it from the data file if this
// was not done yet.
func (db *Database) load(n int) (*Table, error) {
	e := &db.entries[n]
	if e.table != nil {
		return e.table, nil
	}
	if db.data == nil {
		return nil, errors.NewIO(fmt.Sprintf("load table %d", e.number), db.path, os.ErrClosed)
	}

	if _, err := db.data.Seek(int64(e.offset), io.SeekStart); err != nil {
		return nil, errors.NewIO(fmt.Sprintf("seek to table %d", e.number), db.path, err)
	}
	t, err := ReadFromBinary(bufio.NewReader(db.data), int64(e.offset))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading database '%s'", db.path)
	}
	if t.Number() != e.number {
		return nil, errors.Binaryf("database '%s' is corrupt: table number %d is inconsistent with its number in the index (%d)",
			db.path, t.Number(), e.number)
	}

	e.table = t
	return t, nil
}

// AppendTable adds a table whose number is not used yet.
func (db *Database) AppendTable(t *Table) error {
	if _, ok := db.positions[t.Number()]; ok {
		return errors.NewExists("table", strconv.FormatUint(uint64(t.Number()), 10))
	}
	db.positions[t.Number()] = len(db.entries)
	db.entries = append(db.entries, indexEntry{number: t.Number(), table: t})
	return nil
}

// AddOrReplaceTable adds a table, replacing the one with the same number if
// there is one. A replaced table keeps its position.
func (db *Database) AddOrReplaceTable(t *Table) {
	if pos, ok := db.positions[t.Number()]; ok {
		db.entries[pos] = indexEntry{number: t.Number(), table: t}
		return
	}
	// Cannot fail, the number is not used.
	_ = db.AppendTable(t)
}

// DeleteTable removes the table with the given number. Tables after it move
// one position up.
func (db *Database) DeleteTable(number Number) error {
	pos, ok := db.positions[number]
	if !ok {
		return errors.NewNotFound("table", strconv.FormatUint(uint64(number), 10))
	}
	db.entries = append(db.entries[:pos], db.entries[pos+1:]...)
	delete(db.positions, number)
	for i := pos; i < len(db.entries); i++ {
		db.positions[db.entries[i].number] = i
	}
	return nil
}

// loadAll materializes every table, so the data file is no longer needed.
func (db *Database) loadAll() ([]*Table, error) {
	tables := make([]*Table, len(db.entries))
	for i := range db.entries {
		t, err := db.load(i)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	return tables, nil
}

// SaveTo writes the index and the data of all tables to the given streams.
func (db *Database) SaveTo(index, data io.Writer) error {
	tables, err := db.loadAll()
	if err != nil {
		return err
	}
	return writeDatabase(tables, index, data)
}

func writeDatabase(tables []*Table, index, data io.Writer) error {
	iw := bufio.NewWriter(index)
	var offset uint64
	for _, t := range tables {
		if offset > math.MaxUint32 {
			return errors.NewValidation("",
				fmt.Sprintf("database too big: table %d would be written at the offset %d", t.Number(), offset))
		}
		if err := streamWrite(iw, indexEntryBytes(t, uint32(offset))); err != nil {
			return errors.NewIO(fmt.Sprintf("write index entry for table %d", t.Number()), "", err)
		}

		buf, err := t.binaryBytes()
		if err != nil {
			return err
		}
		if err := streamWrite(data, buf); err != nil {
			return errors.NewIO(fmt.Sprintf("write table %d", t.Number()), "", err)
		}
		offset += uint64(len(buf))
	}
	if err := iw.Flush(); err != nil {
		return errors.NewIO("write index", "", err)
	}
	return nil
}

func indexEntryBytes(t *Table, offset uint32) []byte {
	entry := make([]byte, 0, indexEntrySize)
	entry = append(entry, toWire(uint32(t.Number()))...)

	// Names are truncated, keeping a terminating NUL.
	var name [indexNameSize]byte
	copy(name[:indexNameSize-1], t.Name())
	entry = append(entry, name[:]...)

	return append(entry, toWire(offset)...)
}

// Save writes the database to path, replacing .ndx and .dat files that may
// exist there, including the ones this database was opened from.
//
// Both files are written to temporaries first. If replacing the data file
// fails after the index was replaced, the previous index is restored.
func (db *Database) Save(path string) error {
	tables, err := db.loadAll()
	if err != nil {
		return err
	}

	indexPath, dataPath := DatabasePaths(path)
	pair, err := fileutil.CreateAtomicPair(indexPath, dataPath)
	if err != nil {
		return errors.NewIO("create database", path, err)
	}

	if err := writeDatabase(tables, pair.First, pair.Second); err != nil {
		pair.Abort()
		return errors.Wrapf(err, "error saving database '%s'", path)
	}

	// Every table is in memory now and the data file may be the one being
	// replaced.
	db.closeData()

	if err := pair.Commit(); err != nil {
		return errors.NewIO("save database", path, err)
	}

	logging.GetLogger().Debug("database saved",
		"database", path,
		"tables", len(tables))
	return nil
}

func (db *Database) closeData() error {
	db.data = nil
	if db.dataCloser == nil {
		return nil
	}
	err := db.dataCloser.Close()
	db.dataCloser = nil
	return err
}

// Close releases the data file. Tables not loaded yet cannot be accessed
// afterwards.
func (db *Database) Close() error {
	if err := db.closeData(); err != nil {
		return errors.NewIO("close database", db.path, err)
	}
	return nil
}
