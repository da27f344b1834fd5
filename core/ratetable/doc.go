// Package ratetable reads, writes and validates actuarial rate tables in the
// SOA table database format.
//
// A table has two serializations that must stay byte-exact with decades of
// existing files:
//
//   - binary: a sequence of records {type uint16, length uint16, payload},
//     little-endian, terminated by the record type 9999 alone;
//   - text: "Field name: value" lines followed by a fixed-column
//     "Table values:" section.
//
// A Database is a pair of files: a .ndx index of fixed 58-byte entries
// (number uint32, 50-byte NUL padded name, offset uint32) and a .dat file
// holding the binary tables at those offsets. Tables are loaded lazily on
// first access and cached.
//
// Tables whose declared number of decimals does not match their values are
// corrected while reading, with a warning; every other inconsistency is an
// error.
package ratetable
