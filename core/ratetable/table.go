package ratetable

import (
	"fmt"
	"math"
	"slices"

	"github.com/let-me-illustrate/lmi-sub002/core/errors"
)

// TableType determines the layout of the table values. Its value is the byte
// stored in the binary format.
type TableType byte

const (
	Aggregate TableType = 'A'
	Duration  TableType = 'D'
	Select    TableType = 'S'
)

// String returns the name used in the text format.
func (t TableType) String() string {
	switch t {
	case Aggregate:
		return "Aggregate"
	case Duration:
		return "Duration"
	case Select:
		return "Select"
	}
	return fmt.Sprintf("TableType(%q)", byte(t))
}

func tableTypeFromByte(b byte) (TableType, bool) {
	switch t := TableType(b); t {
	case Aggregate, Duration, Select:
		return t, true
	}
	return 0, false
}

func tableTypeFromName(name string) (TableType, bool) {
	for _, t := range []TableType{Aggregate, Duration, Select} {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// Number is a table number, unique within a database.
type Number uint32

// optional holds a field value together with whether it was specified.
type optional[T any] struct {
	value T
	ok    bool
}

func some[T any](v T) optional[T] {
	return optional[T]{value: v, ok: true}
}

func (o optional[T]) get() (T, bool) {
	return o.value, o.ok
}

// or returns the value if present and def otherwise.
func (o optional[T]) or(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// Table is a single rate table. Tables are created by reading one of the two
// formats or by NewTable and are immutable afterwards, except for the name.
// All tables returned by this package have passed validation.
type Table struct {
	strs         [numFields]optional[string] // only string fields are used
	number       optional[Number]
	typ          optional[TableType]
	minAge       optional[uint16]
	maxAge       optional[uint16]
	selectPeriod optional[uint16]
	maxSelectAge optional[uint16]
	numDecimals  optional[uint16]
	values       optional[[]float64]
	hashValue    optional[uint32]

	// hashSupplied is set when the hash came from the input rather than
	// being computed; only supplied hashes are written to text.
	hashSupplied bool
}

// Spec describes a table built in memory. Empty strings and zero select
// fields are treated as absent and a zero HashValue is computed.
type Spec struct {
	Name               string
	Number             Number
	Type               TableType
	Contributor        string
	DataSource         string
	DataVolume         string
	ObsPeriod          string
	UnitOfObs          string
	ConstructionMethod string
	PublishedReference string
	Comments           string
	MinAge             uint16
	MaxAge             uint16
	SelectPeriod       uint16
	MaxSelectAge       uint16
	NumDecimals        uint16
	Values             []float64
	HashValue          uint32
}

// NewTable builds and validates a table from s.
func NewTable(s Spec) (*Table, error) {
	t := &Table{}
	for f, v := range map[field]string{
		fieldTableName:          s.Name,
		fieldContributor:        s.Contributor,
		fieldDataSource:         s.DataSource,
		fieldDataVolume:         s.DataVolume,
		fieldObsPeriod:          s.ObsPeriod,
		fieldUnitOfObs:          s.UnitOfObs,
		fieldConstructionMethod: s.ConstructionMethod,
		fieldPublishedReference: s.PublishedReference,
		fieldComments:           s.Comments,
	} {
		if v != "" {
			t.strs[f] = some(v)
		}
	}
	t.number = some(s.Number)
	if s.Type != 0 {
		t.typ = some(s.Type)
	}
	t.minAge = some(s.MinAge)
	t.maxAge = some(s.MaxAge)
	if s.SelectPeriod != 0 {
		t.selectPeriod = some(s.SelectPeriod)
	}
	if s.MaxSelectAge != 0 {
		t.maxSelectAge = some(s.MaxSelectAge)
	}
	t.numDecimals = some(s.NumDecimals)
	if len(s.Values) > 0 {
		t.values = some(slices.Clone(s.Values))
	}
	if s.HashValue != 0 {
		t.hashValue = some(s.HashValue)
		t.hashSupplied = true
	}

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// has reports whether f was specified.
func (t *Table) has(f field) bool {
	switch f.kind() {
	case kindNumber:
		return t.number.ok
	case kindType:
		return t.typ.ok
	case kindUint16:
		return t.uint16Field(f).ok
	case kindValues:
		return t.values.ok
	case kindHash:
		return t.hashValue.ok
	}
	return t.strs[f].ok
}

// uint16Field returns the storage of one of the 16-bit fields.
func (t *Table) uint16Field(f field) *optional[uint16] {
	switch f {
	case fieldMinAge:
		return &t.minAge
	case fieldMaxAge:
		return &t.maxAge
	case fieldSelectPeriod:
		return &t.selectPeriod
	case fieldMaxSelectAge:
		return &t.maxSelectAge
	case fieldNumDecimals:
		return &t.numDecimals
	}
	panic(fmt.Sprintf("ratetable: %s is not a 16-bit field", f))
}

// Name returns the table name, or an empty string if it has none.
func (t *Table) Name() string { return t.strs[fieldTableName].value }

// SetName changes the table name. The name is not part of the hash.
func (t *Table) SetName(name string) {
	t.strs[fieldTableName] = some(name)
}

// Number returns the table number.
func (t *Table) Number() Number { return t.number.value }

// Type returns the table type.
func (t *Table) Type() TableType { return t.typ.value }

// Contributor, DataSource, DataVolume, ObsPeriod, UnitOfObs,
// ConstructionMethod, PublishedReference and Comments return the descriptive
// string fields, or an empty string for absent ones.
func (t *Table) Contributor() string        { return t.strs[fieldContributor].value }
func (t *Table) DataSource() string         { return t.strs[fieldDataSource].value }
func (t *Table) DataVolume() string         { return t.strs[fieldDataVolume].value }
func (t *Table) ObsPeriod() string          { return t.strs[fieldObsPeriod].value }
func (t *Table) UnitOfObs() string          { return t.strs[fieldUnitOfObs].value }
func (t *Table) ConstructionMethod() string { return t.strs[fieldConstructionMethod].value }
func (t *Table) PublishedReference() string { return t.strs[fieldPublishedReference].value }
func (t *Table) Comments() string           { return t.strs[fieldComments].value }

// MinAge returns the first age of the table.
func (t *Table) MinAge() uint16 { return t.minAge.value }

// MaxAge returns the last age of the table.
func (t *Table) MaxAge() uint16 { return t.maxAge.value }

// SelectPeriod returns the number of select durations, 0 unless the table is
// a Select table.
func (t *Table) SelectPeriod() uint16 { return t.selectPeriod.value }

// MaxSelectAge returns the last issue age with select values, 0 unless the
// table is a Select table.
func (t *Table) MaxSelectAge() uint16 { return t.maxSelectAge.value }

// NumDecimals returns the number of decimals every value is written with.
func (t *Table) NumDecimals() uint16 { return t.numDecimals.value }

// HashValue returns the stored hash, which validation keeps equal to
// ComputeHashValue.
func (t *Table) HashValue() uint32 { return t.hashValue.value }

// Values returns a copy of the values in storage order.
func (t *Table) Values() []float64 { return slices.Clone(t.values.value) }

// Equal reports whether both tables have the same fields with the same
// values. Whether the hash was read or computed does not matter.
func (t *Table) Equal(other *Table) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	return t.strs == other.strs &&
		t.number == other.number &&
		t.typ == other.typ &&
		t.minAge == other.minAge &&
		t.maxAge == other.maxAge &&
		t.selectPeriod == other.selectPeriod &&
		t.maxSelectAge == other.maxSelectAge &&
		t.numDecimals == other.numDecimals &&
		t.values.ok == other.values.ok &&
		slices.Equal(t.values.value, other.values.value) &&
		t.hashValue == other.hashValue
}

// Cell is one table value with its position in the table layout.
type Cell struct {
	// Age is the issue age of a select value and the attained age (or
	// duration, for Duration tables) of every other value.
	Age int
	// Duration is 1..SelectPeriod for select values and 0 otherwise.
	Duration int
	Value    float64
}

// Cells returns the values in storage order together with their ages.
func (t *Table) Cells() []Cell {
	values := t.values.value
	cells := make([]Cell, 0, len(values))
	minAge, maxAge := int(t.minAge.value), int(t.maxAge.value)

	if t.typ.value != Select {
		for i, v := range values {
			cells = append(cells, Cell{Age: minAge + i, Value: v})
		}
		return cells
	}

	sp, msa := int(t.selectPeriod.value), int(t.maxSelectAge.value)
	i := 0
	for age := minAge; age <= msa; age++ {
		for d := 1; d <= sp; d++ {
			cells = append(cells, Cell{Age: age, Duration: d, Value: values[i]})
			i++
		}
		cells = append(cells, Cell{Age: age + sp, Value: values[i]})
		i++
	}
	for age := msa + sp + 1; age <= maxAge; age++ {
		cells = append(cells, Cell{Age: age, Value: values[i]})
		i++
	}
	return cells
}

// expectedValueCount derives the number of values from the age and select
// fields. The length stored in the binary values record is not used because
// 16 bits are not enough for large tables.
func (t *Table) expectedValueCount() (int, error) {
	minAge, ok := t.minAge.get()
	if !ok {
		return 0, errors.NewValidation(fieldMinAge.String(), "minimum age must be specified before the table values")
	}
	maxAge, ok := t.maxAge.get()
	if !ok {
		return 0, errors.NewValidation(fieldMaxAge.String(), "maximum age must be specified before the table values")
	}
	if minAge > maxAge {
		return 0, errors.NewValidation(fieldMinAge.String(),
			fmt.Sprintf("minimum age %d cannot be greater than the maximum age %d", minAge, maxAge))
	}

	numValues := uint64(maxAge) - uint64(minAge) + 1
	selectPeriod := uint64(t.selectPeriod.or(0))
	if selectPeriod == 0 {
		return int(numValues), nil
	}

	if selectPeriod >= numValues {
		return 0, errors.NewValidation(fieldSelectPeriod.String(),
			fmt.Sprintf("select period %d is too big for the age range %d..%d", selectPeriod, minAge, maxAge))
	}
	numValues -= selectPeriod

	// A missing or zero maximum select age means the maximum age.
	effectiveMaxSelect := t.maxSelectAge.or(0)
	if effectiveMaxSelect == 0 {
		effectiveMaxSelect = maxAge
	}
	if effectiveMaxSelect < minAge {
		return 0, errors.NewValidation(fieldMaxSelectAge.String(),
			fmt.Sprintf("maximum select age %d cannot be less than the minimum age %d", effectiveMaxSelect, minAge))
	}
	selectRange := uint64(effectiveMaxSelect) - uint64(minAge) + 1
	if selectRange > (math.MaxUint32-numValues)/selectPeriod {
		return 0, errors.NewValidation(fieldValues.String(),
			fmt.Sprintf("too many values in the table with maximum age %d, select period %d and maximum select age %d",
				maxAge, selectPeriod, effectiveMaxSelect))
	}
	numValues += selectRange * selectPeriod
	return int(numValues), nil
}
