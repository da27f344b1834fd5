package ratetable

// field identifies one piece of table data. The order of the constants is
// the order in which fields appear in the text format.
type field int

const (
	fieldTableName field = iota
	fieldTableNumber
	fieldTableType
	fieldContributor
	fieldDataSource
	fieldDataVolume
	fieldObsPeriod
	fieldUnitOfObs
	fieldConstructionMethod
	fieldPublishedReference
	fieldComments
	fieldMinAge
	fieldMaxAge
	fieldSelectPeriod
	fieldMaxSelectAge
	fieldNumDecimals
	fieldValues
	fieldHashValue

	numFields
)

// fieldInfo describes how a field is represented in both formats.
type fieldInfo struct {
	recordType uint16 // binary record type tag
	name       string // text format field name
}

// fieldCatalog is the only place where record types and field names are
// spelled out; the binary and text readers and writers all go through it.
var fieldCatalog = [numFields]fieldInfo{
	fieldTableName:          {1, "Table name"},
	fieldTableNumber:        {2, "Table number"},
	fieldTableType:          {3, "Table type"},
	fieldContributor:        {4, "Contributor"},
	fieldDataSource:         {5, "Source of data"},
	fieldDataVolume:         {6, "Volume of data"},
	fieldObsPeriod:          {7, "Observation period"},
	fieldUnitOfObs:          {8, "Unit of observation"},
	fieldConstructionMethod: {9, "Construction method"},
	fieldPublishedReference: {10, "Published reference"},
	fieldComments:           {11, "Comments"},
	fieldMinAge:             {12, "Minimum age"},
	fieldMaxAge:             {13, "Maximum age"},
	fieldSelectPeriod:       {14, "Select period"},
	fieldMaxSelectAge:       {15, "Maximum select age"},
	fieldNumDecimals:        {16, "Number of decimal places"},
	fieldValues:             {17, "Table values"},
	fieldHashValue:          {18, "Hash value"},
}

// recordEndOfTable terminates a table in the binary format. It is written
// without length or payload.
const recordEndOfTable uint16 = 9999

// fieldKind groups fields sharing a representation.
type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindType
	kindUint16
	kindValues
	kindHash
)

func (f field) String() string {
	return fieldCatalog[f].name
}

func (f field) recordType() uint16 {
	return fieldCatalog[f].recordType
}

func (f field) kind() fieldKind {
	switch f {
	case fieldTableNumber:
		return kindNumber
	case fieldTableType:
		return kindType
	case fieldMinAge, fieldMaxAge, fieldSelectPeriod, fieldMaxSelectAge, fieldNumDecimals:
		return kindUint16
	case fieldValues:
		return kindValues
	case fieldHashValue:
		return kindHash
	}
	return kindString
}

// fieldByRecordType maps a binary record type to its field.
func fieldByRecordType(recordType uint16) (field, bool) {
	for f := field(0); f < numFields; f++ {
		if fieldCatalog[f].recordType == recordType {
			return f, true
		}
	}
	return 0, false
}

// fieldByName maps a text field name to its field. The comparison is exact.
func fieldByName(name string) (field, bool) {
	for f := field(0); f < numFields; f++ {
		if fieldCatalog[f].name == name {
			return f, true
		}
	}
	return 0, false
}
