package ratetable

import (
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/let-me-illustrate/lmi-sub002/core/errors"
	"github.com/let-me-illustrate/lmi-sub002/internal/logging"
)

// validate checks the table invariants once all fields have been read.
//
// A declared number of decimals that disagrees with the values is corrected
// (and the hash recomputed) with a warning, as many historical tables have
// this defect. A missing or zero hash is computed; any other hash must match.
func (t *Table) validate() error {
	number, ok := t.number.get()
	if !ok {
		return errors.NewValidation(fieldTableNumber.String(), "table number not specified")
	}
	typ, ok := t.typ.get()
	if !ok {
		return errors.NewValidation(fieldTableType.String(), "table type not specified")
	}
	values, ok := t.values.get()
	if !ok || len(values) == 0 {
		return errors.NewValidation(fieldValues.String(), "no values defined")
	}

	switch typ {
	case Aggregate, Duration:
		if sp := t.selectPeriod.or(0); sp != 0 {
			return errors.NewValidation(fieldSelectPeriod.String(),
				fmt.Sprintf("select period %d cannot be specified for a table of type '%s'", sp, typ))
		}
		if msa, ok := t.maxSelectAge.get(); ok && msa != t.maxAge.value {
			return errors.NewValidation(fieldMaxSelectAge.String(),
				fmt.Sprintf("maximum select age %d different from the maximum age %d cannot be specified for a table of type '%s'",
					msa, t.maxAge.value, typ))
		}
	case Select:
		sp := t.selectPeriod.or(0)
		if sp == 0 {
			return errors.NewValidation(fieldSelectPeriod.String(), "select period must be specified for a select and ultimate table")
		}
		msa := t.maxSelectAge.or(0)
		if msa == 0 {
			return errors.NewValidation(fieldMaxSelectAge.String(), "maximum select age must be specified for a select and ultimate table")
		}
		if msa > t.maxAge.value {
			return errors.NewValidation(fieldMaxSelectAge.String(),
				fmt.Sprintf("maximum select age %d cannot be greater than the maximum age %d", msa, t.maxAge.value))
		}
		if int(msa)+int(sp) > int(t.maxAge.value) {
			return errors.NewValidation(fieldMaxSelectAge.String(),
				fmt.Sprintf("maximum select age %d and select period %d go beyond the maximum age %d", msa, sp, t.maxAge.value))
		}
	}

	declared, ok := t.numDecimals.get()
	if !ok {
		return errors.NewValidation(fieldNumDecimals.String(), "number of decimal places not specified")
	}

	expected, err := t.expectedValueCount()
	if err != nil {
		return err
	}
	if len(values) != expected {
		return errors.NewValidation(fieldValues.String(),
			fmt.Sprintf("wrong number of values %d, %d expected", len(values), expected))
	}

	if deduced := DeduceNumberOfDecimalsValues(values); deduced != int(declared) {
		logging.DecimalsRepaired(uint32(number), int(declared), deduced)
		t.numDecimals = some(uint16(deduced))
		t.hashValue = some(t.ComputeHashValue())
	}

	correct := t.ComputeHashValue()
	if h, ok := t.hashValue.get(); ok && h != 0 {
		if h != correct {
			return errors.NewValidation(fieldHashValue.String(),
				fmt.Sprintf("hash value %d doesn't match the computed hash value %d", h, correct))
		}
	} else {
		t.hashValue = some(correct)
		t.hashSupplied = false
	}
	return nil
}

// ComputeHashValue returns the CRC-based checksum of the table contents used
// by the legacy table manager. Only the ages, select fields and values take
// part; names and other metadata do not.
func (t *Table) ComputeHashValue() uint32 {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%03d%03d%03d%03d",
		t.minAge.value,
		t.maxAge.value,
		t.selectPeriod.or(0),
		t.maxSelectAge.or(0),
	)

	decimals := int(t.numDecimals.value)
	width := decimals + 2
	values := t.values.value
	for _, v := range values {
		s := strconv.FormatFloat(v, 'f', decimals, 64)
		// The zero fill of the ages carries over to the values.
		if pad := width - len(s); pad > 0 {
			sb.WriteString(strings.Repeat("0", pad))
		}
		sb.WriteString(s)
	}

	// The legacy algorithm hashes only this many characters, dropping the
	// end of the string.
	data := sb.String()
	if n := len(values) * width; n < len(data) {
		data = data[:n]
	}
	return crc32.ChecksumIEEE([]byte(data)) ^ 0xFFFFFFFF
}
