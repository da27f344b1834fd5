package ratetable

// fieldWriter is implemented by the binary and the text format. Absent
// fields are skipped by the implementations.
type fieldWriter interface {
	// decimalsFirst reports whether the number of decimals goes before the
	// ages instead of after the maximum select age.
	decimalsFirst() bool

	writeString(f field, v optional[string]) error
	writeNumber(v optional[Number]) error
	writeType(v optional[TableType]) error
	writeUint16(f field, v optional[uint16]) error
	writeValues(t *Table) error
	writeHash(t *Table) error
	end() error
}

// writeFields walks the table fields in the order shared by both formats.
func (t *Table) writeFields(w fieldWriter) error {
	steps := []func() error{
		func() error { return w.writeString(fieldTableName, t.strs[fieldTableName]) },
		func() error { return w.writeNumber(t.number) },
		func() error { return w.writeType(t.typ) },
	}
	for f := fieldContributor; f <= fieldComments; f++ {
		steps = append(steps, func() error { return w.writeString(f, t.strs[f]) })
	}

	decimals := func() error { return w.writeUint16(fieldNumDecimals, t.numDecimals) }
	if w.decimalsFirst() {
		steps = append(steps, decimals)
	}
	for _, f := range []field{fieldMinAge, fieldMaxAge, fieldSelectPeriod, fieldMaxSelectAge} {
		steps = append(steps, func() error { return w.writeUint16(f, *t.uint16Field(f)) })
	}
	if !w.decimalsFirst() {
		steps = append(steps, decimals)
	}

	steps = append(steps,
		func() error { return w.writeValues(t) },
		func() error { return w.writeHash(t) },
		w.end,
	)

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
