// binary.go implements the binary table format.
//
// Record layout (all integers little-endian):
//   - type[2] + length[2] + payload[length] for every field;
//   - the values record declares min(8*count, 65535) as its length but is
//     always followed by 8*count bytes of float64;
//   - type 9999 alone ends the table.
package ratetable

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/let-me-illustrate/lmi-sub002/core/errors"
)

// Payload sizes of the fixed-size records.
const (
	numberSize = 4
	typeSize   = 1
	uint16Size = 2
	hashSize   = 4
	valueSize  = 8
)

type binaryWriter struct {
	w io.Writer
}

func (bw *binaryWriter) decimalsFirst() bool { return true }

func (bw *binaryWriter) writeHeader(f field, length uint16) error {
	buf := append(toWire(f.recordType()), toWire(length)...)
	if err := streamWrite(bw.w, buf); err != nil {
		return errors.NewIO(fmt.Sprintf("write header of the field '%s'", f), "", err)
	}
	return nil
}

func (bw *binaryWriter) writePayload(f field, payload []byte) error {
	if err := streamWrite(bw.w, payload); err != nil {
		return errors.NewIO(fmt.Sprintf("write the field '%s'", f), "", err)
	}
	return nil
}

func (bw *binaryWriter) writeRecord(f field, payload []byte) error {
	if len(payload) > math.MaxUint16 {
		return errors.NewValidation(f.String(),
			fmt.Sprintf("the value of the field '%s' is too long to be represented in the binary format", f))
	}
	if err := bw.writeHeader(f, uint16(len(payload))); err != nil {
		return err
	}
	return bw.writePayload(f, payload)
}

func (bw *binaryWriter) writeString(f field, v optional[string]) error {
	if !v.ok {
		return nil
	}
	return bw.writeRecord(f, []byte(v.value))
}

func (bw *binaryWriter) writeNumber(v optional[Number]) error {
	if !v.ok {
		return nil
	}
	return bw.writeRecord(fieldTableNumber, toWire(uint32(v.value)))
}

func (bw *binaryWriter) writeType(v optional[TableType]) error {
	if !v.ok {
		return nil
	}
	return bw.writeRecord(fieldTableType, []byte{byte(v.value)})
}

func (bw *binaryWriter) writeUint16(f field, v optional[uint16]) error {
	if !v.ok {
		return nil
	}
	return bw.writeRecord(f, toWire(v.value))
}

func (bw *binaryWriter) writeValues(t *Table) error {
	values, ok := t.values.get()
	if !ok {
		return nil
	}

	// The declared length saturates; readers derive the real count from the
	// age fields.
	length := uint16(math.MaxUint16)
	if n := len(values) * valueSize; n < math.MaxUint16 {
		length = uint16(n)
	}
	if err := bw.writeHeader(fieldValues, length); err != nil {
		return err
	}

	payload := make([]byte, 0, len(values)*valueSize)
	for _, v := range values {
		payload = append(payload, toWire(v)...)
	}
	return bw.writePayload(fieldValues, payload)
}

func (bw *binaryWriter) writeHash(t *Table) error {
	if !t.hashValue.ok {
		return nil
	}
	return bw.writeRecord(fieldHashValue, toWire(t.hashValue.value))
}

func (bw *binaryWriter) end() error {
	if err := streamWrite(bw.w, toWire(recordEndOfTable)); err != nil {
		return errors.NewIO("write the end of table marker", "", err)
	}
	return nil
}

// SaveAsBinary writes the table in the binary format.
func (t *Table) SaveAsBinary(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := t.writeFields(&binaryWriter{w: bw}); err != nil {
		return errors.Wrapf(err, "error saving table %d", t.Number())
	}
	if err := bw.Flush(); err != nil {
		return errors.NewIO(fmt.Sprintf("write table %d", t.Number()), "", err)
	}
	return nil
}

// binaryBytes returns the binary serialization of the table.
func (t *Table) binaryBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.SaveAsBinary(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFromBinary reads one table in the binary format from r, stopping after
// its end marker. offset is only used in error messages.
func ReadFromBinary(r io.Reader, offset int64) (*Table, error) {
	t, err := readBinary(r)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading table from the offset %d", offset)
	}
	return t, nil
}

func readBinary(r io.Reader) (*Table, error) {
	t := &Table{}
	if err := t.readBinaryFields(r); err != nil {
		if number, ok := t.number.get(); ok {
			return nil, errors.Wrapf(err, "bad data for table %d", number)
		}
		return nil, err
	}
	return t, nil
}

// readBinaryFields reads records up to the end marker and validates the
// result.
func (t *Table) readBinaryFields(r io.Reader) error {
	header := make([]byte, 2)
	for {
		if err := streamRead(r, header); err != nil {
			return errors.NewIO("read field type", "", err)
		}
		recordType := fromWire[uint16](header)
		if recordType == recordEndOfTable {
			break
		}

		if err := streamRead(r, header); err != nil {
			return errors.NewIO("read field length", "", err)
		}
		length := fromWire[uint16](header)

		f, ok := fieldByRecordType(recordType)
		if !ok {
			return errors.Binaryf("unknown field type %d", recordType)
		}
		if t.has(f) {
			return errors.Binaryf("duplicate field '%s'", f)
		}
		if err := t.readBinaryField(r, f, length); err != nil {
			return err
		}
	}
	return t.validate()
}

// readFixed reads the payload of a fixed-size field after checking its
// declared length.
func readFixed(r io.Reader, f field, length uint16, size int) ([]byte, error) {
	if int(length) != size {
		return nil, errors.Binaryf("incorrect length %d of the field '%s', %d expected", length, f, size)
	}
	buf := make([]byte, size)
	if err := streamRead(r, buf); err != nil {
		return nil, errors.NewIO(fmt.Sprintf("read the field '%s'", f), "", err)
	}
	return buf, nil
}

func (t *Table) readBinaryField(r io.Reader, f field, length uint16) error {
	switch f.kind() {
	case kindString:
		buf := make([]byte, length)
		if err := streamRead(r, buf); err != nil {
			return errors.NewIO(fmt.Sprintf("read the field '%s'", f), "", err)
		}
		t.strs[f] = some(string(buf))

	case kindNumber:
		buf, err := readFixed(r, f, length, numberSize)
		if err != nil {
			return err
		}
		t.number = some(Number(fromWire[uint32](buf)))

	case kindType:
		buf, err := readFixed(r, f, length, typeSize)
		if err != nil {
			return err
		}
		typ, ok := tableTypeFromByte(buf[0])
		if !ok {
			return errors.Binaryf("unknown table type '%c'", buf[0])
		}
		t.typ = some(typ)

	case kindUint16:
		if (f == fieldSelectPeriod || f == fieldMaxSelectAge) && t.values.ok {
			return errors.Binaryf("field '%s' must occur before the table values", f)
		}
		buf, err := readFixed(r, f, length, uint16Size)
		if err != nil {
			return err
		}
		*t.uint16Field(f) = some(fromWire[uint16](buf))

	case kindValues:
		// The declared length is ignored on purpose, see expectedValueCount.
		count, err := t.expectedValueCount()
		if err != nil {
			return err
		}
		values, err := readValues(r, count)
		if err != nil {
			return err
		}
		t.values = some(values)

	case kindHash:
		buf, err := readFixed(r, f, length, hashSize)
		if err != nil {
			return err
		}
		t.hashValue = some(fromWire[uint32](buf))
		t.hashSupplied = true
	}
	return nil
}

// readValues reads count doubles without trusting count for the initial
// allocation, so a corrupt header cannot exhaust memory before the data
// runs out.
func readValues(r io.Reader, count int) ([]float64, error) {
	const chunk = 4096
	values := make([]float64, 0, min(count, chunk))
	buf := make([]byte, chunk*valueSize)
	for remaining := count; remaining > 0; {
		n := min(remaining, chunk)
		if err := streamRead(r, buf[:n*valueSize]); err != nil {
			return nil, errors.NewIO(fmt.Sprintf("read %d values", count), "", err)
		}
		for i := 0; i < n; i++ {
			values = append(values, fromWire[float64](buf[i*valueSize:]))
		}
		remaining -= n
	}
	return values, nil
}
