package ratetable

import (
	"encoding/binary"
	"io"
	"math"
)

// Both constants are 0 or 1. When the ratetable_bigendian build tag does not
// match the target architecture one of these differences is negative and the
// package fails to compile. float64 is IEEE-754 binary64 by definition.
const (
	_ uint = hostBigEndian - declaredBigEndian
	_ uint = declaredBigEndian - hostBigEndian
)

// wireOrder is the byte order of every multi-byte value in the binary format.
var wireOrder = binary.LittleEndian

// wireValue lists the fixed-size types stored in binary records.
type wireValue interface {
	uint16 | uint32 | uint64 | float64
}

// wireSize returns the number of bytes used by T on the wire.
func wireSize[T wireValue]() int {
	var zero T
	switch any(zero).(type) {
	case uint16:
		return 2
	case uint32:
		return 4
	}
	return 8
}

// toWire returns the little-endian representation of v.
func toWire[T wireValue](v T) []byte {
	buf := make([]byte, wireSize[T]())
	switch x := any(v).(type) {
	case uint16:
		wireOrder.PutUint16(buf, x)
	case uint32:
		wireOrder.PutUint32(buf, x)
	case uint64:
		wireOrder.PutUint64(buf, x)
	case float64:
		wireOrder.PutUint64(buf, math.Float64bits(x))
	}
	return buf
}

// fromWire decodes a little-endian value from the start of b, which must hold
// at least wireSize[T]() bytes.
func fromWire[T wireValue](b []byte) T {
	var v T
	switch p := any(&v).(type) {
	case *uint16:
		*p = wireOrder.Uint16(b)
	case *uint32:
		*p = wireOrder.Uint32(b)
	case *uint64:
		*p = wireOrder.Uint64(b)
	case *float64:
		*p = math.Float64frombits(wireOrder.Uint64(b))
	}
	return v
}

// streamRead fills buf completely. A short read is an error: io.EOF when
// nothing at all could be read, io.ErrUnexpectedEOF otherwise.
func streamRead(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// streamWrite writes all of buf, reporting io.ErrShortWrite when the writer
// accepts fewer bytes without an error of its own.
func streamWrite(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}
