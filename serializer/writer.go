// Package serializer implements the byte-exact binary encoding used for
// every RPC argument and result payload: fixed-size primitives in their
// native little-endian layout, length-prefixed strings/sequences,
// presence-tagged optionals, success-tagged results, and index-tagged
// variants. Encoding a given schema from the same input always produces
// the same bytes, and a Reader accepts exactly what a Writer produced.
package serializer

import (
	"encoding/binary"
	"math"
)

// Writer builds a payload by successive appends. The zero value is not
// usable; construct one with NewWriter.
type Writer struct {
	buf   []byte
	State any
}

// NewWriter returns a Writer carrying the given SerializerState (nil if
// the caller has none). state is threaded through every recursive
// encoding call unchanged so user-defined Encoder implementations can
// consult it.
func NewWriter(state any) *Writer {
	return &Writer{State: state}
}

// NewWriterSize is like NewWriter but pre-allocates cap bytes of buffer,
// avoiding reallocation for a caller who knows the approximate payload
// size up front.
func NewWriterSize(state any, cap int) *Writer {
	return &Writer{buf: make([]byte, 0, cap), State: state}
}

// Bytes returns the payload built so far. The Writer must not be used
// again after calling Bytes if the caller intends to take ownership of
// the returned slice.
func (w *Writer) Bytes() []byte {
	if w.buf == nil {
		return []byte{}
	}
	return w.buf
}

// Len reports the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) grow(n int) []byte {
	off := len(w.buf)
	w.buf = append(w.buf, make([]byte, n)...)
	return w.buf[off : off+n]
}

// WriteRawBytes appends b verbatim, with no length prefix. Used internally
// by WriteBytes/WriteString and available directly for custom framing.
func (w *Writer) WriteRawBytes(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// WriteBool writes v as a single 0x00/0x01 byte.
func (w *Writer) WriteBool(v bool) *Writer {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

// WriteUint8 writes v as a single byte.
func (w *Writer) WriteUint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// WriteInt8 writes v as a single byte.
func (w *Writer) WriteInt8(v int8) *Writer {
	return w.WriteUint8(uint8(v))
}

// WriteUint16 writes v little-endian.
func (w *Writer) WriteUint16(v uint16) *Writer {
	binary.LittleEndian.PutUint16(w.grow(2), v)
	return w
}

// WriteInt16 writes v little-endian.
func (w *Writer) WriteInt16(v int16) *Writer {
	return w.WriteUint16(uint16(v))
}

// WriteUint32 writes v little-endian.
func (w *Writer) WriteUint32(v uint32) *Writer {
	binary.LittleEndian.PutUint32(w.grow(4), v)
	return w
}

// WriteInt32 writes v little-endian.
func (w *Writer) WriteInt32(v int32) *Writer {
	return w.WriteUint32(uint32(v))
}

// WriteUint64 writes v little-endian.
func (w *Writer) WriteUint64(v uint64) *Writer {
	binary.LittleEndian.PutUint64(w.grow(8), v)
	return w
}

// WriteInt64 writes v little-endian.
func (w *Writer) WriteInt64(v int64) *Writer {
	return w.WriteUint64(uint64(v))
}

// WriteFloat32 writes v in its IEEE-754 little-endian bit pattern.
func (w *Writer) WriteFloat32(v float32) *Writer {
	return w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 writes v in its IEEE-754 little-endian bit pattern.
func (w *Writer) WriteFloat64(v float64) *Writer {
	return w.WriteUint64(math.Float64bits(v))
}

// WriteBytes writes a byte-sequence view: a u32 length followed by the
// raw bytes, element size 1.
func (w *Writer) WriteBytes(b []byte) *Writer {
	w.WriteUint32(uint32(len(b)))
	return w.WriteRawBytes(b)
}

// WriteString writes a string as a u32 length (in bytes) followed by its
// UTF-8 encoding, with no trailing terminator.
func (w *Writer) WriteString(s string) *Writer {
	w.WriteUint32(uint32(len(s)))
	return w.WriteRawBytes([]byte(s))
}
