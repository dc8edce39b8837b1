package serializer

import "time"

// Encoder is implemented by any described-record type that knows how to
// write its own fields, in a fixed declared order, onto a Writer. This is
// the substitute for compile-time member reflection, and it doubles as
// the custom-hook escape mechanism: a type that needs non-default wire
// behavior (like WireTime below) just implements Encoder itself.
type Encoder interface {
	EncodeRPC(w *Writer)
}

// Decoder is the read-side counterpart of Encoder. DecodeRPC must consume
// exactly the bytes its EncodeRPC counterpart produced, in the same
// order, and return an error rather than panicking on a short payload.
type Decoder interface {
	DecodeRPC(r *Reader) error
}

// WriteRecord invokes v's Encoder implementation. Kept as a free function
// (rather than requiring callers to invoke v.EncodeRPC directly) so
// generic helpers in shapes.go can treat "encode a T" uniformly whether T
// is a primitive-shaped helper or a described record.
func WriteRecord(w *Writer, v Encoder) {
	v.EncodeRPC(w)
}

// ReadRecord invokes v's Decoder implementation.
func ReadRecord(r *Reader, v Decoder) error {
	return v.DecodeRPC(r)
}

// WireTime is a custom-hook example type: it wraps time.Time but encodes
// as a single int64 Unix-seconds value on the wire, matching how the
// original calculator service's telemetry timestamps cross the wire as a
// plain time_t rather than a structured record.
type WireTime struct {
	time.Time
}

// EncodeRPC writes the Unix-seconds representation of t.
func (t WireTime) EncodeRPC(w *Writer) {
	w.WriteInt64(t.Unix())
}

// DecodeRPC reads a Unix-seconds value back into t.
func (t *WireTime) DecodeRPC(r *Reader) error {
	sec, err := r.ReadInt64()
	if err != nil {
		return err
	}
	t.Time = time.Unix(sec, 0).UTC()
	return nil
}
