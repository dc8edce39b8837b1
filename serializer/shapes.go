package serializer

import "fmt"

// WriteOptional writes a presence byte followed by the value's encoding
// when present, replacing the arity-per-type Optional<T> instantiations
// the original template-based design required with one generic helper.
func WriteOptional[T any](w *Writer, v *T, encode func(*Writer, T)) {
	if v == nil {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	encode(w, *v)
}

// ReadOptional reads back what WriteOptional produced.
func ReadOptional[T any](r *Reader, decode func(*Reader) (T, error)) (*T, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := decode(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// WriteSlice writes a u32 element count followed by each element's
// encoding in order.
func WriteSlice[T any](w *Writer, s []T, encode func(*Writer, T)) {
	w.WriteUint32(uint32(len(s)))
	for _, v := range s {
		encode(w, v)
	}
}

// ReadSlice reads back what WriteSlice produced.
func ReadSlice[T any](r *Reader, decode func(*Reader) (T, error)) ([]T, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := decode(r)
		if err != nil {
			return nil, fmt.Errorf("serializer: element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// WriteInt32Slice writes a bitwise-copyable element type as one
// contiguous block: the count, then each element's little-endian bytes
// back to back, with no per-element framing.
func WriteInt32Slice(w *Writer, s []int32) {
	w.WriteUint32(uint32(len(s)))
	for _, v := range s {
		w.WriteInt32(v)
	}
}

// ReadInt32Slice reads back what WriteInt32Slice produced.
func ReadInt32Slice(r *Reader) ([]int32, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		v, err := r.ReadInt32()
		if err != nil {
			return nil, fmt.Errorf("serializer: element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// WriteFloat64Slice is the float64 sibling of WriteInt32Slice.
func WriteFloat64Slice(w *Writer, s []float64) {
	w.WriteUint32(uint32(len(s)))
	for _, v := range s {
		w.WriteFloat64(v)
	}
}

// ReadFloat64Slice reads back what WriteFloat64Slice produced.
func ReadFloat64Slice(r *Reader) ([]float64, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		v, err := r.ReadFloat64()
		if err != nil {
			return nil, fmt.Errorf("serializer: element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Result is the wire shape of an expected<T, E>: a success flag followed
// by either the T or the E encoding.
type Result[T, E any] struct {
	Value T
	Err   E
	Ok    bool
}

// WriteResult writes r's success flag and whichever payload applies.
func WriteResult[T, E any](w *Writer, r Result[T, E], encodeOk func(*Writer, T), encodeErr func(*Writer, E)) {
	w.WriteBool(r.Ok)
	if r.Ok {
		encodeOk(w, r.Value)
		return
	}
	encodeErr(w, r.Err)
}

// ReadResult reads back what WriteResult produced.
func ReadResult[T, E any](r *Reader, decodeOk func(*Reader) (T, error), decodeErr func(*Reader) (E, error)) (Result[T, E], error) {
	ok, err := r.ReadBool()
	if err != nil {
		return Result[T, E]{}, err
	}
	if ok {
		v, err := decodeOk(r)
		if err != nil {
			return Result[T, E]{}, err
		}
		return Result[T, E]{Value: v, Ok: true}, nil
	}
	e, err := decodeErr(r)
	if err != nil {
		return Result[T, E]{}, err
	}
	return Result[T, E]{Err: e, Ok: false}, nil
}

// WritePair writes a and b's encodings back to back, with no length
// prefix or tag: a plain concatenation, matching how the original
// template design laid out std::pair.
func WritePair[A, B any](w *Writer, a A, b B, encodeA func(*Writer, A), encodeB func(*Writer, B)) {
	encodeA(w, a)
	encodeB(w, b)
}

// ReadPair reads back what WritePair produced.
func ReadPair[A, B any](r *Reader, decodeA func(*Reader) (A, error), decodeB func(*Reader) (B, error)) (A, B, error) {
	var zeroA A
	var zeroB B
	a, err := decodeA(r)
	if err != nil {
		return zeroA, zeroB, err
	}
	b, err := decodeB(r)
	if err != nil {
		return zeroA, zeroB, err
	}
	return a, b, nil
}

// WriteVariantTag writes the u16 index identifying which alternative of a
// variant follows. Callers write the chosen alternative's payload
// immediately after.
func WriteVariantTag(w *Writer, tag uint16) {
	w.WriteUint16(tag)
}

// ReadVariantTag reads back the tag WriteVariantTag wrote, for the caller
// to switch on before decoding the matching alternative.
func ReadVariantTag(r *Reader) (uint16, error) {
	return r.ReadUint16()
}
