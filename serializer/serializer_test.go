package serializer

import (
	"bytes"
	"testing"
	"time"
)

func TestSimpleSumRequestPayloadIsByteExact(t *testing.T) {
	w := NewWriter(nil)
	w.WriteInt32(17)
	w.WriteInt32(42)

	want := []byte{0x11, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("payload = % x, want % x", w.Bytes(), want)
	}

	r := NewReader(w.Bytes(), nil)
	a, err := r.ReadInt32()
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	b, err := r.ReadInt32()
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if a != 17 || b != 42 {
		t.Fatalf("got (%d, %d), want (17, 42)", a, b)
	}
}

func TestSimpleSumResponsePayloadIsByteExact(t *testing.T) {
	w := NewWriter(nil)
	w.WriteInt32(17 + 42)

	want := []byte{0x3B, 0x00, 0x00, 0x00}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("payload = % x, want % x", w.Bytes(), want)
	}
}

func TestArraySumRoundTrip(t *testing.T) {
	w := NewWriter(nil)
	WriteInt32Slice(w, []int32{1, 2, 3, 4, 5})

	r := NewReader(w.Bytes(), nil)
	got, err := ReadInt32Slice(r)
	if err != nil {
		t.Fatalf("ReadInt32Slice: %v", err)
	}
	want := []int32{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStringConcatenateRoundTrip(t *testing.T) {
	w := NewWriter(nil)
	w.WriteString("foo")
	w.WriteString("bar")

	r := NewReader(w.Bytes(), nil)
	a, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	b, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if a+b != "foobar" {
		t.Fatalf("got %q+%q, want concatenation foobar", a, b)
	}
}

func TestEmptyStringLengthPrefixIsZero(t *testing.T) {
	w := NewWriter(nil)
	w.WriteString("")
	want := []byte{0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("payload = % x, want % x", w.Bytes(), want)
	}
}

// universalAddVariant mirrors the calculator's universal_add result: a
// tagged union of int32, string, or error code.
const (
	variantTagInt uint16 = iota
	variantTagString
	variantTagError
)

func TestVariantDispatchIntAlternative(t *testing.T) {
	w := NewWriter(nil)
	WriteVariantTag(w, variantTagInt)
	w.WriteInt32(59)

	r := NewReader(w.Bytes(), nil)
	tag, err := ReadVariantTag(r)
	if err != nil {
		t.Fatalf("ReadVariantTag: %v", err)
	}
	if tag != variantTagInt {
		t.Fatalf("tag = %d, want %d", tag, variantTagInt)
	}
	v, err := r.ReadInt32()
	if err != nil {
		t.Fatalf("ReadInt32: %v", err)
	}
	if v != 59 {
		t.Fatalf("value = %d, want 59", v)
	}
}

func TestVariantDispatchErrorAlternative(t *testing.T) {
	w := NewWriter(nil)
	WriteVariantTag(w, variantTagError)
	w.WriteUint32(0x80004005)

	r := NewReader(w.Bytes(), nil)
	tag, err := ReadVariantTag(r)
	if err != nil {
		t.Fatalf("ReadVariantTag: %v", err)
	}
	if tag != variantTagError {
		t.Fatalf("tag = %d, want %d", tag, variantTagError)
	}
	code, err := r.ReadUint32()
	if err != nil {
		t.Fatalf("ReadUint32: %v", err)
	}
	if code != 0x80004005 {
		t.Fatalf("code = %#x, want 0x80004005", code)
	}
}

func TestOptionalRoundTripPresentAndAbsent(t *testing.T) {
	w := NewWriter(nil)
	present := int32(7)
	encode := func(w *Writer, v int32) { w.WriteInt32(v) }
	WriteOptional(w, &present, encode)
	WriteOptional[int32](w, nil, encode)

	r := NewReader(w.Bytes(), nil)
	got, err := ReadOptional(r, (*Reader).ReadInt32)
	if err != nil {
		t.Fatalf("ReadOptional: %v", err)
	}
	if got == nil || *got != 7 {
		t.Fatalf("got %v, want pointer to 7", got)
	}
	got2, err := ReadOptional(r, (*Reader).ReadInt32)
	if err != nil {
		t.Fatalf("ReadOptional: %v", err)
	}
	if got2 != nil {
		t.Fatalf("got %v, want nil", got2)
	}
}

func TestResultRoundTripOkAndErr(t *testing.T) {
	encodeOk := func(w *Writer, v int32) { w.WriteInt32(v) }
	encodeErr := func(w *Writer, v uint32) { w.WriteUint32(v) }
	decodeOk := func(r *Reader) (int32, error) { return r.ReadInt32() }
	decodeErr := func(r *Reader) (uint32, error) { return r.ReadUint32() }

	w := NewWriter(nil)
	WriteResult(w, Result[int32, uint32]{Value: 100, Ok: true}, encodeOk, encodeErr)
	WriteResult(w, Result[int32, uint32]{Err: 0x80004005, Ok: false}, encodeOk, encodeErr)

	r := NewReader(w.Bytes(), nil)
	ok, err := ReadResult(r, decodeOk, decodeErr)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if !ok.Ok || ok.Value != 100 {
		t.Fatalf("got %+v, want Ok=true Value=100", ok)
	}
	bad, err := ReadResult(r, decodeOk, decodeErr)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if bad.Ok || bad.Err != 0x80004005 {
		t.Fatalf("got %+v, want Ok=false Err=0x80004005", bad)
	}
}

func TestShortReadReportsErrorInsteadOfZeroValue(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02}, nil)
	if _, err := r.ReadInt32(); err == nil {
		t.Fatal("expected short-read error, got nil")
	}
}

func TestShortReadOnLengthPrefixedString(t *testing.T) {
	// Length prefix claims 10 bytes follow but only 2 are present.
	r := NewReader([]byte{0x0A, 0x00, 0x00, 0x00, 0x01, 0x02}, nil)
	if _, err := r.ReadString(); err == nil {
		t.Fatal("expected short-read error, got nil")
	}
}

type point struct {
	X, Y int32
}

func (p point) EncodeRPC(w *Writer) {
	w.WriteInt32(p.X)
	w.WriteInt32(p.Y)
}

func (p *point) DecodeRPC(r *Reader) error {
	x, err := r.ReadInt32()
	if err != nil {
		return err
	}
	y, err := r.ReadInt32()
	if err != nil {
		return err
	}
	p.X, p.Y = x, y
	return nil
}

func TestDescribedRecordRoundTrip(t *testing.T) {
	w := NewWriter(nil)
	WriteRecord(w, point{X: 3, Y: -4})

	var got point
	r := NewReader(w.Bytes(), nil)
	if err := ReadRecord(r, &got); err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.X != 3 || got.Y != -4 {
		t.Fatalf("got %+v, want {3 -4}", got)
	}
}

func TestWireTimeCustomHookRoundTrip(t *testing.T) {
	w := NewWriter(nil)
	WriteRecord(w, WireTime{Time: time.Unix(1700000000, 0).UTC()})

	var got WireTime
	r := NewReader(w.Bytes(), nil)
	if err := ReadRecord(r, &got); err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.Unix() != 1700000000 {
		t.Fatalf("got unix %d, want 1700000000", got.Unix())
	}
}

func TestSerializerStateThreadsThroughReaderAndWriter(t *testing.T) {
	type ctxKey struct{}
	state := map[ctxKey]int{{}: 42}

	w := NewWriter(state)
	got, ok := w.State.(map[ctxKey]int)
	if !ok || got[ctxKey{}] != 42 {
		t.Fatal("Writer did not carry SerializerState")
	}

	r := NewReader(nil, state)
	got2, ok := r.State.(map[ctxKey]int)
	if !ok || got2[ctxKey{}] != 42 {
		t.Fatal("Reader did not carry SerializerState")
	}
}
