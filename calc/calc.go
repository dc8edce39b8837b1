// Package calc is a sample RPC interface exercising every shape the
// serializer supports: a two-int method, a variable-length sequence
// method, a string-pair method, a tagged-union method, and a
// fire-and-forget telemetry notification.
package calc

import (
	"context"
	"time"

	"duplexrpc/methodid"
	"duplexrpc/rpcerr"
	"duplexrpc/serializer"
	"duplexrpc/stub"
)

// TelemetryType distinguishes the two points in a telemetry event's
// lifecycle a call can report.
type TelemetryType uint8

const (
	TelemetryBeginning TelemetryType = iota
	TelemetryEnd
)

// TelemetryInfo is a fire-and-forget notification about one RPC call's
// progress: which event, at which lifecycle point, whether it (so far)
// succeeded, and when.
type TelemetryInfo struct {
	Event   string
	Type    TelemetryType
	Success bool
	Time    time.Time
}

// EncodeRPC implements serializer.Encoder.
func (t TelemetryInfo) EncodeRPC(w *serializer.Writer) {
	w.WriteString(t.Event)
	w.WriteUint8(uint8(t.Type))
	w.WriteBool(t.Success)
	serializer.WriteRecord(w, serializer.WireTime{Time: t.Time})
}

// DecodeRPC implements serializer.Decoder.
func (t *TelemetryInfo) DecodeRPC(r *serializer.Reader) error {
	event, err := r.ReadString()
	if err != nil {
		return err
	}
	typ, err := r.ReadUint8()
	if err != nil {
		return err
	}
	success, err := r.ReadBool()
	if err != nil {
		return err
	}
	var wt serializer.WireTime
	if err := serializer.ReadRecord(r, &wt); err != nil {
		return err
	}
	t.Event, t.Type, t.Success, t.Time = event, TelemetryType(typ), success, wt.Time
	return nil
}

// ErrorCode classifies why universal_add could not combine its operands.
type ErrorCode uint8

const (
	ErrorNone ErrorCode = iota
	ErrorIncompatibleTypes
)

// AddError is the error alternative of a Number-vs-Number Add result.
type AddError struct {
	Description string
	Code        ErrorCode
}

// numberTag identifies which alternative of the Number/AddResult
// variants a payload holds, matching the variant dispatch shape.
type numberTag = uint16

const (
	numberTagInt numberTag = iota
	numberTagString
)

const (
	addResultTagInt numberTag = iota
	addResultTagString
	addResultTagError
)

// Number is the int-or-string variant universal_add takes as each
// operand.
type Number struct {
	Int    int32
	Str    string
	IsInt  bool
}

// EncodeRPC implements serializer.Encoder.
func (n Number) EncodeRPC(w *serializer.Writer) {
	if n.IsInt {
		serializer.WriteVariantTag(w, numberTagInt)
		w.WriteInt32(n.Int)
		return
	}
	serializer.WriteVariantTag(w, numberTagString)
	w.WriteString(n.Str)
}

// DecodeRPC implements serializer.Decoder.
func (n *Number) DecodeRPC(r *serializer.Reader) error {
	tag, err := serializer.ReadVariantTag(r)
	if err != nil {
		return err
	}
	switch tag {
	case numberTagInt:
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		*n = Number{Int: v, IsInt: true}
	case numberTagString:
		v, err := r.ReadString()
		if err != nil {
			return err
		}
		*n = Number{Str: v}
	default:
		return rpcerr.WithCode(rpcerr.EFail, "calc: unknown Number variant tag")
	}
	return nil
}

// AddResult is the int-or-string-or-error variant universal_add returns.
type AddResult struct {
	Int   int32
	Str   string
	Err   AddError
	Which numberTagKind
}

// numberTagKind names which of AddResult's three alternatives is populated.
type numberTagKind uint8

const (
	AddResultInt numberTagKind = iota
	AddResultString
	AddResultError
)

// EncodeRPC implements serializer.Encoder.
func (r AddResult) EncodeRPC(w *serializer.Writer) {
	switch r.Which {
	case AddResultInt:
		serializer.WriteVariantTag(w, addResultTagInt)
		w.WriteInt32(r.Int)
	case AddResultString:
		serializer.WriteVariantTag(w, addResultTagString)
		w.WriteString(r.Str)
	case AddResultError:
		serializer.WriteVariantTag(w, addResultTagError)
		w.WriteString(r.Err.Description)
		w.WriteUint8(uint8(r.Err.Code))
	}
}

// DecodeRPC implements serializer.Decoder.
func (result *AddResult) DecodeRPC(r *serializer.Reader) error {
	tag, err := serializer.ReadVariantTag(r)
	if err != nil {
		return err
	}
	switch tag {
	case addResultTagInt:
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		*result = AddResult{Int: v, Which: AddResultInt}
	case addResultTagString:
		v, err := r.ReadString()
		if err != nil {
			return err
		}
		*result = AddResult{Str: v, Which: AddResultString}
	case addResultTagError:
		desc, err := r.ReadString()
		if err != nil {
			return err
		}
		code, err := r.ReadUint8()
		if err != nil {
			return err
		}
		*result = AddResult{Err: AddError{Description: desc, Code: ErrorCode(code)}, Which: AddResultError}
	default:
		return rpcerr.WithCode(rpcerr.EFail, "calc: unknown AddResult variant tag")
	}
	return nil
}

// Service is the interface a calculator implementation provides. Every
// method but SendTelemetryEvent is a two-way call; SendTelemetryEvent is
// fire-and-forget.
type Service interface {
	SimpleSum(ctx context.Context, a, b int32) (int32, error)
	ArraySum(ctx context.Context, values []int32) (int32, error)
	StringConcatenate(ctx context.Context, a, b string) (string, error)
	UniversalAdd(ctx context.Context, a, b Number) (AddResult, error)
	SendTelemetryEvent(ctx context.Context, info TelemetryInfo)
}

const (
	methodSimpleSum          = "simple_sum"
	methodArraySum           = "array_sum"
	methodStringConcatenate  = "string_concatenate"
	methodUniversalAdd       = "universal_add"
	methodSendTelemetryEvent = "send_telemetry_event"
)

// NewInterfaceDesc builds the MethodID-indexed dispatch table for impl.
func NewInterfaceDesc(impl Service) (*stub.InterfaceDesc, error) {
	return stub.NewInterfaceDesc("CalculatorService",
		stub.MethodDesc{Name: methodSimpleSum, Handler: handleSimpleSum(impl)},
		stub.MethodDesc{Name: methodArraySum, Handler: handleArraySum(impl)},
		stub.MethodDesc{Name: methodStringConcatenate, Handler: handleStringConcatenate(impl)},
		stub.MethodDesc{Name: methodUniversalAdd, Handler: handleUniversalAdd(impl)},
		stub.MethodDesc{Name: methodSendTelemetryEvent, Void: true, Handler: handleSendTelemetryEvent(impl)},
	)
}

func handleSimpleSum(impl Service) stub.HandlerFunc {
	return func(ctx context.Context, payload []byte, state any) ([]byte, error) {
		r := serializer.NewReader(payload, state)
		a, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		b, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		sum, err := impl.SimpleSum(ctx, a, b)
		if err != nil {
			return nil, err
		}
		w := serializer.NewWriter(state)
		w.WriteInt32(sum)
		return w.Bytes(), nil
	}
}

func handleArraySum(impl Service) stub.HandlerFunc {
	return func(ctx context.Context, payload []byte, state any) ([]byte, error) {
		r := serializer.NewReader(payload, state)
		values, err := serializer.ReadInt32Slice(r)
		if err != nil {
			return nil, err
		}
		sum, err := impl.ArraySum(ctx, values)
		if err != nil {
			return nil, err
		}
		w := serializer.NewWriter(state)
		w.WriteInt32(sum)
		return w.Bytes(), nil
	}
}

func handleStringConcatenate(impl Service) stub.HandlerFunc {
	return func(ctx context.Context, payload []byte, state any) ([]byte, error) {
		r := serializer.NewReader(payload, state)
		a, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		b, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		result, err := impl.StringConcatenate(ctx, a, b)
		if err != nil {
			return nil, err
		}
		w := serializer.NewWriter(state)
		w.WriteString(result)
		return w.Bytes(), nil
	}
}

func handleUniversalAdd(impl Service) stub.HandlerFunc {
	return func(ctx context.Context, payload []byte, state any) ([]byte, error) {
		r := serializer.NewReader(payload, state)
		var a, b Number
		if err := serializer.ReadRecord(r, &a); err != nil {
			return nil, err
		}
		if err := serializer.ReadRecord(r, &b); err != nil {
			return nil, err
		}
		result, err := impl.UniversalAdd(ctx, a, b)
		if err != nil {
			return nil, err
		}
		w := serializer.NewWriter(state)
		serializer.WriteRecord(w, result)
		return w.Bytes(), nil
	}
}

func handleSendTelemetryEvent(impl Service) stub.HandlerFunc {
	return func(ctx context.Context, payload []byte, state any) ([]byte, error) {
		r := serializer.NewReader(payload, state)
		var info TelemetryInfo
		if err := serializer.ReadRecord(r, &info); err != nil {
			return nil, err
		}
		impl.SendTelemetryEvent(ctx, info)
		return nil, nil
	}
}

// Client is a stub.Caller-backed proxy implementing Service's two-way
// methods as plain Go calls, plus SendTelemetryEvent as fire-and-forget.
type Client struct {
	caller stub.Caller
}

// NewClient wraps caller (typically an *engine.Connection or a
// *discovery.ServiceCaller) as a Service proxy.
func NewClient(caller stub.Caller) *Client {
	return &Client{caller: caller}
}

// SimpleSum calls the simple_sum method.
func (c *Client) SimpleSum(ctx context.Context, a, b int32) (int32, error) {
	return stub.Call(ctx, c.caller, methodid.Hash(methodSimpleSum),
		func(w *serializer.Writer) { w.WriteInt32(a); w.WriteInt32(b) },
		func(r *serializer.Reader) (int32, error) { return r.ReadInt32() },
	)
}

// ArraySum calls the array_sum method.
func (c *Client) ArraySum(ctx context.Context, values []int32) (int32, error) {
	return stub.Call(ctx, c.caller, methodid.Hash(methodArraySum),
		func(w *serializer.Writer) { serializer.WriteInt32Slice(w, values) },
		func(r *serializer.Reader) (int32, error) { return r.ReadInt32() },
	)
}

// StringConcatenate calls the string_concatenate method.
func (c *Client) StringConcatenate(ctx context.Context, a, b string) (string, error) {
	return stub.Call(ctx, c.caller, methodid.Hash(methodStringConcatenate),
		func(w *serializer.Writer) { w.WriteString(a); w.WriteString(b) },
		func(r *serializer.Reader) (string, error) { return r.ReadString() },
	)
}

// UniversalAdd calls the universal_add method.
func (c *Client) UniversalAdd(ctx context.Context, a, b Number) (AddResult, error) {
	return stub.Call(ctx, c.caller, methodid.Hash(methodUniversalAdd),
		func(w *serializer.Writer) { serializer.WriteRecord(w, a); serializer.WriteRecord(w, b) },
		func(r *serializer.Reader) (AddResult, error) {
			var out AddResult
			err := serializer.ReadRecord(r, &out)
			return out, err
		},
	)
}

// SendTelemetryEvent sends the send_telemetry_event notification and
// returns as soon as it is queued, without waiting for the server.
func (c *Client) SendTelemetryEvent(ctx context.Context, info TelemetryInfo) error {
	return stub.Notify(ctx, c.caller, methodid.Hash(methodSendTelemetryEvent),
		func(w *serializer.Writer) { serializer.WriteRecord(w, info) },
	)
}
