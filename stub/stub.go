// Package stub is the interface binding layer: it turns a fixed set of
// named RPC methods into a MethodID-indexed table a server can dispatch
// against, and gives a client proxy a handful of generic helpers instead
// of one hand-written call wrapper per arity.
package stub

import (
	"context"
	"fmt"
	"sort"

	"duplexrpc/methodid"
	"duplexrpc/rpcerr"
	"duplexrpc/serializer"
)

// HandlerFunc executes one dispatched method call against its raw
// argument payload and returns the raw result payload to send back (nil
// for a VoidRequest handler, whose return value is discarded).
type HandlerFunc func(ctx context.Context, payload []byte, state any) ([]byte, error)

// MethodDesc names one RPC method and how to run it.
type MethodDesc struct {
	Name    string
	ID      methodid.MethodID
	Void    bool
	Handler HandlerFunc
}

// InterfaceDesc is a MethodID-sorted, duplicate-checked table of the
// methods one RPC interface exposes, built once at process-init time in
// place of the compile-time member reflection Go lacks.
type InterfaceDesc struct {
	name    string
	methods []MethodDesc
}

// NewInterfaceDesc computes each method's MethodID from its name, sorts
// the table for binary search, and rejects a method-name hash collision
// immediately rather than letting it silently misroute calls at runtime.
func NewInterfaceDesc(name string, methods ...MethodDesc) (*InterfaceDesc, error) {
	out := make([]MethodDesc, len(methods))
	copy(out, methods)
	for i := range out {
		out[i].ID = methodid.Hash(out[i].Name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	for i := 1; i < len(out); i++ {
		if out[i].ID == out[i-1].ID {
			return nil, fmt.Errorf("stub: method %q and %q collide on MethodID %s in interface %q",
				out[i-1].Name, out[i].Name, out[i].ID, name)
		}
	}
	return &InterfaceDesc{name: name, methods: out}, nil
}

// Name returns the interface's descriptive name (used only for error
// messages and logging, never sent on the wire).
func (d *InterfaceDesc) Name() string { return d.name }

// Lookup binary-searches the sorted table for id, returning ok=false if
// no method matches — the case the server dispatcher maps to
// rpcerr.ErrNotImplemented.
func (d *InterfaceDesc) Lookup(id methodid.MethodID) (MethodDesc, bool) {
	i := sort.Search(len(d.methods), func(i int) bool { return d.methods[i].ID >= id })
	if i < len(d.methods) && d.methods[i].ID == id {
		return d.methods[i], true
	}
	return MethodDesc{}, false
}

// OnlyVoidMethods reports whether every method in the table is a
// VoidRequest method. A connection engine hosting a server whose entire
// interface is void-only never needs to run its writer loop for
// responses, mirroring the reader/writer elision the original design's
// only_void_methods trait computed at compile time.
func (d *InterfaceDesc) OnlyVoidMethods() bool {
	for _, m := range d.methods {
		if !m.Void {
			return false
		}
	}
	return true
}

// Dispatcher routes an incoming request to the InterfaceDesc method its
// MethodID names, translating a lookup miss or handler error into the
// error code a ResponseError message reports.
type Dispatcher struct {
	iface *InterfaceDesc
	state any
}

// NewDispatcher builds a Dispatcher for iface. state is passed through to
// every handler invocation as the third HandlerFunc argument (typically
// the serializer state a handler hands to serializer.NewReader and
// serializer.NewWriter).
func NewDispatcher(iface *InterfaceDesc, state any) *Dispatcher {
	return &Dispatcher{iface: iface, state: state}
}

// OnlyVoidMethods reports whether the bound interface has no two-way
// methods, letting a connection engine skip its writer loop when hosting
// this dispatcher is the only reason it would ever send anything.
func (d *Dispatcher) OnlyVoidMethods() bool {
	return d.iface.OnlyVoidMethods()
}

// Dispatch looks up id and runs its handler against payload. The
// returned bool reports whether the method is void (a VoidRequest whose
// result payload and error, if any, are never sent back and only useful
// for local logging).
func (d *Dispatcher) Dispatch(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, bool, error) {
	m, ok := d.iface.Lookup(id)
	if !ok {
		return nil, false, rpcerr.ErrNotImplemented
	}
	result, err := m.Handler(ctx, payload, d.state)
	return result, m.Void, err
}

// Caller is what a generated client proxy needs from its connection: a
// two-way Request (waits for the matching response and decodes its
// payload or its error) and a one-way VoidRequest.
type Caller interface {
	Request(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error)
	VoidRequest(ctx context.Context, id methodid.MethodID, payload []byte) error
}

// Call runs a two-way RPC: encode writes the arguments into a
// serializer.Writer, decode parses the result payload into R. This
// replaces the original template design's one instantiation per
// (argument count, return type) pair with a single generic helper.
func Call[R any](ctx context.Context, c Caller, id methodid.MethodID, encode func(*serializer.Writer), decode func(*serializer.Reader) (R, error)) (R, error) {
	var zero R
	w := serializer.NewWriter(nil)
	encode(w)

	respPayload, err := c.Request(ctx, id, w.Bytes())
	if err != nil {
		return zero, err
	}
	r := serializer.NewReader(respPayload, nil)
	return decode(r)
}

// CallUnit is Call for a method with no return value beyond success.
func CallUnit(ctx context.Context, c Caller, id methodid.MethodID, encode func(*serializer.Writer)) error {
	w := serializer.NewWriter(nil)
	encode(w)
	_, err := c.Request(ctx, id, w.Bytes())
	return err
}

// Notify runs a fire-and-forget VoidRequest: the caller returns as soon
// as the message is queued for send, with no confirmation the server
// ever processed it.
func Notify(ctx context.Context, c Caller, id methodid.MethodID, encode func(*serializer.Writer)) error {
	w := serializer.NewWriter(nil)
	encode(w)
	return c.VoidRequest(ctx, id, w.Bytes())
}
