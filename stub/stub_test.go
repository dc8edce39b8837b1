package stub

import (
	"context"
	"errors"
	"testing"

	"duplexrpc/methodid"
	"duplexrpc/rpcerr"
	"duplexrpc/serializer"
)

func echoHandler(ctx context.Context, payload []byte, state any) ([]byte, error) {
	return payload, nil
}

func TestNewInterfaceDescSortsAndLooksUp(t *testing.T) {
	iface, err := NewInterfaceDesc("calc",
		MethodDesc{Name: "simple_sum", Handler: echoHandler},
		MethodDesc{Name: "array_sum", Handler: echoHandler},
		MethodDesc{Name: "string_concatenate", Handler: echoHandler},
	)
	if err != nil {
		t.Fatalf("NewInterfaceDesc: %v", err)
	}

	for _, name := range []string{"simple_sum", "array_sum", "string_concatenate"} {
		id := methodid.Hash(name)
		m, ok := iface.Lookup(id)
		if !ok {
			t.Fatalf("Lookup(%q) missed", name)
		}
		if m.Name != name {
			t.Fatalf("Lookup(%q) returned %q", name, m.Name)
		}
	}

	if _, ok := iface.Lookup(methodid.Hash("nonexistent")); ok {
		t.Fatal("Lookup should miss for an unregistered method")
	}
}

func TestNewInterfaceDescRejectsCollision(t *testing.T) {
	// Same name registered twice hashes identically and must be
	// rejected as a collision rather than silently keeping the last one.
	_, err := NewInterfaceDesc("dup",
		MethodDesc{Name: "simple_sum", Handler: echoHandler},
		MethodDesc{Name: "simple_sum", Handler: echoHandler},
	)
	if err == nil {
		t.Fatal("expected collision error for duplicate method name")
	}
}

func TestOnlyVoidMethods(t *testing.T) {
	allVoid, err := NewInterfaceDesc("events",
		MethodDesc{Name: "send_telemetry_event", Void: true, Handler: echoHandler},
	)
	if err != nil {
		t.Fatalf("NewInterfaceDesc: %v", err)
	}
	if !allVoid.OnlyVoidMethods() {
		t.Fatal("expected OnlyVoidMethods true")
	}

	mixed, err := NewInterfaceDesc("mixed",
		MethodDesc{Name: "send_telemetry_event", Void: true, Handler: echoHandler},
		MethodDesc{Name: "simple_sum", Handler: echoHandler},
	)
	if err != nil {
		t.Fatalf("NewInterfaceDesc: %v", err)
	}
	if mixed.OnlyVoidMethods() {
		t.Fatal("expected OnlyVoidMethods false")
	}
}

func TestDispatcherReturnsNotImplementedForUnknownMethod(t *testing.T) {
	iface, err := NewInterfaceDesc("calc", MethodDesc{Name: "simple_sum", Handler: echoHandler})
	if err != nil {
		t.Fatalf("NewInterfaceDesc: %v", err)
	}
	d := NewDispatcher(iface, nil)

	_, _, err = d.Dispatch(context.Background(), methodid.Hash("nonexistent"), nil)
	if !errors.Is(err, rpcerr.ErrNotImplemented) {
		t.Fatalf("Dispatch error = %v, want ErrNotImplemented", err)
	}
}

func TestDispatcherRunsHandlerAndReportsVoid(t *testing.T) {
	iface, err := NewInterfaceDesc("calc",
		MethodDesc{Name: "simple_sum", Handler: echoHandler},
		MethodDesc{Name: "send_telemetry_event", Void: true, Handler: echoHandler},
	)
	if err != nil {
		t.Fatalf("NewInterfaceDesc: %v", err)
	}
	d := NewDispatcher(iface, nil)

	result, void, err := d.Dispatch(context.Background(), methodid.Hash("simple_sum"), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if void {
		t.Fatal("simple_sum should not be reported as void")
	}
	if string(result) != string([]byte{1, 2, 3}) {
		t.Fatalf("result = %v, want echoed payload", result)
	}

	_, void, err = d.Dispatch(context.Background(), methodid.Hash("send_telemetry_event"), nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !void {
		t.Fatal("send_telemetry_event should be reported as void")
	}
}

// fakeCaller is a minimal Caller for exercising Call/CallUnit/Notify
// without a real connection.
type fakeCaller struct {
	lastPayload []byte
	response    []byte
	err         error
	notified    bool
}

func (f *fakeCaller) Request(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error) {
	f.lastPayload = payload
	return f.response, f.err
}

func (f *fakeCaller) VoidRequest(ctx context.Context, id methodid.MethodID, payload []byte) error {
	f.lastPayload = payload
	f.notified = true
	return f.err
}

func TestCallEncodesAndDecodes(t *testing.T) {
	w := serializer.NewWriter(nil)
	w.WriteInt32(99)
	fc := &fakeCaller{response: w.Bytes()}

	got, err := Call(context.Background(), fc, methodid.Hash("simple_sum"),
		func(w *serializer.Writer) { w.WriteInt32(17); w.WriteInt32(42) },
		func(r *serializer.Reader) (int32, error) { return r.ReadInt32() },
	)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 99 {
		t.Fatalf("got %d, want 99", got)
	}
	if len(fc.lastPayload) != 8 {
		t.Fatalf("encoded payload len = %d, want 8", len(fc.lastPayload))
	}
}

func TestNotifySetsNoResponseExpectation(t *testing.T) {
	fc := &fakeCaller{}
	err := Notify(context.Background(), fc, methodid.Hash("send_telemetry_event"),
		func(w *serializer.Writer) { w.WriteString("started") },
	)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !fc.notified {
		t.Fatal("expected VoidRequest to be invoked")
	}
}
