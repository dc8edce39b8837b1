package calc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"duplexrpc/engine"
	"duplexrpc/methodid"
	"duplexrpc/rpcerr"
	"duplexrpc/stub"
	"duplexrpc/transport"
)

// calculator is a straightforward Service implementation used to drive
// the wire-level tests below; it does not need to be a full production
// calculator, only exercise every method shape.
type calculator struct {
	events chan TelemetryInfo
}

func (c *calculator) SimpleSum(ctx context.Context, a, b int32) (int32, error) {
	return a + b, nil
}

func (c *calculator) ArraySum(ctx context.Context, values []int32) (int32, error) {
	var sum int32
	for _, v := range values {
		sum += v
	}
	return sum, nil
}

func (c *calculator) StringConcatenate(ctx context.Context, a, b string) (string, error) {
	return a + b, nil
}

func (c *calculator) UniversalAdd(ctx context.Context, a, b Number) (AddResult, error) {
	if a.IsInt && b.IsInt {
		return AddResult{Int: a.Int + b.Int, Which: AddResultInt}, nil
	}
	if !a.IsInt && !b.IsInt {
		return AddResult{Str: a.Str + b.Str, Which: AddResultString}, nil
	}
	return AddResult{
		Which: AddResultError,
		Err:   AddError{Description: "cannot add int and string", Code: ErrorIncompatibleTypes},
	}, nil
}

func (c *calculator) SendTelemetryEvent(ctx context.Context, info TelemetryInfo) {
	if c.events != nil {
		c.events <- info
	}
}

func newCalcPair(t *testing.T) (*Client, *calculator, func()) {
	t.Helper()
	impl := &calculator{events: make(chan TelemetryInfo, 8)}
	iface, err := NewInterfaceDesc(impl)
	if err != nil {
		t.Fatalf("NewInterfaceDesc: %v", err)
	}

	a, b := net.Pipe()
	server := engine.New(engine.WithServer(stub.NewDispatcher(iface, nil)))
	client := engine.New()

	if err := server.Start(transport.NewStreamTransport(a)); err != nil {
		t.Fatalf("server Start: %v", err)
	}
	if err := client.Start(transport.NewStreamTransport(b)); err != nil {
		t.Fatalf("client Start: %v", err)
	}

	cleanup := func() {
		_ = client.Stop()
		_ = server.Stop()
	}
	return NewClient(client), impl, cleanup
}

func TestSimpleSumEndToEnd(t *testing.T) {
	client, _, cleanup := newCalcPair(t)
	defer cleanup()

	sum, err := client.SimpleSum(context.Background(), 17, 42)
	if err != nil {
		t.Fatalf("SimpleSum: %v", err)
	}
	if sum != 59 {
		t.Fatalf("sum = %d, want 59", sum)
	}
}

func TestArraySumEndToEnd(t *testing.T) {
	client, _, cleanup := newCalcPair(t)
	defer cleanup()

	sum, err := client.ArraySum(context.Background(), []int32{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("ArraySum: %v", err)
	}
	if sum != 15 {
		t.Fatalf("sum = %d, want 15", sum)
	}
}

func TestStringConcatenateEndToEnd(t *testing.T) {
	client, _, cleanup := newCalcPair(t)
	defer cleanup()

	result, err := client.StringConcatenate(context.Background(), "foo", "bar")
	if err != nil {
		t.Fatalf("StringConcatenate: %v", err)
	}
	if result != "foobar" {
		t.Fatalf("result = %q, want foobar", result)
	}
}

func TestUniversalAddIntAlternative(t *testing.T) {
	client, _, cleanup := newCalcPair(t)
	defer cleanup()

	result, err := client.UniversalAdd(context.Background(),
		Number{Int: 20, IsInt: true}, Number{Int: 39, IsInt: true})
	if err != nil {
		t.Fatalf("UniversalAdd: %v", err)
	}
	if result.Which != AddResultInt || result.Int != 59 {
		t.Fatalf("result = %+v, want Int alternative with value 59", result)
	}
}

func TestUniversalAddStringAlternative(t *testing.T) {
	client, _, cleanup := newCalcPair(t)
	defer cleanup()

	result, err := client.UniversalAdd(context.Background(),
		Number{Str: "foo"}, Number{Str: "bar"})
	if err != nil {
		t.Fatalf("UniversalAdd: %v", err)
	}
	if result.Which != AddResultString || result.Str != "foobar" {
		t.Fatalf("result = %+v, want String alternative foobar", result)
	}
}

func TestUniversalAddErrorAlternative(t *testing.T) {
	client, _, cleanup := newCalcPair(t)
	defer cleanup()

	result, err := client.UniversalAdd(context.Background(),
		Number{Int: 1, IsInt: true}, Number{Str: "bar"})
	if err != nil {
		t.Fatalf("UniversalAdd: %v", err)
	}
	if result.Which != AddResultError || result.Err.Code != ErrorIncompatibleTypes {
		t.Fatalf("result = %+v, want Error alternative with ErrorIncompatibleTypes", result)
	}
}

func TestSendTelemetryEventIsFireAndForget(t *testing.T) {
	client, impl, cleanup := newCalcPair(t)
	defer cleanup()

	now := time.Now().Truncate(time.Second)
	err := client.SendTelemetryEvent(context.Background(), TelemetryInfo{
		Event:   "simple_sum",
		Type:    TelemetryBeginning,
		Success: true,
		Time:    now,
	})
	if err != nil {
		t.Fatalf("SendTelemetryEvent: %v", err)
	}

	select {
	case got := <-impl.events:
		if got.Event != "simple_sum" || got.Type != TelemetryBeginning || !got.Success {
			t.Fatalf("got %+v, want matching telemetry event", got)
		}
		if got.Time.Unix() != now.Unix() {
			t.Fatalf("time = %v, want %v", got.Time, now)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the telemetry event")
	}
}

func TestPipeliningFourConcurrentCalls(t *testing.T) {
	client, _, cleanup := newCalcPair(t)
	defer cleanup()

	type outcome struct {
		sum int32
		err error
	}
	results := make(chan outcome, 4)
	for i := int32(0); i < 4; i++ {
		i := i
		go func() {
			sum, err := client.SimpleSum(context.Background(), i, i*10)
			results <- outcome{sum: sum, err: err}
		}()
	}
	seen := make(map[int32]bool)
	for i := 0; i < 4; i++ {
		o := <-results
		if o.err != nil {
			t.Fatalf("SimpleSum: %v", o.err)
		}
		seen[o.sum] = true
	}
	for i := int32(0); i < 4; i++ {
		if !seen[i+i*10] {
			t.Fatalf("missing result %d among %v", i+i*10, seen)
		}
	}
}

func TestShutdownAbortsInFlightCall(t *testing.T) {
	block := make(chan struct{})
	iface, err := stub.NewInterfaceDesc("blocking", stub.MethodDesc{
		Name: "block",
		Handler: func(ctx context.Context, payload []byte, state any) ([]byte, error) {
			<-block
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("NewInterfaceDesc: %v", err)
	}

	a, b := net.Pipe()
	server := engine.New(engine.WithServer(stub.NewDispatcher(iface, nil)))
	client := engine.New()
	if err := server.Start(transport.NewStreamTransport(a)); err != nil {
		t.Fatalf("server Start: %v", err)
	}
	if err := client.Start(transport.NewStreamTransport(b)); err != nil {
		t.Fatalf("client Start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), methodid.Hash("block"), nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = client.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, rpcerr.ErrCancelled) {
			t.Fatalf("err = %v, want ErrCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("call was not aborted by Stop")
	}

	close(block)
	_ = server.Stop()
}
