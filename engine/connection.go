// Package engine implements the connection lifecycle: a single reader
// goroutine and a single writer goroutine multiplexed over one
// transport.Transport, a pending-call table matching responses back to
// their callers, and the one-shot error latch a caller drains with
// OnError.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"duplexrpc/methodid"
	"duplexrpc/middleware"
	"duplexrpc/rpcerr"
	"duplexrpc/serializer"
	"duplexrpc/stub"
	"duplexrpc/transport"
	"duplexrpc/wire"
)

// State is the connection's coarse lifecycle stage.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type callResult struct {
	payload []byte
	err     error
}

type pendingCall struct {
	resultCh chan callResult
}

type latchedError struct {
	phase rpcerr.Phase
	err   error
}

// Connection owns exactly one transport.Transport for its whole
// lifetime: Idle before Start, Running while its loops are active,
// Stopping while Stop is unwinding them, Stopped once fully torn down.
// A Connection is not restartable; a new one is required to reconnect.
type Connection struct {
	logger          *zap.Logger
	dispatcher      *stub.Dispatcher
	clientIface     *stub.InterfaceDesc
	serverOnly      bool
	serializerState any
	errHandler      func(phase rpcerr.Phase, err error)
	outboundBuffer  int

	state atomic.Int32

	startMu   sync.Mutex
	transport transport.Transport
	cancel    *transport.Cancellation
	outbound  chan wire.Message
	loopWG    sync.WaitGroup

	pendingMu  sync.Mutex
	pending    map[uint32]*pendingCall
	nextCallID atomic.Uint32

	dispatchWG  sync.WaitGroup
	outstanding atomic.Int64

	errMu      sync.Mutex
	latched    *latchedError
	errHandled bool

	stopOnce sync.Once
	done     chan struct{}

	middleware middleware.Middleware
}

// New constructs a Connection in the Idle state. Call Start to begin
// exchanging messages over a transport.
func New(opts ...Option) *Connection {
	c := &Connection{
		pending:        make(map[uint32]*pendingCall),
		outboundBuffer: 64,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// State reports the connection's current lifecycle stage.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Done returns a channel closed once the connection has fully reached
// StateStopped, whether Stop was called explicitly or a loop stopped it
// after a fatal transport error. Callers that need to react to a peer
// disconnect (a server retiring the per-connection state it built for
// this Connection) should select on Done instead of polling State.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Start transitions the connection from Idle to Running over t, spawning
// whichever of the reader/writer loops the bound client interface and
// server dispatcher actually require. Calling Start twice, or on a
// non-Idle connection, returns an error.
func (c *Connection) Start(t transport.Transport) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("engine: Start called in state %s, want %s", c.State(), StateIdle)
	}

	c.transport = t
	c.cancel = transport.NewCancellation()
	c.outbound = make(chan wire.Message, c.outboundBuffer)

	hasServer := c.dispatcher != nil
	serverVoidOnly := !hasServer || c.dispatcher.OnlyVoidMethods()
	clientVoidOnly := c.serverOnly || (c.clientIface != nil && c.clientIface.OnlyVoidMethods())

	readerNeeded := hasServer || !clientVoidOnly
	writerNeeded := !c.serverOnly || !serverVoidOnly

	if writerNeeded {
		c.loopWG.Add(1)
		go c.writerLoop()
	}
	if readerNeeded {
		c.loopWG.Add(1)
		go c.readerLoop()
	}

	c.logger.Debug("connection started",
		zap.Bool("reader", readerNeeded), zap.Bool("writer", writerNeeded))
	return nil
}

// Request sends a two-way call and blocks until the matching response
// arrives, ctx is cancelled, or the connection is cancelled first.
func (c *Connection) Request(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error) {
	if c.State() != StateRunning {
		return nil, rpcerr.ErrNotRunning
	}

	callID := c.allocateCallID()
	pc := &pendingCall{resultCh: make(chan callResult, 1)}
	c.pendingMu.Lock()
	c.pending[callID] = pc
	c.pendingMu.Unlock()

	msg := wire.Message{
		Header:  wire.MessageHeader{CallID: callID, CallType: wire.Request, MethodID: id},
		Payload: payload,
	}

	if err := c.submit(ctx, msg); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, callID)
		c.pendingMu.Unlock()
		return nil, err
	}

	select {
	case res := <-pc.resultCh:
		return res.payload, res.err
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, callID)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-c.cancel.Done():
		c.pendingMu.Lock()
		delete(c.pending, callID)
		c.pendingMu.Unlock()
		return nil, rpcerr.ErrCancelled
	}
}

// VoidRequest sends a fire-and-forget call and returns as soon as it has
// been queued for the writer loop to send; it never waits for the peer
// to process it.
func (c *Connection) VoidRequest(ctx context.Context, id methodid.MethodID, payload []byte) error {
	if c.State() != StateRunning {
		return rpcerr.ErrNotRunning
	}
	msg := wire.Message{
		Header:  wire.MessageHeader{CallID: c.allocateCallID(), CallType: wire.VoidRequest, MethodID: id},
		Payload: payload,
	}
	return c.submit(ctx, msg)
}

// allocateCallID returns the next CallID. IDs wrap modulo 2^30, the width
// of the wire's CallID field, so the pending-call key equals the id a
// response carries back; a wrapped id is not checked against calls that
// are still pending.
func (c *Connection) allocateCallID() uint32 {
	return c.nextCallID.Add(1) & 0x3FFFFFFF
}

func (c *Connection) submit(ctx context.Context, msg wire.Message) error {
	select {
	case c.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.cancel.Done():
		return rpcerr.ErrCancelled
	}
}

// OutstandingRequests reports the number of server-side dispatches
// currently executing (accepted from the peer but not yet responded to).
func (c *Connection) OutstandingRequests() int64 {
	return c.outstanding.Load()
}

// OnError delivers the connection's first reported (latched) error
// immediately if one is already recorded, or installs handler to receive
// the next one; whichever happens, the error is delivered exactly once.
func (c *Connection) OnError(handler func(phase rpcerr.Phase, err error)) {
	c.errMu.Lock()
	if c.latched != nil {
		l := c.latched
		c.latched = nil
		c.errMu.Unlock()
		handler(l.phase, l.err)
		return
	}
	c.errHandler = handler
	c.errMu.Unlock()
}

func (c *Connection) reportError(phase rpcerr.Phase, err error) {
	c.errMu.Lock()
	if c.errHandled {
		c.errMu.Unlock()
		return
	}
	c.errHandled = true
	handler := c.errHandler
	c.errMu.Unlock()

	if handler != nil {
		handler(phase, err)
		return
	}
	c.errMu.Lock()
	c.latched = &latchedError{phase: phase, err: err}
	c.errMu.Unlock()
}

func (c *Connection) writerLoop() {
	defer c.loopWG.Done()
	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.transport.Send(msg); err != nil {
				c.reportError(rpcerr.PhaseSend, err)
				c.cancel.Cancel(err)
				go c.Stop()
				return
			}
		case <-c.cancel.Done():
			return
		}
	}
}

func (c *Connection) readerLoop() {
	defer c.loopWG.Done()
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			c.reportError(rpcerr.PhaseReceive, err)
			c.cancel.Cancel(err)
			c.failAllPending(rpcerr.ErrCancelled)
			go c.Stop()
			return
		}

		switch msg.Header.CallType {
		case wire.Request, wire.VoidRequest:
			c.dispatchWG.Add(1)
			c.outstanding.Add(1)
			go c.executeRequest(msg)
		case wire.Response, wire.ResponseError:
			c.completeCall(msg)
		default:
			c.logger.Warn("dropping message with unknown call type",
				zap.Uint8("callType", uint8(msg.Header.CallType)))
		}
	}
}

func (c *Connection) executeRequest(msg wire.Message) {
	defer c.dispatchWG.Done()
	defer c.outstanding.Add(-1)

	if c.dispatcher == nil {
		if msg.Header.CallType == wire.Request {
			c.sendErrorResponse(msg, rpcerr.ENotImpl)
		}
		return
	}

	var void bool
	baseHandler := func(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error) {
		result, v, err := c.dispatcher.Dispatch(ctx, id, payload)
		void = v
		return result, err
	}
	handler := middleware.HandlerFunc(baseHandler)
	if c.middleware != nil {
		handler = c.middleware(baseHandler)
	}
	result, err := handler(context.Background(), msg.Header.MethodID, msg.Payload)
	if msg.Header.CallType == wire.VoidRequest || void {
		if err != nil {
			c.logger.Warn("void method returned an error",
				zap.String("methodID", msg.Header.MethodID.String()), zap.Error(err))
		}
		return
	}

	// No response is emitted for a request whose connection was
	// cancelled while the handler was running.
	if c.cancel.Cancelled() {
		return
	}

	if err != nil {
		c.sendErrorResponse(msg, rpcerr.CodeOf(err))
		return
	}

	resp := wire.Message{
		Header: wire.MessageHeader{
			CallID:   msg.Header.CallID,
			CallType: wire.Response,
			MethodID: msg.Header.MethodID,
		},
		Payload: result,
	}
	select {
	case c.outbound <- resp:
	case <-c.cancel.Done():
	}
}

func (c *Connection) sendErrorResponse(req wire.Message, code rpcerr.HRESULT) {
	w := serializer.NewWriter(c.serializerState)
	w.WriteUint32(uint32(code))
	resp := wire.Message{
		Header: wire.MessageHeader{
			CallID:   req.Header.CallID,
			CallType: wire.ResponseError,
			MethodID: req.Header.MethodID,
		},
		Payload: w.Bytes(),
	}
	select {
	case c.outbound <- resp:
	case <-c.cancel.Done():
	}
}

func (c *Connection) completeCall(msg wire.Message) {
	c.pendingMu.Lock()
	pc, ok := c.pending[msg.Header.CallID]
	if ok {
		delete(c.pending, msg.Header.CallID)
	}
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Warn("response for unknown or already-resolved call id",
			zap.Uint32("callID", msg.Header.CallID))
		return
	}

	if msg.Header.CallType == wire.ResponseError {
		r := serializer.NewReader(msg.Payload, c.serializerState)
		code, err := r.ReadUint32()
		if err != nil {
			pc.resultCh <- callResult{err: fmt.Errorf("engine: malformed error response: %w", err)}
			return
		}
		pc.resultCh <- callResult{err: &rpcerr.RemoteError{Code: rpcerr.HRESULT(code)}}
		return
	}
	pc.resultCh <- callResult{payload: msg.Payload}
}

func (c *Connection) failAllPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[uint32]*pendingCall)
	c.pendingMu.Unlock()

	for _, pc := range pending {
		pc.resultCh <- callResult{err: err}
	}
}

// Stop cancels the connection, joins its reader and writer loops, waits
// for any in-flight server-side dispatches to finish, fails every
// outstanding client call with rpcerr.ErrCancelled, and closes the
// transport. Stop is idempotent: subsequent calls are no-ops.
func (c *Connection) Stop() error {
	var stopErr error
	c.stopOnce.Do(func() {
		if !c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
			// Started but never reached Running (e.g. Stop before
			// Start), or already stopped: nothing to unwind.
			if c.State() == StateIdle {
				c.state.Store(int32(StateStopped))
				close(c.done)
				return
			}
		}

		// Report the Stop error before cancelling, so a Receive/Send
		// failure caused by closing the transport below cannot win the
		// first-error latch over it.
		c.reportError(rpcerr.PhaseStop, &rpcerr.RemoteError{Code: rpcerr.EAbort})
		c.cancel.Cancel(&rpcerr.RemoteError{Code: rpcerr.EAbort})
		if c.transport != nil {
			stopErr = c.transport.Close()
		}
		c.loopWG.Wait()
		c.dispatchWG.Wait()
		c.failAllPending(rpcerr.ErrCancelled)

		c.state.Store(int32(StateStopped))
		close(c.done)
	})
	return stopErr
}
