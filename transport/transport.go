// Package transport defines the byte-stream contract every duplexrpc
// connection is built on, and the one concrete cross-platform
// implementation (a framed net.Conn). Platform-specific transports
// (Windows named pipes, Windows window messages) live alongside it under
// build tags.
package transport

import (
	"io"
	"sync"

	"duplexrpc/wire"
)

// Transport is the minimum a connection engine needs from its underlying
// channel: send one framed message, receive the next one, and be told
// when the peer is gone. Implementations must make Send and Receive safe
// to call from different goroutines (the engine has exactly one writer
// goroutine and one reader goroutine, never more, but they run
// concurrently with each other).
type Transport interface {
	// Send writes one complete message. Send is never called
	// concurrently with itself.
	Send(msg wire.Message) error
	// Receive blocks until the next complete message arrives, or
	// returns an error (including io.EOF on a clean peer close).
	// Receive is never called concurrently with itself.
	Receive() (wire.Message, error)
	// Close releases the underlying channel. Close unblocks any
	// in-flight Receive with an error.
	Close() error
}

// Cancellation is a one-shot, broadcastable stop signal shared between a
// connection's reader loop, writer loop, and public Stop method.
type Cancellation struct {
	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	err  error
}

// NewCancellation returns a Cancellation in the not-yet-cancelled state.
func NewCancellation() *Cancellation {
	return &Cancellation{done: make(chan struct{})}
}

// Cancel signals Done and records err as the reason, if this is the
// first call to Cancel. Subsequent calls are no-ops.
func (c *Cancellation) Cancel(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// Done returns a channel closed once Cancel has been called.
func (c *Cancellation) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason passed to Cancel, or nil if not yet cancelled.
func (c *Cancellation) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Cancelled reports whether Cancel has been called.
func (c *Cancellation) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// StreamTransport frames wire.Messages over any io.ReadWriteCloser,
// typically a net.Conn (TCP, Unix socket, or an OS-specific stream such
// as a named pipe). It is the one transport every platform can use.
type StreamTransport struct {
	rwc io.ReadWriteCloser
}

// NewStreamTransport wraps rwc for message framing.
func NewStreamTransport(rwc io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{rwc: rwc}
}

// Send implements Transport.
func (t *StreamTransport) Send(msg wire.Message) error {
	return wire.WriteMessage(t.rwc, msg)
}

// Receive implements Transport.
func (t *StreamTransport) Receive() (wire.Message, error) {
	return wire.ReadMessage(t.rwc)
}

// Close implements Transport.
func (t *StreamTransport) Close() error {
	return t.rwc.Close()
}
