package engine

import (
	"go.uber.org/zap"

	"duplexrpc/middleware"
	"duplexrpc/rpcerr"
	"duplexrpc/stub"
)

// Option configures a Connection at construction time, following the
// functional-options pattern used throughout this module's client and
// server configuration surfaces.
type Option func(*Connection)

// WithLogger attaches a structured logger. A nil logger (the default) is
// replaced with zap.NewNop() so callers never need a nil check.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) { c.logger = logger }
}

// WithServer binds a Dispatcher so the connection answers incoming
// requests as a server, in addition to (or instead of) making outgoing
// calls as a client.
func WithServer(dispatcher *stub.Dispatcher) Option {
	return func(c *Connection) { c.dispatcher = dispatcher }
}

// WithClientInterface tells the connection which methods it will ever
// call as a client, purely so Start can decide whether the reader loop
// is unnecessary (a client that only ever sends VoidRequests, on a
// connection with no server bound, never needs to read anything back).
// A Connection assumes it may be used to make two-way calls unless this
// option names a void-only interface, or WithServerOnly is given; this
// option only ever narrows the reader-elision decision, never widens it,
// so omitting it is always safe.
func WithClientInterface(iface *stub.InterfaceDesc) Option {
	return func(c *Connection) { c.clientIface = iface }
}

// WithServerOnly declares that this connection will never call Request
// or VoidRequest itself, letting Start elide the writer loop entirely
// when the bound server interface is also void-only (nothing would ever
// need to be sent). Using Request/VoidRequest on a connection configured
// with WithServerOnly is a programming error: when the writer loop has
// been elided the message is never sent, so VoidRequest returns once the
// message is queued and Request blocks until its context is cancelled.
func WithServerOnly() Option {
	return func(c *Connection) { c.serverOnly = true }
}

// WithSerializerState attaches the value carried by the serializer.Writer
// and serializer.Reader the connection itself creates, which encode and
// decode ResponseError code payloads. It does not reach argument or
// result payloads: stub.Call, CallUnit and Notify encode and decode with
// a nil state, and server handlers receive the state given to
// stub.NewDispatcher.
func WithSerializerState(state any) Option {
	return func(c *Connection) { c.serializerState = state }
}

// WithErrorHandler installs the connection's error handler up front,
// equivalent to calling OnError immediately after Start.
func WithErrorHandler(handler func(phase rpcerr.Phase, err error)) Option {
	return func(c *Connection) { c.errHandler = handler }
}

// WithOutboundBuffer sets the outbound message queue's buffer size.
// Defaults to 64 if unset; a busy pipelined client benefits from a
// larger buffer, since Request/VoidRequest block on this queue filling.
func WithOutboundBuffer(n int) Option {
	return func(c *Connection) { c.outboundBuffer = n }
}

// WithMiddleware wraps every incoming request's dispatch in the given
// chain before it reaches the bound Dispatcher, applied in the order
// given (the first middleware runs outermost). Has no effect on a
// connection with no WithServer dispatcher.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Connection) { c.middleware = middleware.Chain(mws...) }
}
