// Package rpcserver runs an Accept loop that turns each inbound
// connection into a running engine.Connection bound to a server
// interface, and optionally advertises the listener through a
// discovery.Registry.
package rpcserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"duplexrpc/discovery"
	"duplexrpc/engine"
	"duplexrpc/stub"
	"duplexrpc/transport"
)

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the structured logger used for accept/dispatch errors.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// WithRegistry registers every accepted listener's address under
// serviceName in reg for the lifetime of Serve, deregistering on
// Shutdown.
func WithRegistry(reg discovery.Registry, serviceName string, ttl int64) Option {
	return func(l *Listener) {
		l.registry = reg
		l.serviceName = serviceName
		l.ttl = ttl
	}
}

// WithConnectionOptions passes through additional engine.Option values
// applied to every accepted connection, alongside WithServer.
func WithConnectionOptions(opts ...engine.Option) Option {
	return func(l *Listener) { l.connOpts = append(l.connOpts, opts...) }
}

// Listener accepts connections on a net.Listener and serves a single
// stub.InterfaceDesc over each, tracking every live engine.Connection
// for graceful shutdown.
type Listener struct {
	dispatcher *stub.Dispatcher
	logger     *zap.Logger
	registry   discovery.Registry
	serviceName string
	ttl         int64
	connOpts    []engine.Option

	ln            net.Listener
	advertiseAddr string
	shutdown      atomic.Bool

	mu    sync.Mutex
	conns map[*engine.Connection]struct{}
	wg    sync.WaitGroup
}

// New builds a Listener that serves dispatcher on every accepted
// connection.
func New(dispatcher *stub.Dispatcher, opts ...Option) *Listener {
	l := &Listener{
		dispatcher: dispatcher,
		logger:     zap.NewNop(),
		conns:      make(map[*engine.Connection]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Serve listens on network/address, advertises advertiseAddr through
// the configured registry (if any), and accepts connections until
// Shutdown is called.
func (l *Listener) Serve(network, address, advertiseAddr string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("rpcserver: listen %s %s: %w", network, address, err)
	}
	l.ln = ln
	l.advertiseAddr = advertiseAddr

	if l.registry != nil {
		instance := discovery.ServiceInstance{Addr: advertiseAddr}
		if err := l.registry.Register(context.Background(), l.serviceName, instance, l.ttl); err != nil {
			ln.Close()
			return fmt.Errorf("rpcserver: register %q: %w", l.serviceName, err)
		}
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.shutdown.Load() {
				return nil
			}
			return err
		}
		go l.handleConn(conn)
	}
}

func (l *Listener) handleConn(nc net.Conn) {
	c := engine.New(append([]engine.Option{
		engine.WithLogger(l.logger),
		engine.WithServer(l.dispatcher),
	}, l.connOpts...)...)

	l.mu.Lock()
	l.conns[c] = struct{}{}
	l.mu.Unlock()
	l.wg.Add(1)
	defer func() {
		l.mu.Lock()
		delete(l.conns, c)
		l.mu.Unlock()
		l.wg.Done()
	}()

	if err := c.Start(transport.NewStreamTransport(nc)); err != nil {
		l.logger.Warn("rpcserver: failed to start accepted connection", zap.Error(err))
		nc.Close()
		return
	}

	// Done closes whether the connection was stopped explicitly by
	// Shutdown or stopped itself after a fatal transport error (a peer
	// hangup); either way the transport is already closed by Stop, so
	// there is nothing left to clean up here beyond untracking c.
	<-c.Done()
}

// Shutdown deregisters from the registry, stops accepting new
// connections, and waits up to timeout for every in-flight connection
// to drain its outstanding requests before stopping it.
func (l *Listener) Shutdown(timeout time.Duration) error {
	if l.registry != nil {
		if err := l.registry.Deregister(context.Background(), l.serviceName, l.advertiseAddr); err != nil {
			l.logger.Warn("rpcserver: deregister failed", zap.Error(err))
		}
	}

	l.shutdown.Store(true)
	if l.ln != nil {
		l.ln.Close()
	}

	l.mu.Lock()
	conns := make([]*engine.Connection, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		go func(c *engine.Connection) {
			quiesced := make(chan struct{})
			go func() {
				for c.OutstandingRequests() > 0 {
					time.Sleep(10 * time.Millisecond)
				}
				close(quiesced)
			}()
			select {
			case <-quiesced:
			case <-time.After(timeout):
			}
			c.Stop()
		}(c)
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("rpcserver: timeout waiting for connections to close")
	}
}

// ConnectionCount reports the number of currently live connections,
// useful for health checks and tests.
func (l *Listener) ConnectionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}
