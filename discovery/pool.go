// Connection pooling follows the buffered-channel FIFO design: a
// channel doubles as a concurrency-safe queue, with blocking-on-empty
// built in for free.
package discovery

import (
	"context"
	"fmt"
	"sync"

	"duplexrpc/engine"
)

// DialFunc establishes a new engine.Connection to addr, already Started
// against whatever transport.Transport the caller's platform uses.
type DialFunc func(ctx context.Context, addr string) (*engine.Connection, error)

// ConnPool manages reusable engine.Connections to a single address,
// created lazily up to maxConns.
type ConnPool struct {
	mu       sync.Mutex
	conns    chan *engine.Connection
	addr     string
	maxConns int
	curConns int
	dial     DialFunc
}

// NewConnPool creates a pool bounded at maxConns live connections to addr.
func NewConnPool(addr string, maxConns int, dial DialFunc) *ConnPool {
	return &ConnPool{
		conns:    make(chan *engine.Connection, maxConns),
		addr:     addr,
		maxConns: maxConns,
		dial:     dial,
	}
}

// Get returns an existing idle connection if one is queued, dials a new
// one if the pool is under capacity, or blocks until one is returned.
func (p *ConnPool) Get(ctx context.Context) (*engine.Connection, error) {
	select {
	case conn := <-p.conns:
		if conn.State() != engine.StateRunning {
			return p.dialNew(ctx)
		}
		return conn, nil
	default:
	}

	p.mu.Lock()
	if p.curConns < p.maxConns {
		p.curConns++
		p.mu.Unlock()
		conn, err := p.dial(ctx, p.addr)
		if err != nil {
			p.mu.Lock()
			p.curConns--
			p.mu.Unlock()
			return nil, err
		}
		return conn, nil
	}
	p.mu.Unlock()

	select {
	case conn := <-p.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *ConnPool) dialNew(ctx context.Context) (*engine.Connection, error) {
	return p.dial(ctx, p.addr)
}

// Put returns conn to the pool for reuse, or discards it (and frees its
// pool slot) if it's no longer running.
func (p *ConnPool) Put(conn *engine.Connection) {
	if conn.State() != engine.StateRunning {
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return
	}
	select {
	case p.conns <- conn:
	default:
		// Pool at capacity for queued idle connections; stop this one
		// rather than leak it.
		_ = conn.Stop()
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
	}
}

// Close stops every idle connection currently queued in the pool. It
// does not affect connections currently checked out via Get.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.conns)
	var firstErr error
	for conn := range p.conns {
		if err := conn.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.curConns--
	}
	if firstErr != nil {
		return fmt.Errorf("discovery: closing pool for %s: %w", p.addr, firstErr)
	}
	return nil
}
