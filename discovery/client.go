package discovery

import (
	"context"
	"fmt"
	"sync"

	"duplexrpc/engine"
	"duplexrpc/methodid"
)

// Option configures a Client, following the functional-options pattern
// used across the module's client- and server-side configuration.
type Option func(*Client)

// WithPoolSize sets the maximum number of pooled connections kept per
// discovered instance. Defaults to 4.
func WithPoolSize(n int) Option {
	return func(c *Client) { c.poolSize = n }
}

// Client discovers a named service's live instances, picks one with a
// Balancer, and reuses a pooled engine.Connection to it per call.
type Client struct {
	registry Registry
	balancer Balancer
	dial     DialFunc
	poolSize int

	mu    sync.Mutex
	pools map[string]*ConnPool
}

// NewClient builds a Client. dial is how the client turns a discovered
// address into a running engine.Connection (dialing the transport,
// wrapping it, and calling Start); its shape lets callers choose TCP, a
// named pipe, or any other transport.Transport implementation.
func NewClient(registry Registry, balancer Balancer, dial DialFunc, opts ...Option) *Client {
	c := &Client{
		registry: registry,
		balancer: balancer,
		dial:     dial,
		poolSize: 4,
		pools:    make(map[string]*ConnPool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) poolFor(addr string) *ConnPool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pools[addr]
	if !ok {
		p = NewConnPool(addr, c.poolSize, c.dial)
		c.pools[addr] = p
	}
	return p
}

// Acquire discovers serviceName, picks an instance, and checks out a
// pooled connection to it. The returned release func must be called
// exactly once, with the error observed on the call (if any) so a
// broken connection is dropped instead of recycled.
func (c *Client) Acquire(ctx context.Context, serviceName string) (conn *engine.Connection, release func(callErr error), err error) {
	instances, err := c.registry.Discover(ctx, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: discover %q: %w", serviceName, err)
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: pick instance for %q: %w", serviceName, err)
	}

	pool := c.poolFor(instance.Addr)
	conn, err = pool.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: acquire connection to %s: %w", instance.Addr, err)
	}

	release = func(callErr error) {
		if callErr != nil && conn.State() != engine.StateRunning {
			_ = conn.Stop()
		}
		pool.Put(conn)
	}
	return conn, release, nil
}

// Request acquires a connection to serviceName, makes the call, and
// releases the connection in one step. It takes the service name as an
// extra argument, so it is ServiceCaller (see ForService), not Client,
// that implements stub.Caller.
func (c *Client) Request(ctx context.Context, serviceName string, id methodid.MethodID, payload []byte) ([]byte, error) {
	conn, release, err := c.Acquire(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	result, callErr := conn.Request(ctx, id, payload)
	release(callErr)
	return result, callErr
}

// VoidRequest is the fire-and-forget counterpart of Request.
func (c *Client) VoidRequest(ctx context.Context, serviceName string, id methodid.MethodID, payload []byte) error {
	conn, release, err := c.Acquire(ctx, serviceName)
	if err != nil {
		return err
	}
	callErr := conn.VoidRequest(ctx, id, payload)
	release(callErr)
	return callErr
}

// ForService returns a stub.Caller bound to one service name, suitable
// for handing to a generated client proxy (e.g. calc.NewClient) that
// expects a plain stub.Caller with no service-name parameter.
func (c *Client) ForService(serviceName string) *ServiceCaller {
	return &ServiceCaller{client: c, serviceName: serviceName}
}

// ServiceCaller adapts Client to stub.Caller for one fixed service name.
type ServiceCaller struct {
	client      *Client
	serviceName string
}

// Request implements stub.Caller.
func (s *ServiceCaller) Request(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error) {
	return s.client.Request(ctx, s.serviceName, id, payload)
}

// VoidRequest implements stub.Caller.
func (s *ServiceCaller) VoidRequest(ctx context.Context, id methodid.MethodID, payload []byte) error {
	return s.client.VoidRequest(ctx, s.serviceName, id, payload)
}
