// Package discovery is the multi-endpoint client: service registration
// and lookup, load balancing across the discovered instances, and a
// pool of live engine.Connections per instance so a caller reuses
// connections across calls instead of dialing fresh for every one.
package discovery

import "context"

// ServiceInstance is one registered, addressable server.
type ServiceInstance struct {
	Addr    string
	Weight  int
	Version string
}

// Registry is how a service instance publishes itself and how a client
// finds the currently live instances of a named service.
type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}
