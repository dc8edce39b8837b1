package discovery

import (
	"fmt"
	"sync/atomic"
)

// RoundRobinBalancer distributes calls evenly across all instances in
// order, using an atomic counter for lock-free selection. Best suited to
// stateless services with similarly capable instances.
type RoundRobinBalancer struct {
	counter int64
}

// Pick selects the next instance in round-robin order.
func (b *RoundRobinBalancer) Pick(instances []ServiceInstance) (*ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("discovery: no instances available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	return &instances[index], nil
}

// Name implements Balancer.
func (b *RoundRobinBalancer) Name() string { return "RoundRobin" }
