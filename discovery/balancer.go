package discovery

// Balancer picks one instance from a discovered set for the next call.
// Pick is called on the hot path for every acquisition and must be
// goroutine-safe.
type Balancer interface {
	Pick(instances []ServiceInstance) (*ServiceInstance, error)
	Name() string
}
