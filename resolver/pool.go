// Package resolver tracks a fixed set of service replicas, probes their
// liveness endpoints, and hands out healthy targets round-robin.
package resolver

import (
	"sync"

	"github.com/wintermutant/anvil-composable-tutorial/errors"
)

// Pool holds the replica set and serves round-robin resolution over the
// currently healthy members. The replica list is fixed at construction;
// only health state changes at runtime.
type Pool struct {
	mu       sync.RWMutex
	replicas []string
	healthy  map[string]bool
	next     int
}

// NewPool creates a pool over the given replica addresses. All replicas
// start healthy so traffic flows before the first probe round completes.
func NewPool(replicas []string) (*Pool, error) {
	if len(replicas) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Pool", "NewPool",
			"at least one replica is required")
	}

	healthy := make(map[string]bool, len(replicas))
	for _, replica := range replicas {
		healthy[replica] = true
	}

	return &Pool{
		replicas: append([]string(nil), replicas...),
		healthy:  healthy,
	}, nil
}

// Resolve returns the next healthy replica in round-robin order.
// Returns ErrNoHealthyReplica when every replica is marked unhealthy.
func (p *Pool) Resolve() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.replicas); i++ {
		candidate := p.replicas[p.next%len(p.replicas)]
		p.next++
		if p.healthy[candidate] {
			return candidate, nil
		}
	}

	return "", errors.WrapTransient(errors.ErrNoHealthyReplica, "Pool", "Resolve",
		"no healthy replica available")
}

// SetHealthy marks a replica healthy or unhealthy. Unknown replicas are
// ignored; the pool never grows past its construction set.
func (p *Pool) SetHealthy(replica string, healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, known := p.healthy[replica]; known {
		p.healthy[replica] = healthy
	}
}

// Replicas returns the full replica set in configuration order
func (p *Pool) Replicas() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.replicas...)
}

// HealthyCount returns how many replicas are currently marked healthy
func (p *Pool) HealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, ok := range p.healthy {
		if ok {
			count++
		}
	}
	return count
}
