package types

import (
	"fmt"
	"net"
	"strconv"
)

// VMStrategy is the VM selection strategy for pools.
type VMStrategy string

const (
	VMStrategyRoundRobin VMStrategy = "round_robin"
	VMStrategyRandom     VMStrategy = "random"
	VMStrategySticky     VMStrategy = "sticky"
)

// VMEndpoint is a VM debug port the proxy can dial.
type VMEndpoint struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// ParseVMEndpoint parses "host:port".
func ParseVMEndpoint(s string) (VMEndpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return VMEndpoint{}, fmt.Errorf("invalid VM address %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return VMEndpoint{}, fmt.Errorf("invalid VM port %q", portStr)
	}
	ep := VMEndpoint{Host: host, Port: port}
	return ep, ep.Validate()
}

// Validate validates an endpoint.
func (e *VMEndpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("VM host is required")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", e.Port)
	}
	return nil
}

// Addr returns "host:port".
func (e VMEndpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// VMSticky is sticky configuration for a VM pool.
// Sticky assignment keys on the debugger host.
type VMSticky struct {
	// TTLMs is the optional TTL in milliseconds for sticky entries.
	TTLMs *int64 `json:"ttl_ms,omitempty" yaml:"ttl_ms,omitempty"`
}

// VMPool is the set of VMs a multi-VM proxy rotates through.
type VMPool struct {
	Name      string       `json:"name" yaml:"name"`
	Strategy  VMStrategy   `json:"strategy" yaml:"strategy"`
	Endpoints []VMEndpoint `json:"endpoints" yaml:"endpoints"`
	Sticky    *VMSticky    `json:"sticky,omitempty" yaml:"sticky,omitempty"`
}

// LargePoolThreshold is the number of endpoints above which round_robin
// is discouraged in favor of random.
const LargePoolThreshold = 50

// Validate validates a pool.
func (p *VMPool) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pool name is required")
	}

	switch p.Strategy {
	case VMStrategyRoundRobin, VMStrategyRandom, VMStrategySticky:
	default:
		return fmt.Errorf("invalid strategy %q: must be round_robin, random, or sticky", p.Strategy)
	}

	if len(p.Endpoints) == 0 {
		return fmt.Errorf("pool must have at least one endpoint")
	}
	for i, ep := range p.Endpoints {
		if err := ep.Validate(); err != nil {
			return fmt.Errorf("endpoints[%d]: %w", i, err)
		}
	}

	if p.Sticky != nil && p.Sticky.TTLMs != nil && *p.Sticky.TTLMs <= 0 {
		return fmt.Errorf("sticky TTL must be positive")
	}
	return nil
}

// Warnings returns non-fatal configuration issues.
func (p *VMPool) Warnings() []string {
	var warnings []string
	if p.Strategy == VMStrategyRoundRobin && len(p.Endpoints) > LargePoolThreshold {
		warnings = append(warnings, fmt.Sprintf("pool %q has %d endpoints with round_robin strategy; consider random for large pools", p.Name, len(p.Endpoints)))
	}
	if p.Sticky != nil && p.Strategy != VMStrategySticky {
		warnings = append(warnings, fmt.Sprintf("pool %q sets sticky options but strategy is %s", p.Name, p.Strategy))
	}
	return warnings
}
