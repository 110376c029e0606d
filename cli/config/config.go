package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/pithecene-io/kdp/types"
)

// Config represents a kdp.yaml configuration file.
// All values are optional and act as defaults for the kdp flags.
// Flags always override config values.
type Config struct {
	// Listen is the debugger-facing port or address.
	Listen string `yaml:"listen"`
	// VM is a single VM address, "host:port". Ignored when Pool is set.
	VM string `yaml:"vm"`
	// Pools defines named VM pools; Pool selects one.
	Pools map[string]VMPoolConfig `yaml:"pools"`
	Pool  string                  `yaml:"pool"`

	ClassPath      string   `yaml:"classpath"`
	WatchClassPath bool     `yaml:"watch_classpath"`
	Verbosity      int      `yaml:"verbosity"`
	Proxy          bool     `yaml:"proxy"`
	Multi          bool     `yaml:"multi"`
	Parallel       int      `yaml:"parallel"`
	LegacyResume   bool     `yaml:"legacy_resume"`
	VMVersion      string   `yaml:"vm_version"`
	Handshake      Duration `yaml:"handshake_timeout"`
	Report         string   `yaml:"report"`

	Trace   TraceConfig   `yaml:"trace"`
	Storage StorageConfig `yaml:"storage"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// VMPoolConfig is a VM pool definition within the config file.
// Name is derived from the map key, not stored in the struct.
type VMPoolConfig struct {
	Strategy  types.VMStrategy   `yaml:"strategy"`
	Endpoints []types.VMEndpoint `yaml:"endpoints"`
	Sticky    *types.VMSticky    `yaml:"sticky,omitempty"`
}

// TraceConfig holds packet trace defaults.
type TraceConfig struct {
	Policy        string   `yaml:"policy"`
	Capture       string   `yaml:"capture"`
	BufferRecords int      `yaml:"buffer_records"`
	BufferBytes   int64    `yaml:"buffer_bytes"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// StorageConfig holds Lode archive defaults.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds session notification defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// VMPools converts the map-keyed pool config into a slice sorted by name.
func (c *Config) VMPools() []types.VMPool {
	if len(c.Pools) == 0 {
		return nil
	}
	pools := make([]types.VMPool, 0, len(c.Pools))
	for name, pc := range c.Pools {
		pools = append(pools, types.VMPool{
			Name:      name,
			Strategy:  pc.Strategy,
			Endpoints: pc.Endpoints,
			Sticky:    pc.Sticky,
		})
	}
	slices.SortFunc(pools, func(a, b types.VMPool) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return pools
}

// SelectedPool returns the pool named by Pool.
func (c *Config) SelectedPool() (*types.VMPool, error) {
	if c.Pool == "" {
		return nil, nil
	}
	for _, p := range c.VMPools() {
		if p.Name == c.Pool {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("pool %q is not defined in pools", c.Pool)
}
