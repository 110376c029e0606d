package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kdp/cli/config"
	"github.com/pithecene-io/kdp/proxy"
	"github.com/pithecene-io/kdp/types"
)

// errUsage marks errors that print usage before exiting.
var errUsage = errors.New("usage")

// usageError is a missing or invalid command line argument.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func (e *usageError) Is(target error) bool { return target == errUsage }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// loadConfig reads --config, or returns an empty config without one.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	str := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}
	integer := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	duration := func(name string, dst *config.Duration) {
		if c.IsSet(name) {
			dst.Duration = c.Duration(name)
		}
	}

	str(flagListen, &cfg.Listen)
	str(flagRemote, &cfg.VM)
	str(flagClassPath, &cfg.ClassPath)
	str(flagPool, &cfg.Pool)
	str(flagReport, &cfg.Report)
	str(flagVMVersion, &cfg.VMVersion)
	integer(flagVerbosity, &cfg.Verbosity)
	integer(flagParallel, &cfg.Parallel)
	boolean(flagProxy, &cfg.Proxy)
	boolean(flagMulti, &cfg.Multi)
	boolean(flagLegacyResume, &cfg.LegacyResume)
	boolean(flagWatchClassPath, &cfg.WatchClassPath)
	duration(flagHandshake, &cfg.Handshake)

	str(flagTracePolicy, &cfg.Trace.Policy)
	str(flagCapture, &cfg.Trace.Capture)
	integer(flagBufferRecords, &cfg.Trace.BufferRecords)
	if c.IsSet(flagBufferBytes) {
		cfg.Trace.BufferBytes = c.Int64(flagBufferBytes)
	}
	integer(flagFlushCount, &cfg.Trace.FlushCount)
	duration(flagFlushInterval, &cfg.Trace.FlushInterval)

	applyStorageFlags(c, &cfg.Storage)

	str(flagAdapter, &cfg.Adapter.Type)
	str(flagAdapterURL, &cfg.Adapter.URL)
	str(flagAdapterChannel, &cfg.Adapter.Channel)
	duration(flagAdapterTimeout, &cfg.Adapter.Timeout)
	if c.IsSet(flagAdapterRetries) {
		n := c.Int(flagAdapterRetries)
		cfg.Adapter.Retries = &n
	}
	if c.IsSet(flagAdapterHeader) {
		headers, err := parseHeaders(c.StringSlice(flagAdapterHeader))
		if err != nil {
			return err
		}
		cfg.Adapter.Headers = headers
	}
	return nil
}

func applyStorageFlags(c *cli.Context, s *config.StorageConfig) {
	for name, dst := range map[string]*string{
		flagStorageBackend:  &s.Backend,
		flagStoragePath:     &s.Path,
		flagStorageDataset:  &s.Dataset,
		flagStorageRegion:   &s.Region,
		flagStorageEndpoint: &s.Endpoint,
	} {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.IsSet(flagS3PathStyle) {
		s.S3PathStyle = c.Bool(flagS3PathStyle)
	}
}

func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, usagef("invalid --%s %q: want KEY=VALUE", flagAdapterHeader, v)
		}
		headers[strings.TrimSpace(k)] = val
	}
	return headers, nil
}

// vmPool returns the VM pool sessions are routed to: the pool selected by
// --pool, or a single-VM pool from -r.
func vmPool(cfg *config.Config) (*types.VMPool, error) {
	pool, err := cfg.SelectedPool()
	if err != nil {
		return nil, usagef("%v", err)
	}
	if pool != nil {
		if err := pool.Validate(); err != nil {
			return nil, usagef("pool %q: %v", pool.Name, err)
		}
		return pool, nil
	}
	if cfg.VM == "" {
		return nil, usagef("missing -r <host> <port>")
	}
	ep, err := types.ParseVMEndpoint(cfg.VM)
	if err != nil {
		return nil, usagef("%v", err)
	}
	return proxy.SingleVM(ep), nil
}

// validateProxyConfig checks the arguments every proxy run needs.
func validateProxyConfig(cfg *config.Config) error {
	if cfg.Listen == "" {
		return usagef("missing -l <localport>")
	}
	if cfg.Verbosity < 0 {
		return usagef("invalid -v %d: must be >= 0", cfg.Verbosity)
	}
	if cfg.Parallel < 0 {
		return usagef("invalid --%s %d: must be >= 0", flagParallel, cfg.Parallel)
	}
	if cfg.Parallel > 1 && !cfg.Multi {
		return usagef("--%s requires -m", flagParallel)
	}
	return nil
}
