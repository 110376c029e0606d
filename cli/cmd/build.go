package cmd

import (
	"context"
	"fmt"

	lodeapi "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/kdp/adapter"
	"github.com/pithecene-io/kdp/adapter/redis"
	"github.com/pithecene-io/kdp/adapter/webhook"
	"github.com/pithecene-io/kdp/classfile"
	"github.com/pithecene-io/kdp/cli/config"
	"github.com/pithecene-io/kdp/lode"
	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/proxy"
	"github.com/pithecene-io/kdp/runtime"
	"github.com/pithecene-io/kdp/types"
)

// Storage backend names.
const (
	backendFS   = "fs"
	backendS3   = "s3"
	backendNone = "none"
)

// buildStore returns the Lode store factory for s, or nil without a path.
func buildStore(ctx context.Context, s config.StorageConfig) (lodeapi.StoreFactory, string, error) {
	if s.Path == "" {
		return nil, backendNone, nil
	}
	switch s.Backend {
	case backendFS, "":
		f, err := lode.NewFSFactory(s.Path)
		return f, backendFS, err
	case backendS3:
		bucket, prefix := lode.ParseS3Path(s.Path)
		f, err := lode.NewS3Factory(ctx, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.Region,
			Endpoint:     s.Endpoint,
			UsePathStyle: s.S3PathStyle,
		})
		return f, backendS3, err
	default:
		return nil, "", usagef("unknown storage backend %q (must be fs or s3)", s.Backend)
	}
}

// buildTrace returns the trace configuration, or nil when no sink is set.
func buildTrace(ctx context.Context, cfg *config.Config) (*runtime.TraceConfig, error) {
	store, backend, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	tc := &runtime.TraceConfig{
		Policy:         cfg.Trace.Policy,
		CapturePath:    cfg.Trace.Capture,
		Lode:           store,
		Dataset:        cfg.Storage.Dataset,
		StorageBackend: backend,
		Buffered: policy.BufferedConfig{
			MaxBufferRecords: cfg.Trace.BufferRecords,
			MaxBufferBytes:   cfg.Trace.BufferBytes,
		},
		Streaming: policy.StreamingConfig{
			FlushCount:    cfg.Trace.FlushCount,
			FlushInterval: cfg.Trace.FlushInterval.Duration,
		},
	}
	if !tc.HasSink() {
		if cfg.Trace.Policy != "" && cfg.Trace.Policy != runtime.PolicyNone {
			return nil, usagef("trace policy %q needs --%s or --%s", cfg.Trace.Policy, flagCapture, flagStoragePath)
		}
		return nil, nil
	}
	if err := tc.Validate(); err != nil {
		return nil, usagef("invalid trace config: %v", err)
	}
	return tc, nil
}

// buildAdapter returns the session notification adapter, or nil.
func buildAdapter(a config.AdapterConfig) (adapter.Adapter, error) {
	retries := func(def int) int {
		if a.Retries != nil {
			return *a.Retries
		}
		return def
	}
	switch a.Type {
	case "":
		if a.URL != "" {
			return nil, usagef("--%s requires --%s", flagAdapterURL, flagAdapter)
		}
		return nil, nil
	case "webhook":
		w, err := webhook.New(webhook.Config{
			URL:     a.URL,
			Headers: a.Headers,
			Timeout: a.Timeout.Duration,
			Retries: retries(webhook.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	case "redis":
		r, err := redis.New(redis.Config{
			URL:     a.URL,
			Channel: a.Channel,
			Timeout: a.Timeout.Duration,
			Retries: retries(redis.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, usagef("unknown adapter %q (must be webhook or redis)", a.Type)
	}
}

// buildServerConfig assembles the runtime configuration. The caller closes
// the adapter.
func buildServerConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (runtime.ServerConfig, error) {
	var sc runtime.ServerConfig
	if err := validateProxyConfig(cfg); err != nil {
		return sc, err
	}
	pool, err := vmPool(cfg)
	if err != nil {
		return sc, err
	}
	var cp *classfile.Path
	if cfg.ClassPath != "" {
		cp = classfile.NewPath(cfg.ClassPath)
	}
	if cfg.WatchClassPath && cp == nil {
		return sc, usagef("--%s requires -cp", flagWatchClassPath)
	}
	trace, err := buildTrace(ctx, cfg)
	if err != nil {
		return sc, err
	}
	ad, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return sc, err
	}

	mode := "passthrough"
	if cfg.Proxy {
		mode = "proxy"
	}
	backend := backendNone
	if trace != nil && trace.StorageBackend != "" {
		backend = trace.StorageBackend
	}

	return runtime.ServerConfig{
		ListenAddr: listenAddr(cfg.Listen),
		Pool:       pool,
		Multi:      cfg.Multi,
		Parallel:   cfg.Parallel,
		Proxy: proxy.Config{
			ProxyMode:    cfg.Proxy,
			LegacyResume: cfg.LegacyResume,
			ClassPath:    cp,
			Description:  types.VMDescription,
			VersionMajor: types.JDWPMajor,
			VersionMinor: types.JDWPMinor,
			VMVersion:    cfg.VMVersion,
		},
		HandshakeTimeout: cfg.Handshake.Duration,
		WatchClassPath:   cfg.WatchClassPath,
		Trace:            trace,
		ReportPath:       cfg.Report,
		Adapter:          ad,
		Collector:        metrics.NewCollector(mode, trace.PolicyName(), backend),
		Logger:           logger,
	}, nil
}

func describePool(pool *types.VMPool) string {
	if len(pool.Endpoints) == 1 {
		return pool.Endpoints[0].Addr()
	}
	return fmt.Sprintf("pool %s (%d VMs, %s)", pool.Name, len(pool.Endpoints), pool.Strategy)
}
