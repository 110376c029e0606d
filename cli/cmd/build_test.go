package cmd

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/kdp/adapter/redis"
	"github.com/pithecene-io/kdp/adapter/webhook"
	"github.com/pithecene-io/kdp/cli/config"
	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/runtime"
)

func TestBuildStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name        string
		storage     config.StorageConfig
		wantBackend string
		wantStore   bool
		wantErr     bool
	}{
		{"no path", config.StorageConfig{}, backendNone, false, false},
		{"fs default", config.StorageConfig{Path: dir}, backendFS, true, false},
		{"fs explicit", config.StorageConfig{Backend: "fs", Path: filepath.Join(dir, "nested")}, backendFS, true, false},
		{"unknown", config.StorageConfig{Backend: "gcs", Path: dir}, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend, err := buildStore(t.Context(), tt.storage)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if backend != tt.wantBackend || (store != nil) != tt.wantStore {
				t.Errorf("backend = %q, store = %v", backend, store != nil)
			}
		})
	}
}

func TestBuildTrace(t *testing.T) {
	capture := filepath.Join(t.TempDir(), "trace.kdpc")
	tests := []struct {
		name       string
		trace      config.TraceConfig
		wantNil    bool
		wantPolicy string
		wantErr    bool
	}{
		{"nothing", config.TraceConfig{}, true, "", false},
		{"policy none", config.TraceConfig{Policy: "none"}, true, "", false},
		{"policy without sink", config.TraceConfig{Policy: "buffered"}, false, "", true},
		{"capture defaults strict", config.TraceConfig{Capture: capture}, false, runtime.PolicyStrict, false},
		{"buffered", config.TraceConfig{Capture: capture, Policy: "buffered", BufferRecords: 100}, false, runtime.PolicyBuffered, false},
		{"buffered without limits", config.TraceConfig{Capture: capture, Policy: "buffered"}, false, "", true},
		{
			"streaming",
			config.TraceConfig{Capture: capture, Policy: "streaming", FlushInterval: config.Duration{Duration: time.Second}},
			false, runtime.PolicyStreaming, false,
		},
		{"unknown policy", config.TraceConfig{Capture: capture, Policy: "lossy"}, false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := buildTrace(t.Context(), &config.Config{Trace: tt.trace})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errUsage) {
					t.Errorf("err = %v, want a usage error", err)
				}
				return
			}
			if (tc == nil) != tt.wantNil {
				t.Fatalf("trace config = %+v, wantNil %v", tc, tt.wantNil)
			}
			if tc != nil && tc.PolicyName() != tt.wantPolicy {
				t.Errorf("policy = %q, want %q", tc.PolicyName(), tt.wantPolicy)
			}
		})
	}
}

func TestBuildAdapter(t *testing.T) {
	zero := 0
	tests := []struct {
		name    string
		cfg     config.AdapterConfig
		check   func(t *testing.T, a any)
		wantErr bool
	}{
		{"none", config.AdapterConfig{}, func(t *testing.T, a any) {
			if a != nil {
				t.Errorf("adapter = %T, want nil", a)
			}
		}, false},
		{"url without type", config.AdapterConfig{URL: "http://x"}, nil, true},
		{"webhook", config.AdapterConfig{Type: "webhook", URL: "http://hooks.local/kdp", Retries: &zero}, func(t *testing.T, a any) {
			if _, ok := a.(*webhook.Adapter); !ok {
				t.Errorf("adapter = %T, want webhook", a)
			}
		}, false},
		{"webhook without url", config.AdapterConfig{Type: "webhook"}, nil, true},
		{"redis", config.AdapterConfig{Type: "redis", URL: "redis://localhost:6379/0", Channel: "kdp"}, func(t *testing.T, a any) {
			if _, ok := a.(*redis.Adapter); !ok {
				t.Errorf("adapter = %T, want redis", a)
			}
		}, false},
		{"unknown", config.AdapterConfig{Type: "kafka", URL: "x"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := buildAdapter(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if a != nil {
				defer func() { _ = a.Close() }()
			}
			tt.check(t, a)
		})
	}
}

func TestBuildServerConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Listen:    "8000",
		VM:        "vm.local:2800",
		ClassPath: dir,
		Proxy:     true,
		Multi:     true,
		Parallel:  4,
		VMVersion: "1.0.3",
		Report:    filepath.Join(dir, "{session_id}.json"),
		Trace:     config.TraceConfig{Capture: filepath.Join(dir, "trace.kdpc")},
		Storage:   config.StorageConfig{Path: filepath.Join(dir, "archive")},
	}

	sc, err := buildServerConfig(t.Context(), cfg, log.NewNop())
	if err != nil {
		t.Fatalf("buildServerConfig: %v", err)
	}
	if sc.ListenAddr != ":8000" || !sc.Multi || sc.Parallel != 4 {
		t.Errorf("listen/multi/parallel = %q/%v/%d", sc.ListenAddr, sc.Multi, sc.Parallel)
	}
	if len(sc.Pool.Endpoints) != 1 || sc.Pool.Endpoints[0].Addr() != "vm.local:2800" {
		t.Errorf("pool = %+v", sc.Pool)
	}
	if !sc.Proxy.ProxyMode || sc.Proxy.ClassPath == nil || sc.Proxy.VMVersion != "1.0.3" {
		t.Errorf("proxy config = %+v", sc.Proxy)
	}
	if sc.Trace == nil || sc.Trace.Lode == nil || sc.Trace.StorageBackend != backendFS {
		t.Errorf("trace = %+v", sc.Trace)
	}
	snap := sc.Collector.Snapshot()
	if snap.Mode != "proxy" || snap.Policy != runtime.PolicyStrict || snap.StorageBackend != backendFS {
		t.Errorf("collector dimensions = %s/%s/%s", snap.Mode, snap.Policy, snap.StorageBackend)
	}
}

func TestBuildServerConfig_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"no listen", config.Config{VM: "vm:1"}},
		{"no vm", config.Config{Listen: "8000"}},
		{"bad vm", config.Config{Listen: "8000", VM: "vm"}},
		{"unknown pool", config.Config{Listen: "8000", Pool: "lab"}},
		{"parallel without multi", config.Config{Listen: "8000", VM: "vm:1", Parallel: 2}},
		{"watch without classpath", config.Config{Listen: "8000", VM: "vm:1", WatchClassPath: true}},
		{"negative verbosity", config.Config{Listen: "8000", VM: "vm:1", Verbosity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildServerConfig(t.Context(), &tt.cfg, log.NewNop())
			if !errors.Is(err, errUsage) {
				t.Errorf("err = %v, want a usage error", err)
			}
		})
	}
}
