// Package cmd provides the commands of the kdp binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for the views tui.SupportedTUIViews lists.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, trace stats, trace summary)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// --tui is included everywhere so unsupported commands can reject it with
// an explicit message instead of a generic "flag not defined".
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, TUIFlag}
}

// Proxy flag names. Single-dash forms (-cp, -nb4) are accepted by the
// flag parser as-is.
const (
	flagListen         = "l"
	flagRemote         = "r"
	flagVerbosity      = "v"
	flagClassPath      = "cp"
	flagProxy          = "p"
	flagMulti          = "m"
	flagLegacyResume   = "nb4"
	flagConfig         = "config"
	flagPool           = "pool"
	flagParallel       = "parallel"
	flagReport         = "report"
	flagWatchClassPath = "watch-classpath"
	flagVMVersion      = "vm-version"
	flagHandshake      = "handshake-timeout"

	flagTracePolicy   = "trace-policy"
	flagCapture       = "capture"
	flagBufferRecords = "buffer-records"
	flagBufferBytes   = "buffer-bytes"
	flagFlushCount    = "flush-count"
	flagFlushInterval = "flush-interval"

	flagStorageBackend  = "storage-backend"
	flagStoragePath     = "storage-path"
	flagStorageDataset  = "storage-dataset"
	flagStorageRegion   = "storage-region"
	flagStorageEndpoint = "storage-endpoint"
	flagS3PathStyle     = "storage-s3-path-style"

	flagAdapter        = "adapter"
	flagAdapterURL     = "adapter-url"
	flagAdapterChannel = "adapter-channel"
	flagAdapterHeader  = "adapter-header"
	flagAdapterTimeout = "adapter-timeout"
	flagAdapterRetries = "adapter-retries"
)

// ProxyFlags returns the flags of the root proxy action.
func ProxyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagListen, Usage: "Debugger-facing `PORT` or address"},
		&cli.StringFlag{Name: flagRemote, Usage: "VM `HOST` followed by its port, or host:port"},
		&cli.IntFlag{Name: flagVerbosity, Usage: "Log verbosity `LEVEL`: 0 warn, 1 info, 2 debug, 3 packets"},
		&cli.StringFlag{Name: flagClassPath, Aliases: []string{"classpath"}, Usage: "Class `PATH` for local class files"},
		&cli.BoolFlag{Name: flagProxy, Usage: "Answer commands locally (proxy mode)"},
		&cli.BoolFlag{Name: flagMulti, Usage: "Keep accepting debuggers after a session ends"},
		&cli.BoolFlag{Name: flagLegacyResume, Usage: "Resume once per outstanding suspend (legacy VMs)"},
		&cli.StringFlag{Name: flagConfig, Usage: "Path to a kdp.yaml `FILE`"},
		&cli.StringFlag{Name: flagPool, Usage: "VM pool `NAME` from the config file"},
		&cli.IntFlag{Name: flagParallel, Usage: "Maximum concurrent sessions with -m"},
		&cli.StringFlag{Name: flagReport, Usage: "Write a JSON session report to `PATH` (- for stderr)"},
		&cli.BoolFlag{Name: flagWatchClassPath, Usage: "Reload class files that change on disk"},
		&cli.StringFlag{Name: flagVMVersion, Usage: "Override the VM version string"},
		&cli.DurationFlag{Name: flagHandshake, Usage: "Bound the JDWP handshake"},

		&cli.StringFlag{Name: flagTracePolicy, Usage: "Trace policy: strict, buffered, streaming, none"},
		&cli.StringFlag{Name: flagCapture, Usage: "Write packets to a capture `FILE`"},
		&cli.IntFlag{Name: flagBufferRecords, Usage: "Max buffered records (buffered policy)"},
		&cli.Int64Flag{Name: flagBufferBytes, Usage: "Max buffered bytes (buffered policy)"},
		&cli.IntFlag{Name: flagFlushCount, Usage: "Flush after N records (streaming policy)"},
		&cli.DurationFlag{Name: flagFlushInterval, Usage: "Flush interval (streaming policy)"},

		&cli.StringFlag{Name: flagStorageBackend, Usage: "Trace archive backend: fs or s3"},
		&cli.StringFlag{Name: flagStoragePath, Usage: "Archive path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: flagStorageDataset, Usage: "Archive dataset id"},
		&cli.StringFlag{Name: flagStorageRegion, Usage: "AWS region for s3"},
		&cli.StringFlag{Name: flagStorageEndpoint, Usage: "Custom S3 endpoint"},
		&cli.BoolFlag{Name: flagS3PathStyle, Usage: "Use path-style S3 addressing"},

		&cli.StringFlag{Name: flagAdapter, Usage: "Session notification adapter: webhook or redis"},
		&cli.StringFlag{Name: flagAdapterURL, Usage: "Adapter endpoint URL"},
		&cli.StringFlag{Name: flagAdapterChannel, Usage: "Redis channel"},
		&cli.StringSliceFlag{Name: flagAdapterHeader, Usage: "Webhook header `KEY=VALUE` (repeatable)"},
		&cli.DurationFlag{Name: flagAdapterTimeout, Usage: "Adapter request timeout"},
		&cli.IntFlag{Name: flagAdapterRetries, Usage: "Adapter retries after the first attempt"},
	}
}

// storageFlags are the archive flags shared with the trace commands.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagConfig, Usage: "Path to a kdp.yaml `FILE`"},
		&cli.StringFlag{Name: flagStorageBackend, Usage: "Trace archive backend: fs or s3"},
		&cli.StringFlag{Name: flagStoragePath, Usage: "Archive path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: flagStorageDataset, Usage: "Archive dataset id"},
		&cli.StringFlag{Name: flagStorageRegion, Usage: "AWS region for s3"},
		&cli.StringFlag{Name: flagStorageEndpoint, Usage: "Custom S3 endpoint"},
		&cli.BoolFlag{Name: flagS3PathStyle, Usage: "Use path-style S3 addressing"},
	}
}
