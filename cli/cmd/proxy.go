package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/runtime"
)

// ProxyAction runs the proxy: it accepts debuggers on -l and relays each
// session to a VM. In single-session mode the exit code follows the session
// outcome; with -m it runs until interrupted and exits 0.
func ProxyAction(c *cli.Context) error {
	// bare "kdp" prints usage
	if c.NumFlags() == 0 && c.NArg() == 0 {
		_ = cli.ShowAppHelp(c)
		return cli.Exit("", 1)
	}
	if c.NArg() > 0 {
		return usageExit(c, usagef("unexpected argument %q", c.Args().First()))
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := applyFlags(c, cfg); err != nil {
		return usageExit(c, err)
	}

	logger := log.NewLogger(cfg.Verbosity)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := buildServerConfig(ctx, cfg, logger)
	if err != nil {
		return usageExit(c, err)
	}
	if sc.Adapter != nil {
		defer func() { _ = sc.Adapter.Close() }()
	}

	server, err := runtime.NewServer(sc)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logger.Info("kdp starting", map[string]any{
		"listen": sc.ListenAddr,
		"vm":     describePool(sc.Pool),
		"mode":   sc.Collector.Snapshot().Mode,
		"multi":  sc.Multi,
		"trace":  sc.Trace.PolicyName(),
	})

	stats, err := server.ListenAndServe(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("listen %s: %v", sc.ListenAddr, err), 1)
	}
	return cli.Exit("", exitCode(ctx, sc.Multi, stats))
}

// exitCode maps a finished server to a process exit code.
func exitCode(ctx context.Context, multi bool, stats *runtime.ServeStats) int {
	if multi {
		return runtime.ExitCodeSuccess
	}
	if stats == nil || stats.Last == nil {
		if ctx.Err() != nil {
			return runtime.ExitCodeCanceled
		}
		return runtime.ExitCodeFailure
	}
	return runtime.ExitCode(stats.Last.Outcome)
}

// usageExit prints usage for argument errors and returns an exit error.
func usageExit(c *cli.Context, err error) error {
	if errors.Is(err, errUsage) {
		_ = cli.ShowAppHelp(c)
	}
	return cli.Exit(err.Error(), 1)
}
