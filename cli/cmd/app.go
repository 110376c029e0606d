package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kdp/types"
)

// NewApp builds the kdp application. The root action runs the proxy;
// subcommands are read-only.
func NewApp(commit string) *cli.App {
	// -v is verbosity, so the version flag keeps only its long form.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}

	return &cli.App{
		Name:      "kdp",
		Usage:     "JDWP debug proxy for KVM-class virtual machines",
		UsageText: "kdp -l <localport> -r <host> <port> [-v <level>] [-cp <path>] [-p] [-m] [-nb4]\n   kdp <command> [options]",
		Version:   fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:     ProxyFlags(),
		Action:    ProxyAction,
		Commands: []*cli.Command{
			InspectCommand(),
			TraceCommand(),
			VersionCommand(commit),
		},
	}
}
