package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kdp/cli/render"
	"github.com/pithecene-io/kdp/types"
)

// VersionResponse is the output of the version command.
// The binary, trace format and session report share one version.
type VersionResponse struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	JDWP          string `json:"jdwp"`
	TraceFormat   string `json:"trace_format"`
	VMDescription string `json:"vm_description"`
}

// VersionCommand returns the version command. It never dials a VM.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}
		return r.Render(NewVersionResponse(commit))
	}
}

// NewVersionResponse describes this build.
func NewVersionResponse(commit string) VersionResponse {
	return VersionResponse{
		Version:       types.Version,
		Commit:        commit,
		JDWP:          fmt.Sprintf("%d.%d", types.JDWPMajor, types.JDWPMinor),
		TraceFormat:   types.TraceFormatVersion,
		VMDescription: types.VMDescription,
	}
}
