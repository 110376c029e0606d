package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kdp/cli/reader"
	"github.com/pithecene-io/kdp/cli/render"
	"github.com/pithecene-io/kdp/cli/tui"
	"github.com/pithecene-io/kdp/classfile"
)

// InspectCommand returns the inspect command.
// "kdp inspect -cp <path> <class>" shows a class file as the proxy parses
// it; "kdp inspect session" shows an archived session summary.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a class file on the class path",
		ArgsUsage: "<class>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: flagClassPath, Aliases: []string{"classpath"}, Usage: "Class `PATH` to search"},
			&cli.StringFlag{Name: flagConfig, Usage: "Path to a kdp.yaml `FILE`"},
		),
		Action: inspectClassAction,
		Subcommands: []*cli.Command{
			inspectSessionCommand(),
		},
	}
}

func inspectClassAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("class name required", 1)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	cp := cfg.ClassPath
	if c.IsSet(flagClassPath) {
		cp = c.String(flagClassPath)
	}
	if cp == "" {
		return cli.Exit("missing -cp <path>", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	view, err := reader.New(reader.Config{ClassPath: classfile.NewPath(cp)}).InspectClass(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectClass, view)
	}
	return r.Render(view)
}

func inspectSessionCommand() *cli.Command {
	return &cli.Command{
		Name:      "session",
		Usage:     "Show the archived summary of a session (latest when no id is given)",
		ArgsUsage: "[session-id]",
		Flags:     append(ReadOnlyFlags(), storageFlags()...),
		Action:    inspectSessionAction,
	}
}

func inspectSessionAction(c *cli.Context) error {
	src, err := newArchiveReader(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	summary, err := src.LatestSummary(c.Context, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectSession, summary)
	}
	return r.Render(summary)
}

// newArchiveReader builds a reader over the configured trace archive.
func newArchiveReader(c *cli.Context) (*reader.Source, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	applyStorageFlags(c, &cfg.Storage)
	store, _, err := buildStore(c.Context, cfg.Storage)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return reader.New(reader.Config{Lode: store, Dataset: cfg.Storage.Dataset}), nil
}
