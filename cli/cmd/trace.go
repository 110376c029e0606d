package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/kdp/cli/reader"
	"github.com/pithecene-io/kdp/cli/render"
	"github.com/pithecene-io/kdp/cli/tui"
)

// TraceCommand returns the trace command with subcommands.
// Records come from a capture file argument, or from the archive with
// --session.
func TraceCommand() *cli.Command {
	return &cli.Command{
		Name:  "trace",
		Usage: "Read packet traces (capture files or the archive)",
		Subcommands: []*cli.Command{
			{
				Name:      "dump",
				Usage:     "Print trace records in seq order",
				ArgsUsage: "[capture-file]",
				Flags:     traceFlags(),
				Action:    traceDumpAction,
			},
			{
				Name:      "stats",
				Usage:     "Aggregate trace records per direction and command",
				ArgsUsage: "[capture-file]",
				Flags:     traceFlags(),
				Action:    traceStatsAction,
			},
		},
	}
}

func traceFlags() []cli.Flag {
	flags := append(ReadOnlyFlags(), &cli.StringFlag{
		Name:  "session",
		Usage: "Session `ID` (filters a capture file; required for the archive)",
	})
	return append(flags, storageFlags()...)
}

func loadTrace(c *cli.Context) ([]reader.TraceRow, *reader.TraceStats, error) {
	src := reader.TraceSource{
		CapturePath: c.Args().First(),
		SessionID:   c.String("session"),
	}
	var rd *reader.Source
	if src.CapturePath != "" {
		rd = reader.New(reader.Config{})
	} else {
		var err error
		if rd, err = newArchiveReader(c); err != nil {
			return nil, nil, err
		}
	}
	recs, err := rd.ReadTrace(c.Context, src)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	return reader.Dump(recs), reader.Stats(recs), nil
}

func traceDumpAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for trace dump", 1)
	}
	rows, _, err := loadTrace(c)
	if err != nil {
		return err
	}
	return r.Render(rows)
}

func traceStatsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	_, stats, err := loadTrace(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsTrace, stats)
	}
	return r.Render(stats)
}
