package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/ingest"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/models"
	"github.com/TFMV/pubmap/render"
	"github.com/TFMV/pubmap/ui"
)

type renderOptions struct {
	from, to int
	ticks    int
	format   string
	out      string
	labels   bool
	hidden   bool
}

func renderCmd(a *app) *cobra.Command {
	opts := renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one settled frame per year to files",
		Long: "Runs the layout through the year range, settling each snapshot before\n" +
			"writing it. Authors keep their positions from one year to the next.",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closer, err := openSource(a.cfg.Source)
			if err != nil {
				return err
			}
			defer closer.Close()
			return a.renderYears(cmd, src, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.from, "from", 0, "First year (default: first available)")
	f.IntVar(&opts.to, "to", 0, "Last year (default: last available)")
	f.IntVar(&opts.ticks, "ticks", 300, "Maximum ticks to settle each year")
	f.StringVarP(&opts.format, "format", "f", "svg", "Output format: svg, json, ascii")
	f.StringVarP(&opts.out, "out", "o", "frames", "Output directory")
	f.BoolVar(&opts.labels, "labels", true, "Draw labels above the cutoff")
	f.BoolVar(&opts.hidden, "hidden", false, "Draw edges below the cutoff")
	return cmd
}

func (a *app) renderYears(cmd *cobra.Command, src ingest.Source, opts renderOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	renderer, err := render.GetRenderer(opts.format)
	if err != nil {
		return err
	}
	options := render.NewDefaultOptions(opts.format)
	options.ShowLabels = opts.labels
	options.ShowHidden = opts.hidden

	from, to, err := yearRange(ctx, src, opts.from, opts.to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ui.Banner(out, fmt.Sprintf("rendering %d-%d as %s", from, to, renderer.Extension()))

	eng := engine.New(a.cfg.EngineConfig())
	written := 0
	for year := from; year <= to; year++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap, err := src.Snapshot(ctx, year)
		if errors.Is(err, models.ErrSnapshotNotFound) {
			a.log.Warn(ctx, "no snapshot for year, skipping", logging.Int("year", year))
			fmt.Fprintf(out, "  %s %d %s\n", ui.WarnIcon(), year, ui.Subtle.Sprint("missing"))
			continue
		}
		if err != nil {
			return fmt.Errorf("load %d: %w", year, err)
		}
		if snap.Year == 0 {
			snap.Year = year
		}

		outcome := eng.Load(snap)
		for _, an := range outcome.Report.Anomalies {
			a.log.Warn(ctx, "snapshot anomaly",
				logging.Int("year", year),
				logging.String("kind", an.KindName()),
				logging.String("id", an.ID),
			)
		}
		ticks := eng.Settle(opts.ticks)

		data, err := renderer.Render(eng.Frame(), options)
		if err != nil {
			return fmt.Errorf("render %d: %w", year, err)
		}
		path := filepath.Join(opts.out, fmt.Sprintf("pubmap%d.%s", year, renderer.Extension()))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written++

		fmt.Fprintf(out, "  %s %d  %s\n", ui.StatusIcon(true), year,
			ui.Subtle.Sprintf("%d nodes, %d edges, %d ticks", outcome.Report.Nodes, outcome.Report.Edges, ticks))
	}

	fmt.Fprintf(out, "\n  %s frames written to %s\n", ui.Good.Sprint(written), opts.out)
	return nil
}

// yearRange fills unset bounds from the source summary.
func yearRange(ctx context.Context, src ingest.Source, from, to int) (int, int, error) {
	if from == 0 || to == 0 {
		summary, err := src.Summary(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("load summary: %w", err)
		}
		if from == 0 {
			from = summary.MinYear()
		}
		if to == 0 {
			to = summary.MaxYear()
		}
	}
	if from > to {
		return 0, 0, fmt.Errorf("empty year range %d-%d", from, to)
	}
	return from, to, nil
}
