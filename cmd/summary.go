package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TFMV/pubmap/models"
	"github.com/TFMV/pubmap/ui"
)

func summaryCmd(a *app) *cobra.Command {
	var perYear bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the year range and network statistics of a source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			src, closer, err := openSource(a.cfg.Source)
			if err != nil {
				return err
			}
			defer closer.Close()

			summary, err := src.Summary(ctx)
			if err != nil {
				return fmt.Errorf("load summary: %w", err)
			}

			ui.Banner(out, "summary")
			fmt.Fprintf(out, "  Years:   %s\n", ui.Info.Sprintf("%d-%d", summary.MinYear(), summary.MaxYear()))
			ui.Table(out, []string{"", "COUNT", "MEAN", "MIN", "MEDIAN", "MAX"}, [][]string{
				statsRow("power", summary.Nodes),
				statsRow("weight", summary.Links),
			})

			if !perYear {
				return nil
			}
			fmt.Fprintln(out)
			var rows [][]string
			for y := summary.MinYear(); y <= summary.MaxYear(); y++ {
				snap, err := src.Snapshot(ctx, y)
				if errors.Is(err, models.ErrSnapshotNotFound) {
					rows = append(rows, []string{strconv.Itoa(y), "-", "-", ui.WarnIcon()})
					continue
				}
				if err != nil {
					return fmt.Errorf("load %d: %w", y, err)
				}
				rows = append(rows, []string{
					strconv.Itoa(y),
					strconv.Itoa(len(snap.Nodes)),
					strconv.Itoa(len(snap.Edges)),
					ui.StatusIcon(true),
				})
			}
			ui.Table(out, []string{"YEAR", "NODES", "EDGES", ""}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&perYear, "years", false, "Also list node and edge counts per year")
	return cmd
}

func statsRow(name string, s models.Stats) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return []string{name, strconv.Itoa(int(s.Count)), f(s.Mean), f(s.Min), f(s.P50), f(s.Max)}
}
